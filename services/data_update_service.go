// services/data_update_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// ErrRunInProgress is returned by the Try* methods while another job holds
// the store.
var ErrRunInProgress = errors.New("another run is in progress")

// RouteSource lists the routes a run covers.
type RouteSource interface {
	GetRoutes(ctx context.Context) ([]models.Route, error)
}

type UpdaterOptions struct {
	// ExportPath is where Publish writes the dashboard document; empty skips
	// the JSON export.
	ExportPath string
}

// Updater serializes every job that writes to the store: scan cycles,
// briefings (verification writes) and publishing.
type Updater struct {
	mu sync.Mutex

	routes    RouteSource
	scanner   *Scanner
	briefer   *Briefer
	snapshots *SnapshotService
	exporter  *Exporter
	opts      UpdaterOptions
}

func NewUpdater(routes RouteSource, scanner *Scanner, briefer *Briefer, snapshots *SnapshotService, exporter *Exporter, opts UpdaterOptions) *Updater {
	return &Updater{
		routes:    routes,
		scanner:   scanner,
		briefer:   briefer,
		snapshots: snapshots,
		exporter:  exporter,
		opts:      opts,
	}
}

// Scan waits for the store, runs one scan cycle and publishes the result.
func (u *Updater) Scan(ctx context.Context) (*CycleReport, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.scan(ctx)
}

// TryScan is Scan without waiting.
func (u *Updater) TryScan(ctx context.Context) (*CycleReport, error) {
	if !u.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer u.mu.Unlock()
	return u.scan(ctx)
}

// Brief waits for the store, verifies every route and sends the briefing.
func (u *Updater) Brief(ctx context.Context) (string, []VerifyResult, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.brief(ctx)
}

func (u *Updater) TryBrief(ctx context.Context) (string, []VerifyResult, error) {
	if !u.mu.TryLock() {
		return "", nil, ErrRunInProgress
	}
	defer u.mu.Unlock()
	return u.brief(ctx)
}

// Publish takes snapshots and rewrites the export document.
func (u *Updater) Publish(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.publish(ctx)
}

func (u *Updater) scan(ctx context.Context) (*CycleReport, error) {
	routes, err := u.routes.GetRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	report, err := u.scanner.RunCycle(ctx, routes)
	if err != nil {
		return report, err
	}
	if err := u.publish(ctx); err != nil {
		slog.ErrorContext(ctx, "Service: publishing after scan failed", "run_id", report.RunID, "err", err)
	}
	return report, nil
}

func (u *Updater) brief(ctx context.Context) (string, []VerifyResult, error) {
	routes, err := u.routes.GetRoutes(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("load routes: %w", err)
	}
	msg, results, err := u.briefer.Run(ctx, routes)
	if err != nil {
		return "", results, err
	}
	if err := u.publish(ctx); err != nil {
		slog.ErrorContext(ctx, "Service: publishing after briefing failed", "err", err)
	}
	return msg, results, nil
}

func (u *Updater) publish(ctx context.Context) error {
	if u.snapshots != nil {
		if _, err := u.snapshots.TakeSnapshots(ctx); err != nil {
			return fmt.Errorf("take snapshots: %w", err)
		}
	}
	if u.exporter != nil && u.opts.ExportPath != "" {
		if _, err := u.exporter.WriteJSON(ctx, u.opts.ExportPath); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}
	return nil
}
