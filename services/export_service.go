// services/export_service.go
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/jszwec/csvutil"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
)

// ExportTimeLayout is the timestamp format of the dashboard document.
const ExportTimeLayout = "2006-01-02T15:04:05-07:00"

const defaultHistoryLimit = 200

type ExportStore interface {
	GetRoutes(ctx context.Context) ([]models.Route, error)
	ListWeeklyLowest(ctx context.Context, routeID int) ([]models.WeeklyLowestRecord, error)
	RecentPriceSnapshots(ctx context.Context, routeID, limit int) ([]models.PriceSnapshot, error)
	RecentWeeklySnapshots(ctx context.Context, routeID int, depart models.Date, limit int) ([]models.WeeklySnapshot, error)
	ListScanHistory(ctx context.Context, f database.ScanHistoryFilter) ([]models.ScanHistoryEntry, error)
}

// Exporter builds the dashboard document and the scan history CSV.
type Exporter struct {
	store        ExportStore
	clock        chrono.Clock
	historyLimit int
}

func NewExporter(store ExportStore, clock chrono.Clock, historyLimit int) *Exporter {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Exporter{store: store, clock: clock, historyLimit: historyLimit}
}

// BuildDocument reads every route with its weeks and price history. A failed
// history query leaves that route's history empty; route and ledger read
// failures are returned.
func (e *Exporter) BuildDocument(ctx context.Context) (*models.ExportDocument, error) {
	routes, err := e.store.GetRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	doc := &models.ExportDocument{
		UpdatedAt: e.clock.Now().Format(ExportTimeLayout),
		Routes:    make([]models.ExportRoute, 0, len(routes)),
	}
	for _, r := range routes {
		records, err := e.store.ListWeeklyLowest(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("load weeks of %s: %w", r, err)
		}

		out := models.ExportRoute{
			Origin:         r.Origin,
			Destination:    r.Destination,
			Label:          r.Label,
			Weeks:          make([]models.WeekEntry, 0, len(records)),
			OverallHistory: e.overallHistory(ctx, r),
			WeeklyHistory:  make(map[string][]models.WeeklyHistoryEntry),
		}
		for _, rec := range records {
			out.Weeks = append(out.Weeks, WeekEntryOf(rec))
			out.WeeklyHistory[rec.Window.Depart.String()] = e.weeklyHistory(ctx, r, rec.Window.Depart)
		}
		doc.Routes = append(doc.Routes, out)
	}
	return doc, nil
}

// WeekEntryOf converts a ledger record into its dashboard form.
func WeekEntryOf(rec models.WeeklyLowestRecord) models.WeekEntry {
	return models.WeekEntry{
		DepartDate:      rec.Window.Depart.String(),
		ReturnDate:      rec.Window.Return.String(),
		MinPrice:        rec.MinPrice,
		Airline:         rec.Airline,
		FlightInfo:      rec.Legs,
		DesignatedPrice: rec.DesignatedPrice,
		DesignatedInfo:  rec.DesignatedLegs,
		UpdatedAt:       rec.UpdatedAt.Format(ExportTimeLayout),
	}
}

func (e *Exporter) overallHistory(ctx context.Context, r models.Route) []models.HistoryEntry {
	snaps, err := e.store.RecentPriceSnapshots(ctx, r.ID, e.historyLimit)
	if err != nil {
		slog.WarnContext(ctx, "Service: overall history unavailable", "route", r.String(), "err", err)
		return []models.HistoryEntry{}
	}
	slices.Reverse(snaps)

	history := make([]models.HistoryEntry, 0, len(snaps))
	for _, s := range snaps {
		history = append(history, models.HistoryEntry{
			SnapshotAt: s.SnapshotAt.Format(ExportTimeLayout),
			Price:      s.OverallMinPrice,
			Airline:    s.Airline,
			DepartDate: s.DepartDate.String(),
		})
	}
	return history
}

func (e *Exporter) weeklyHistory(ctx context.Context, r models.Route, depart models.Date) []models.WeeklyHistoryEntry {
	snaps, err := e.store.RecentWeeklySnapshots(ctx, r.ID, depart, e.historyLimit)
	if err != nil {
		slog.WarnContext(ctx, "Service: weekly history unavailable", "route", r.String(), "depart", depart.String(), "err", err)
		return []models.WeeklyHistoryEntry{}
	}
	slices.Reverse(snaps)

	history := make([]models.WeeklyHistoryEntry, 0, len(snaps))
	for _, s := range snaps {
		history = append(history, models.WeeklyHistoryEntry{
			SnapshotAt: s.SnapshotAt.Format(ExportTimeLayout),
			Price:      s.MinPrice,
			Airline:    s.Airline,
		})
	}
	return history
}

// MarshalDocument encodes doc as indented JSON without HTML escaping.
func MarshalDocument(doc *models.ExportDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode export document: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteJSON builds the document and replaces path atomically.
func (e *Exporter) WriteJSON(ctx context.Context, path string) (*models.ExportDocument, error) {
	doc, err := e.BuildDocument(ctx)
	if err != nil {
		return nil, err
	}
	data, err := MarshalDocument(doc)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Service: export written", "path", path, "routes", len(doc.Routes))
	return doc, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// WriteHistoryCSV writes scan history rows, oldest first, with a header line.
func (e *Exporter) WriteHistoryCSV(ctx context.Context, w io.Writer, f database.ScanHistoryFilter) (int, error) {
	entries, err := e.store.ListScanHistory(ctx, f)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(models.ScanHistoryEntry{}); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return 0, fmt.Errorf("failed to encode scan history row %d: %w", entry.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return len(entries), nil
}
