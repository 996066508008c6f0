// services/scan_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/notifier"
	"github.com/jrkim3888/airplane-ticket-price-tracker/scraper"
)

const pax3Adults = 3

// ScanStore is the part of the store the scan cycle writes besides the ledger.
type ScanStore interface {
	InsertScan(ctx context.Context, e models.ScanHistoryEntry) (bool, error)
	RouteMinimum(ctx context.Context, routeID int) (*models.RouteMinimum, error)
}

type ScannerOptions struct {
	URLTemplate       string
	DesignatedCarrier string
	TripPatterns      []models.TripPattern
	Weeks             int
	Extras            []models.ScanWindow
	// MaxRetries is the number of extra render attempts after a render failure.
	MaxRetries int
	Pax3Probe  bool
}

// Scanner runs scan cycles: every route, every window, one request at a time.
type Scanner struct {
	renderer scraper.Renderer
	ledger   *Ledger
	store    ScanStore
	notifier notifier.Notifier
	pacer    Pacer
	clock    chrono.Clock
	opts     ScannerOptions
}

func NewScanner(renderer scraper.Renderer, ledger *Ledger, store ScanStore, n notifier.Notifier, pacer Pacer, clock chrono.Clock, opts ScannerOptions) *Scanner {
	if pacer == nil {
		pacer = NoPacer{}
	}
	if n == nil {
		n = notifier.LogNotifier{}
	}
	return &Scanner{
		renderer: renderer,
		ledger:   ledger,
		store:    store,
		notifier: n,
		pacer:    pacer,
		clock:    clock,
		opts:     opts,
	}
}

// CycleReport summarizes one scan cycle.
type CycleReport struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	Duration       time.Duration  `json:"duration_ns"`
	Windows        int            `json:"windows"`
	Observed       int            `json:"observed"`
	Missing        int            `json:"missing"`
	RenderFailures int            `json:"render_failures"`
	Alerts         int            `json:"alerts"`
	Events         map[string]int `json:"events"`
}

func (r *CycleReport) count(kind models.EventKind) {
	if kind != models.EventNone {
		r.Events[kind.String()]++
	}
}

// Windows returns the windows a cycle started now would scan.
func (s *Scanner) Windows() []models.ScanWindow {
	today := models.DateOf(s.clock.Now())
	return GenerateWindows(today, s.opts.TripPatterns, s.opts.Weeks, s.opts.Extras)
}

// RunCycle scans all windows of all routes. Writes already committed stay
// valid when the cycle is cancelled or aborted by a store error.
func (s *Scanner) RunCycle(ctx context.Context, routes []models.Route) (*CycleReport, error) {
	report := &CycleReport{
		RunID:     uuid.NewString(),
		StartedAt: s.clock.Now(),
		Events:    make(map[string]int),
	}
	windows := s.Windows()
	log := slog.With("run_id", report.RunID)
	log.InfoContext(ctx, "Service: scan cycle started", "routes", len(routes), "windows", len(windows))

	err := s.runCycle(ctx, log, report, routes, windows)
	report.Duration = s.clock.Now().Sub(report.StartedAt)

	if err != nil {
		log.ErrorContext(ctx, "Service: scan cycle aborted", "err", err, "windows_done", report.Windows)
		return report, err
	}
	log.InfoContext(ctx, "Service: scan cycle finished",
		"windows", report.Windows, "observed", report.Observed, "missing", report.Missing,
		"render_failures", report.RenderFailures, "alerts", report.Alerts, "events", report.Events,
		"duration", report.Duration.String())
	return report, nil
}

func (s *Scanner) runCycle(ctx context.Context, log *slog.Logger, report *CycleReport, routes []models.Route, windows []models.ScanWindow) error {
	for _, route := range routes {
		log.InfoContext(ctx, "Service: scanning route", "route", route.String(), "label", route.Label)
		for _, w := range windows {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.scanWindow(ctx, log, report, route, w); err != nil {
				return err
			}
			if err := s.pacer.Pause(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) scanWindow(ctx context.Context, log *slog.Logger, report *CycleReport, route models.Route, w models.ScanWindow) error {
	report.Windows++
	key := models.WindowKey{RouteID: route.ID, Window: w}
	pageURL := scraper.BuildSearchURL(s.opts.URLTemplate, route, w, 1)
	log.InfoContext(ctx, "Service: scanning window", "route", route.String(), "window", w.String())

	offers, err := s.fetchOffers(ctx, log, pageURL, route)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.RenderFailures++
		log.WarnContext(ctx, "Service: render failed", "route", route.String(), "window", w.String(), "err", err)
	}

	obs := scraper.Observe(offers, s.opts.DesignatedCarrier)
	if obs == nil {
		report.Missing++
		log.WarnContext(ctx, "Service: no valid offer", "route", route.String(), "window", w.String())
		ev, err := s.ledger.Apply(ctx, key, nil)
		if err != nil {
			return fmt.Errorf("apply miss for %s: %w", key, err)
		}
		report.count(ev.Kind)
		if ev.Kind == models.EventInvalidated {
			log.InfoContext(ctx, "Service: weekly lowest removed", "key", key.String(), "old_price", ev.OldPrice)
		}
		return nil
	}
	report.Observed++

	if s.opts.Pax3Probe {
		if err := s.pacer.Pause(ctx); err != nil {
			return err
		}
		obs.Pax3Price = s.probePax3(ctx, log, route, w)
	}

	now := s.clock.Now()
	_, err = s.store.InsertScan(ctx, models.ScanHistoryEntry{
		RouteID:    route.ID,
		DepartDate: w.Depart,
		ReturnDate: w.Return,
		Price:      obs.Best.Price,
		Airline:    obs.Best.Airline,
		Legs:       obs.Best.Legs,
		ScannedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("record scan for %s: %w", key, err)
	}

	ev, err := s.ledger.Apply(ctx, key, obs)
	if err != nil {
		return fmt.Errorf("apply observation for %s: %w", key, err)
	}
	report.count(ev.Kind)
	log.InfoContext(ctx, "Service: window observed",
		"key", key.String(), "price", obs.Best.Price, "airline", obs.Best.Airline, "event", ev.Kind.String())

	if ev.IsPriceChange() {
		s.alert(ctx, log, route, w, obs, ev)
		report.Alerts++
	}
	return nil
}

// fetchOffers renders pageURL, retrying only render failures. A page that
// renders but holds no offer is returned as an empty slice without retry.
func (s *Scanner) fetchOffers(ctx context.Context, log *slog.Logger, pageURL string, route models.Route) ([]models.FlightOffer, error) {
	attempts := 1 + max(s.opts.MaxRetries, 0)
	params := scraper.ParamsForRoute(route)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := s.renderer.Render(ctx, pageURL)
		if err == nil {
			offers, diag := scraper.ExtractWithDiagnostics(text, params)
			log.DebugContext(ctx, "Scraper: extraction finished",
				"offers", len(offers), "candidates", diag.Candidates, "no_inbound", diag.NoInbound,
				"too_early", diag.TooEarly, "mixed_carrier", diag.MixedCarrier, "no_price", diag.NoPrice)
			return offers, nil
		}
		lastErr = err
		if !errors.Is(err, models.ErrRenderFailure) || ctx.Err() != nil {
			return nil, err
		}
		if attempt < attempts {
			log.InfoContext(ctx, "Service: retrying render", "attempt", attempt+1, "of", attempts, "err", err)
			if err := s.pacer.Pause(ctx); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (s *Scanner) probePax3(ctx context.Context, log *slog.Logger, route models.Route, w models.ScanWindow) *int {
	pageURL := scraper.BuildSearchURL(s.opts.URLTemplate, route, w, pax3Adults)
	text, err := s.renderer.Render(ctx, pageURL)
	if err != nil {
		log.WarnContext(ctx, "Service: party-of-three probe failed", "route", route.String(), "window", w.String(), "err", err)
		return nil
	}
	price, ok := scraper.MinPrice(scraper.Extract(text, scraper.ParamsForRoute(route)))
	if !ok {
		return nil
	}
	return &price
}

func (s *Scanner) alert(ctx context.Context, log *slog.Logger, route models.Route, w models.ScanWindow, obs *models.Observation, ev models.LedgerEvent) {
	routeMin, err := s.store.RouteMinimum(ctx, route.ID)
	if err != nil {
		log.WarnContext(ctx, "Service: route minimum unavailable", "route", route.String(), "err", err)
		routeMin = nil
	}
	msg := notifier.FormatPriceAlert(notifier.PriceAlert{
		Route:        route,
		Window:       w,
		OldPrice:     ev.OldPrice,
		NewPrice:     ev.NewPrice,
		Airline:      obs.Best.Airline,
		Legs:         obs.Best.Legs,
		RouteMinimum: routeMin,
	})
	notifier.Deliver(ctx, s.notifier, msg)
}
