// cli/app.go
package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
	"github.com/jrkim3888/airplane-ticket-price-tracker/config"
	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/notifier"
	"github.com/jrkim3888/airplane-ticket-price-tracker/scraper"
	"github.com/jrkim3888/airplane-ticket-price-tracker/services"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg   *config.Config
	clock chrono.Clock
	store *database.Store

	notifier  notifier.Notifier
	scanner   *services.Scanner
	verifier  *services.Verifier
	briefer   *services.Briefer
	snapshots *services.SnapshotService
	exporter  *services.Exporter
	updater   *services.Updater
}

func openApp(ctx context.Context, opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	clock, err := chrono.NewSystemClock(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := database.Open(ctx, cfg.Database, clock.Location())
	if err != nil {
		return nil, err
	}
	if err := store.SyncRoutes(ctx, cfg.Routes()); err != nil {
		store.Close()
		return nil, fmt.Errorf("sync routes: %w", err)
	}

	renderer := scraper.NewHTTPRenderer(scraper.HTTPRendererOptions{
		BaseURL:       cfg.Render.BaseURL,
		Timeout:       cfg.Render.Timeout,
		Wait:          cfg.Render.Wait,
		Selector:      cfg.Render.Selector,
		UserAgent:     cfg.Render.UserAgent,
		MinTextLength: cfg.Scan.MinTextLength,
	})

	var n notifier.Notifier = notifier.LogNotifier{}
	if cfg.Discord.Enabled() {
		n = notifier.NewDiscord(notifier.DiscordOptions{
			APIBase:   cfg.Discord.APIBase,
			ChannelID: cfg.Discord.ChannelID,
			Token:     cfg.Discord.Token,
		})
	} else {
		slog.Warn("Notifier: discord not configured, messages go to the log")
	}

	pacer := services.JitterPacer{Min: cfg.Scan.DelayMin, Max: cfg.Scan.DelayMax}
	ledger := services.NewLedger(store, clock, cfg.Scan.MissThreshold)

	a := &app{cfg: cfg, clock: clock, store: store, notifier: n}
	a.scanner = services.NewScanner(renderer, ledger, store, n, pacer, clock, services.ScannerOptions{
		URLTemplate:       cfg.Scan.URLTemplate,
		DesignatedCarrier: cfg.DesignatedCarrier,
		TripPatterns:      cfg.TripPatterns,
		Weeks:             cfg.Scan.Weeks,
		Extras:            cfg.Extras(),
		MaxRetries:        cfg.Scan.Retries(),
		Pax3Probe:         cfg.Scan.Pax3Probe,
	})
	a.verifier = services.NewVerifier(renderer, ledger, store, pacer, services.VerifierOptions{
		URLTemplate:       cfg.Scan.URLTemplate,
		DesignatedCarrier: cfg.DesignatedCarrier,
	})
	a.briefer = services.NewBriefer(a.verifier, n, clock, services.BriefingOptions{
		Hours:             cfg.Briefing.Hours,
		URLTemplate:       cfg.Scan.URLTemplate,
		DesignatedCarrier: cfg.DesignatedCarrier,
	})
	a.snapshots = services.NewSnapshotService(store, clock)
	a.exporter = services.NewExporter(store, clock, cfg.Export.HistoryLimit)
	a.updater = services.NewUpdater(configRoutes{cfg}, a.scanner, a.briefer, a.snapshots, a.exporter, services.UpdaterOptions{
		ExportPath: cfg.Export.Path,
	})
	return a, nil
}

// configRoutes scans and verifies only the routes currently configured;
// rows of removed routes stay in the store for the dashboard.
type configRoutes struct{ cfg *config.Config }

func (c configRoutes) GetRoutes(context.Context) ([]models.Route, error) {
	return c.cfg.Routes(), nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("Database: error closing", "err", err)
	}
}
