// cli/daemon.go
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jrkim3888/airplane-ticket-price-tracker/chrono"
)

type DaemonOptions struct {
	*RootOptions
	Serve       bool
	ScanOnStart bool
}

// NewDaemonCommand creates the daemon command.
func NewDaemonCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DaemonOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scan cycles and briefings on schedule",
		Long: `Runs a scan cycle on scan.schedule and a briefing at every hour listed
in briefing.hours, both in the configured time zone. Jobs never overlap:
each waits for the previous one to release the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()
			return runDaemon(cmd.Context(), a, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Serve, "serve", false, "also serve the JSON API")
	cmd.Flags().BoolVar(&opts.ScanOnStart, "scan-on-start", false, "run one scan cycle before waiting for the schedule")
	return cmd
}

func runDaemon(ctx context.Context, a *app, opts *DaemonOptions) error {
	scheduler := chrono.NewScheduler(a.clock.Location())
	if err := scheduler.Add("scan", a.cfg.Scan.Schedule, func() { scanJob(ctx, a) }); err != nil {
		return err
	}
	if len(a.cfg.Briefing.Hours) > 0 {
		if err := scheduler.Add("briefing", chrono.HoursSpec(a.cfg.Briefing.Hours), func() { briefJob(ctx, a) }); err != nil {
			return err
		}
	}

	if opts.ScanOnStart {
		scanJob(ctx, a)
	}
	scheduler.Start()
	slog.Info("Scheduler: daemon started", "scan", a.cfg.Scan.Schedule, "briefing_hours", a.cfg.Briefing.Hours)
	defer func() {
		scheduler.Stop()
		slog.Info("Scheduler: daemon stopped")
	}()

	if opts.Serve {
		return serveAPI(ctx, a, a.cfg.Server.Port)
	}
	<-ctx.Done()
	return nil
}

func scanJob(ctx context.Context, a *app) {
	if ctx.Err() != nil {
		return
	}
	if _, err := a.updater.Scan(ctx); err != nil {
		slog.Error("Scheduler: scan job failed", "err", err)
	}
}

func briefJob(ctx context.Context, a *app) {
	if ctx.Err() != nil {
		return
	}
	if _, _, err := a.updater.Brief(ctx); err != nil {
		slog.Error("Scheduler: briefing job failed", "err", err)
	}
}
