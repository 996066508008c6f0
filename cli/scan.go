// cli/scan.go
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jrkim3888/airplane-ticket-price-tracker/services"
)

type ScanOptions struct {
	*RootOptions
	JSON bool
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle over every route and window",
		Long: `Scans every configured route for every generated window, updates the
weekly lowest ledger, sends price alerts, then takes snapshots and rewrites
the export document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.updater.Scan(cmd.Context())
			if err != nil {
				return fmt.Errorf("scan cycle: %w", err)
			}
			return printReport(cmd.OutOrStdout(), report, opts.JSON)
		},
	}

	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print the cycle report as JSON")
	return cmd
}

func printReport(w io.Writer, report *services.CycleReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintf(w, "run %s: %d windows, %d observed, %d missing, %d render failures, %d alerts (%s)\n",
		report.RunID, report.Windows, report.Observed, report.Missing, report.RenderFailures, report.Alerts,
		report.Duration.Round(time.Second))
	for _, kind := range []string{"baseline", "price_drop", "price_rise", "missed", "invalidated"} {
		if n := report.Events[kind]; n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", kind, n)
		}
	}
	return nil
}
