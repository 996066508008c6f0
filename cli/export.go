// cli/export.go
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jrkim3888/airplane-ticket-price-tracker/database"
)

type ExportOptions struct {
	*RootOptions
	Output  string
	CSV     bool
	CSVPath string
	RouteID int
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard JSON document (and optionally the scan history CSV)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			out := opts.Output
			if out == "" {
				out = a.cfg.Export.Path
			}
			doc, err := a.exporter.WriteJSON(cmd.Context(), out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d routes)\n", out, len(doc.Routes))

			if !opts.CSV {
				return nil
			}
			csvPath := opts.CSVPath
			if csvPath == "" {
				csvPath = a.cfg.Export.CSVPath
			}
			if csvPath == "" {
				csvPath = filepath.Join(filepath.Dir(out), "scan_history.csv")
			}
			n, err := writeHistoryCSV(cmd, a, csvPath, opts.RouteID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d rows)\n", csvPath, n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "JSON output path (default export.path)")
	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "also write the scan history CSV")
	cmd.Flags().StringVar(&opts.CSVPath, "csv-path", "", "CSV output path (default export.csv_path)")
	cmd.Flags().IntVar(&opts.RouteID, "route", 0, "limit the CSV to one route id")
	return cmd
}

func writeHistoryCSV(cmd *cobra.Command, a *app, path string, routeID int) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := a.exporter.WriteHistoryCSV(cmd.Context(), f, database.ScanHistoryFilter{RouteID: routeID})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w", path, closeErr)
	}
	return n, err
}
