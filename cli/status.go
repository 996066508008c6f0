// cli/status.go
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/jrkim3888/airplane-ticket-price-tracker/models"
	"github.com/jrkim3888/airplane-ticket-price-tracker/utils"
)

// ledgerReader is what the status table reads.
type ledgerReader interface {
	GetRoutes(ctx context.Context) ([]models.Route, error)
	ListWeeklyLowest(ctx context.Context, routeID int) ([]models.WeeklyLowestRecord, error)
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the weekly lowest ledger as a table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()
			return renderStatus(cmd.Context(), cmd.OutOrStdout(), a.store, a.cfg.DesignatedCarrier)
		},
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetOutputMirror(w)
	return t
}

func renderStatus(ctx context.Context, w io.Writer, store ledgerReader, designated string) error {
	routes, err := store.GetRoutes(ctx)
	if err != nil {
		return err
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Route", "Window", "Lowest", "Airline", designated, "3 pax", "Misses", "Updated"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	total := 0
	for _, r := range routes {
		records, err := store.ListWeeklyLowest(ctx, r.ID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			t.AppendRow(table.Row{routeLabel(r), "-", "-", "-", "-", "-", "-", "-"})
			t.AppendSeparator()
			continue
		}
		for _, rec := range records {
			t.AppendRow(table.Row{
				routeLabel(r),
				fmt.Sprintf("%s → %s", utils.ShortDateLabel(rec.Window.Depart), utils.ShortDateLabel(rec.Window.Return)),
				utils.FormatWon(rec.MinPrice),
				rec.Airline,
				optionalWon(rec.DesignatedPrice),
				optionalWon(rec.Pax3Price),
				rec.MissCount,
				rec.UpdatedAt.Format("01/02 15:04"),
			})
			total++
		}
		t.AppendSeparator()
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d windows", total)})
	t.Render()
	return nil
}

func routeLabel(r models.Route) string {
	return fmt.Sprintf("%s→%s %s", r.Origin, r.Destination, r.Label)
}

func optionalWon(p *int) string {
	if p == nil {
		return "-"
	}
	return utils.FormatWon(*p)
}
