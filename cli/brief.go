// cli/brief.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBriefCommand creates the brief command.
func NewBriefCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "brief",
		Short: "Verify the best window of every route and send the briefing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			msg, _, err := a.updater.Brief(cmd.Context())
			if err != nil {
				return fmt.Errorf("briefing: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
