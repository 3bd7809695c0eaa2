// ABOUTME: dashboard command launching the terminal UI
// ABOUTME: Shows integrations and runs syncs interactively
package cli

import (
	"github.com/harperreed/cellsync/tui"
	"github.com/spf13/cobra"
)

func newDashboardCommand(opts *rootOptions) *cobra.Command {
	var ident identityFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive sync dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}
				return tui.Run(cmd.Context(), app.Syncer, userID, orgID)
			})
		},
	}

	ident.register(cmd)
	return cmd
}
