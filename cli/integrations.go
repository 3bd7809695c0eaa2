// ABOUTME: integrations commands for linking and listing CRM connections
// ABOUTME: Prints status, last sync and error state per integration
package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
	"github.com/spf13/cobra"
)

func newIntegrationsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integrations",
		Short: "Manage CRM integrations",
	}
	cmd.AddCommand(newIntegrationsListCommand(opts), newIntegrationsLinkCommand(opts))
	return cmd
}

func newIntegrationsListCommand(opts *rootOptions) *cobra.Command {
	var ident identityFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List linked integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}

				integrations, err := app.Syncer.Integrations(cmd.Context(), userID, orgID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(integrations) == 0 {
					fmt.Fprintln(out, "No integrations linked")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CRM\tSCOPE\tCELL\tSTATUS\tLAST SYNC\tCONTACTS\tERROR")
				for _, i := range integrations {
					lastSync := "never"
					if i.LastSyncedAt != nil {
						lastSync = i.LastSyncedAt.Local().Format(time.DateTime)
					}
					cell := models.StringValue(i.CellID)
					if cell == "" {
						cell = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
						i.CRMType.DisplayName(), i.Scope, cell, i.Status, lastSync, i.SyncedCount, models.StringValue(i.ErrorMessage))
				}
				return w.Flush()
			})
		},
	}

	ident.register(cmd)
	return cmd
}

func newIntegrationsLinkCommand(opts *rootOptions) *cobra.Command {
	var (
		ident        identityFlags
		cellID       string
		connectionID string
	)

	cmd := &cobra.Command{
		Use:   "link <crm>",
		Short: "Link a CRM connection",
		Long: `Link a broker connection to a cell or account.

Without --connection the user's active connection for the CRM is looked up.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}

				integration, err := app.Syncer.LinkIntegration(cmd.Context(), sync.LinkRequest{
					CRMType:      models.CRMType(args[0]),
					UserID:       userID,
					OrgID:        orgID,
					CellID:       cellID,
					ConnectionID: connectionID,
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Linked %s (%s scope, ID: %s)\n",
					integration.CRMType.DisplayName(), integration.Scope, integration.ID)
				return nil
			})
		},
	}

	ident.register(cmd)
	cmd.Flags().StringVar(&cellID, "cell", "", "Cell for per-cell CRMs")
	cmd.Flags().StringVar(&connectionID, "connection", "", "Broker connection id")
	return cmd
}
