// ABOUTME: sync and contacts commands
// ABOUTME: Runs a CRM sync from the terminal and lists a cell's contacts
package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var (
		ident  identityFlags
		cellID string
	)

	cmd := &cobra.Command{
		Use:   "sync <crm>",
		Short: "Import contacts from a CRM",
		Long: `Import contacts from a connected CRM.

HubSpot, Salesforce and AgencyZoom connect per cell and need --cell.
Zoho, Attio and Zendesk connect once per account and sync into every
cell of the account unless --cell narrows the run to one cell.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}

				summary, err := app.Syncer.RunSync(cmd.Context(), sync.SyncRequest{
					CRMType: models.CRMType(args[0]),
					UserID:  userID,
					OrgID:   orgID,
					CellID:  cellID,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "✓ %s\n", summary.Message)
				fmt.Fprintf(out, "  Run:      %s\n", summary.RunID)
				fmt.Fprintf(out, "  Fetched:  %d\n", summary.TotalContacts)
				fmt.Fprintf(out, "  Inserted: %d\n", summary.InsertedCount)
				fmt.Fprintf(out, "  Merged:   %d\n", summary.MergedCount)
				fmt.Fprintf(out, "  Skipped:  %d\n", summary.SkippedCount)
				return nil
			})
		},
	}

	ident.register(cmd)
	cmd.Flags().StringVar(&cellID, "cell", "", "Cell to sync into")
	return cmd
}

func newContactsCommand(opts *rootOptions) *cobra.Command {
	var (
		ident  identityFlags
		cellID string
	)

	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List a cell's contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}

				views, err := app.Syncer.CellContacts(cmd.Context(), userID, orgID, cellID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No contacts found")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "PHONE\tNAME\tCOMPANY\tCRMS")
				for _, v := range views {
					name, company := "-", "-"
					crms := make([]string, 0, len(v.Records))
					for _, r := range v.Records {
						if n := strings.TrimSpace(r.FirstName + " " + r.LastName); n != "" && name == "-" {
							name = n
						}
						if r.Company != "" && company == "-" {
							company = r.Company
						}
						crms = append(crms, r.CRMType.DisplayName())
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.PhoneNumber, name, company, strings.Join(crms, ", "))
				}
				_ = w.Flush()

				fmt.Fprintf(out, "\nTotal: %d contact(s)\n", len(views))
				return nil
			})
		},
	}

	ident.register(cmd)
	cmd.Flags().StringVar(&cellID, "cell", "", "Cell to list (required)")
	_ = cmd.MarkFlagRequired("cell")
	return cmd
}
