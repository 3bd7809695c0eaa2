// ABOUTME: cells commands for registering and listing cells
// ABOUTME: Cells normally come from the provisioning system; these exist for local setups
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/phone"
	"github.com/spf13/cobra"
)

func newCellsCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cells",
		Short: "Manage cells",
	}
	cmd.AddCommand(newCellsAddCommand(opts), newCellsListCommand(opts))
	return cmd
}

func newCellsAddCommand(opts *rootOptions) *cobra.Command {
	var (
		ident       identityFlags
		name        string
		phoneNumber string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a cell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}

				cell := &models.Cell{
					OwnerUserID: userID,
					OrgID:       models.StringPtr(orgID),
					Name:        name,
				}
				if phoneNumber != "" {
					normalized, err := phone.Normalize(phoneNumber, phone.DefaultRegionCode)
					if err != nil {
						return err
					}
					cell.PhoneNumber = &normalized
				}

				if err := app.Store.CreateCell(cmd.Context(), cell); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Cell created: %s (ID: %s)\n", cell.Name, cell.ID)
				if cell.PhoneNumber != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "  Phone: %s (region %s)\n", *cell.PhoneNumber, phone.DefaultRegion(cell.PhoneNumber))
				}
				return nil
			})
		},
	}

	ident.register(cmd)
	cmd.Flags().StringVar(&name, "name", "", "Cell name (required)")
	cmd.Flags().StringVar(&phoneNumber, "phone", "", "Cell phone number, used as the region hint for contacts")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newCellsListCommand(opts *rootOptions) *cobra.Command {
	var ident identityFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cells in the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				userID, orgID, err := ident.resolve(app.Config)
				if err != nil {
					return err
				}

				cells, err := app.Store.ListAccountCells(cmd.Context(), userID, orgID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(cells) == 0 {
					fmt.Fprintln(out, "No cells found")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPHONE")
				for _, c := range cells {
					p := models.StringValue(c.PhoneNumber)
					if p == "" {
						p = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Name, p)
				}
				_ = w.Flush()

				fmt.Fprintf(out, "\nTotal: %d cell(s)\n", len(cells))
				return nil
			})
		},
	}

	ident.register(cmd)
	return cmd
}
