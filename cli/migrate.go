// ABOUTME: migrate command for applying and rolling back schema migrations
// ABOUTME: Works on the configured database without starting the service
package cli

import (
	"fmt"

	"github.com/harperreed/cellsync/db"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := db.Migrate(cfg.Database.DriverName(), cfg.Database.DSN); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.DriverName(), cfg.Database.DSN)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := db.MigrateDown(cfg.Database.DriverName(), cfg.Database.DSN, steps); err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.DriverName(), cfg.Database.DSN)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back (0 rolls back everything)")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return printVersion(cmd, cfg.Database.DriverName(), cfg.Database.DSN)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, driver, dsn string) error {
	version, dirty, err := db.SchemaVersion(driver, dsn)
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)
	return nil
}
