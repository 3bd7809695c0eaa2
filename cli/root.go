// ABOUTME: Root cobra command and shared flag handling
// ABOUTME: Loads configuration once per invocation and hands an App to subcommands
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/cellsync/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logLevel   string
	version    string
}

// NewRootCommand builds the cellsync command tree.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{version: version}

	root := &cobra.Command{
		Use:           "cellsync",
		Short:         "Sync CRM contacts into SMS agent cells",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default: ./cellsync.yaml or $XDG_CONFIG_HOME/cellsync/cellsync.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(opts),
		newMCPCommand(opts),
		newMigrateCommand(opts),
		newSyncCommand(opts),
		newContactsCommand(opts),
		newIntegrationsCommand(opts),
		newCellsCommand(opts),
		newDashboardCommand(opts),
	)
	return root
}

// Execute runs the CLI until completion or an interrupt.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand(version).ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// withApp opens the App for the duration of fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(app *App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	app, err := NewApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// identityFlags adds --user/--org, defaulting to the configured identity.
type identityFlags struct {
	userID string
	orgID  string
}

func (f *identityFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.userID, "user", "", "User to act as (default: identity.user_id)")
	cmd.Flags().StringVar(&f.orgID, "org", "", "Organization of the user (default: identity.org_id)")
}

func (f *identityFlags) resolve(cfg *config.Config) (string, string, error) {
	userID, orgID := f.userID, f.orgID
	if userID == "" {
		userID = cfg.Identity.UserID
		if orgID == "" {
			orgID = cfg.Identity.OrgID
		}
	}
	if userID == "" {
		return "", "", fmt.Errorf("no user given: pass --user or set CELLSYNC_IDENTITY_USER_ID")
	}
	return userID, orgID, nil
}
