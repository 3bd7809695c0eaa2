// ABOUTME: serve command running the HTTP API
// ABOUTME: Shuts down gracefully on interrupt
package cli

import (
	"github.com/harperreed/cellsync/web"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				if addr == "" {
					addr = app.Config.HTTP.Addr
				}
				server := web.NewServer(app.Store, app.Syncer, app.Logger.Named("http"))
				return server.Start(cmd.Context(), addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: http.addr)")
	return cmd
}
