// ABOUTME: MCP server subcommand
// ABOUTME: Serves cellsync tools over stdio for desktop assistants
package cli

import (
	"github.com/harperreed/cellsync/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func newMCPCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(app *App) error {
				app.Logger.Info("starting mcp server")

				h := handlers.NewHandlers(app.Syncer, handlers.Identity{
					UserID: app.Config.Identity.UserID,
					OrgID:  app.Config.Identity.OrgID,
				})
				server := handlers.NewServer(h, opts.version)
				return server.Run(cmd.Context(), &mcp.StdioTransport{})
			})
		},
	}
}
