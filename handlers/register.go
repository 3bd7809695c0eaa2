// ABOUTME: Registers cellsync tools, resources and prompts on an MCP server
// ABOUTME: Shared by the mcp command and tests
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer builds an MCP server with every cellsync capability registered.
func NewServer(h *Handlers, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "cellsync",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "sync_crm",
		Description: "Import contacts from a connected CRM into a cell, or into every cell of the account for account-wide CRMs",
	}, h.SyncCRM)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_cell_contacts",
		Description: "List a cell's contacts by phone number with the CRM records attached to each",
	}, h.ListCellContacts)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_integrations",
		Description: "List linked CRM integrations with their sync status",
	}, h.ListIntegrations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "link_integration",
		Description: "Link a CRM connection to a cell or account, discovering the active connection when no id is given",
	}, h.LinkIntegration)

	server.AddResource(&mcp.Resource{
		URI:         integrationsURI,
		Name:        "integrations",
		Description: "Linked CRM integrations",
		MIMEType:    "application/json",
	}, h.ReadResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: cellContactsTemplate,
		Name:        "cell-contacts",
		Description: "Contacts of one cell",
		MIMEType:    "application/json",
	}, h.ReadResource)

	server.AddPrompt(&mcp.Prompt{
		Name:        "sync-health",
		Description: "Review CRM integration status and recent sync errors",
	}, h.GetPrompt)

	server.AddPrompt(&mcp.Prompt{
		Name:        "cell-contact-review",
		Description: "Review a cell's synced contacts for gaps and conflicts",
		Arguments: []*mcp.PromptArgument{
			{Name: "cell_id", Description: "Cell to review", Required: true},
		},
	}, h.GetPrompt)

	return server
}
