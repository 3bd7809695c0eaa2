// ABOUTME: MCP prompt handlers for sync workflows
// ABOUTME: Builds prompts that review integration health and a cell's synced contacts
package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GetPrompt generates the prompt message based on the template
func (h *Handlers) GetPrompt(ctx context.Context, request *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	switch request.Params.Name {
	case "sync-health":
		return h.getSyncHealthPrompt(ctx)
	case "cell-contact-review":
		return h.getCellContactReviewPrompt(ctx, request.Params.Arguments)
	default:
		return nil, fmt.Errorf("unknown prompt: %s", request.Params.Name)
	}
}

func (h *Handlers) getSyncHealthPrompt(ctx context.Context) (*mcp.GetPromptResult, error) {
	_, out, err := h.ListIntegrations(ctx, nil, CallerInput{})
	if err != nil {
		return nil, err
	}

	var promptText strings.Builder
	promptText.WriteString("Review the health of these CRM integrations. ")
	promptText.WriteString("Call out anything in an error state, anything that has never synced, and suggest next steps.\n\n")

	if len(out.Integrations) == 0 {
		promptText.WriteString("No integrations are linked yet.\n")
	}
	for _, i := range out.Integrations {
		promptText.WriteString(fmt.Sprintf("- %s (%s", i.CRMType, i.Scope))
		if i.CellID != "" {
			promptText.WriteString(fmt.Sprintf(", cell %s", i.CellID))
		}
		promptText.WriteString(fmt.Sprintf("): status %s, %d contacts last run", i.Status, i.SyncedCount))
		if i.LastSyncedAt != nil {
			promptText.WriteString(fmt.Sprintf(", last synced %s", *i.LastSyncedAt))
		} else {
			promptText.WriteString(", never synced")
		}
		if i.ErrorMessage != "" {
			promptText.WriteString(fmt.Sprintf(", error: %s", i.ErrorMessage))
		}
		promptText.WriteString("\n")
	}

	return &mcp.GetPromptResult{
		Description: "CRM integration health review",
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}

func (h *Handlers) getCellContactReviewPrompt(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error) {
	cellID, ok := args["cell_id"]
	if !ok || strings.TrimSpace(cellID) == "" {
		return nil, fmt.Errorf("cell_id is required")
	}

	_, out, err := h.ListCellContacts(ctx, nil, ListCellContactsInput{CellID: cellID})
	if err != nil {
		return nil, err
	}

	var promptText strings.Builder
	promptText.WriteString(fmt.Sprintf("Cell %s has %d contacts. ", cellID, out.Count))
	promptText.WriteString("Point out contacts with no CRM record, and numbers that appear under several CRMs with conflicting names.\n\n")
	for _, c := range out.Contacts {
		promptText.WriteString(fmt.Sprintf("- %s", c.PhoneNumber))
		for _, r := range c.Records {
			name := strings.TrimSpace(r.FirstName + " " + r.LastName)
			promptText.WriteString(fmt.Sprintf(" | %s: %s", r.CRMType, name))
			if r.Company != "" {
				promptText.WriteString(fmt.Sprintf(" (%s)", r.Company))
			}
		}
		promptText.WriteString("\n")
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Contact review for cell %s", cellID),
		Messages: []*mcp.PromptMessage{
			{
				Role:    "user",
				Content: &mcp.TextContent{Text: promptText.String()},
			},
		},
	}, nil
}
