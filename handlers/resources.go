// ABOUTME: MCP resource handlers exposing cell contacts and integrations
// ABOUTME: Serves read-only JSON under cellsync://cells/{id}/contacts and cellsync://integrations
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	resourceScheme       = "cellsync://"
	integrationsURI      = "cellsync://integrations"
	cellContactsTemplate = "cellsync://cells/{cell_id}/contacts"
)

// ReadResource handles resource read requests
func (h *Handlers) ReadResource(ctx context.Context, request *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := request.Params.URI
	if !strings.HasPrefix(uri, resourceScheme) {
		return nil, fmt.Errorf("invalid URI scheme: expected %s", resourceScheme)
	}

	parts := strings.Split(strings.TrimPrefix(uri, resourceScheme), "/")
	switch {
	case len(parts) == 1 && parts[0] == "integrations":
		_, out, err := h.ListIntegrations(ctx, nil, CallerInput{})
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, out)

	case len(parts) == 3 && parts[0] == "cells" && parts[2] == "contacts" && parts[1] != "":
		_, out, err := h.ListCellContacts(ctx, nil, ListCellContactsInput{CellID: parts[1]})
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, out)

	default:
		return nil, mcp.ResourceNotFoundError(uri)
	}
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}

	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{
		{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}}, nil
}
