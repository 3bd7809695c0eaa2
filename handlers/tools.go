// ABOUTME: MCP tool handlers for CRM syncs, cell contacts and integrations
// ABOUTME: Implements sync_crm, list_cell_contacts, list_integrations and link_integration
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service is the slice of the sync engine the tools call.
type Service interface {
	RunSync(ctx context.Context, req sync.SyncRequest) (*sync.SyncSummary, error)
	CellContacts(ctx context.Context, userID, orgID, cellID string) ([]models.ContactView, error)
	Integrations(ctx context.Context, userID, orgID string) ([]models.Integration, error)
	LinkIntegration(ctx context.Context, req sync.LinkRequest) (*models.Integration, error)
}

// Identity is who tool calls act as when the input does not say.
type Identity struct {
	UserID string
	OrgID  string
}

type Handlers struct {
	service  Service
	identity Identity
}

func NewHandlers(service Service, identity Identity) *Handlers {
	return &Handlers{service: service, identity: identity}
}

type CallerInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User to act as (defaults to the configured identity)"`
	OrgID  string `json:"org_id,omitempty" jsonschema:"Organization of the user (defaults to the configured identity)"`
}

type SyncCRMInput struct {
	CRMType string `json:"crm_type" jsonschema:"CRM to sync: hubspot, salesforce, zoho, attio, zendesk or agencyzoom (required)"`
	CellID  string `json:"cell_id,omitempty" jsonschema:"Cell to sync into (required for hubspot, salesforce and agencyzoom)"`
	CallerInput
}

type SyncCRMOutput struct {
	RunID         string `json:"run_id"`
	CRMType       string `json:"crm_type"`
	InsertedCount int    `json:"inserted_count"`
	MergedCount   int    `json:"merged_count"`
	SkippedCount  int    `json:"skipped_count"`
	TotalContacts int    `json:"total_contacts"`
	CellsSynced   int    `json:"cells_synced"`
	Message       string `json:"message"`
}

type ListCellContactsInput struct {
	CellID string `json:"cell_id" jsonschema:"Cell whose contacts to list (required)"`
	CallerInput
}

type CrmRecordOutput struct {
	CRMType    string `json:"crm_type"`
	ExternalID string `json:"external_id"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Email      string `json:"email,omitempty"`
	Company    string `json:"company,omitempty"`
	UpdatedAt  string `json:"updated_at"`
}

type ContactOutput struct {
	ID          string            `json:"id"`
	PhoneNumber string            `json:"phone_number"`
	CreatedAt   string            `json:"created_at"`
	Records     []CrmRecordOutput `json:"records"`
}

type ListCellContactsOutput struct {
	CellID   string          `json:"cell_id"`
	Count    int             `json:"count"`
	Contacts []ContactOutput `json:"contacts"`
}

type IntegrationOutput struct {
	ID           string  `json:"id"`
	CRMType      string  `json:"crm_type"`
	Scope        string  `json:"scope"`
	CellID       string  `json:"cell_id,omitempty"`
	ConnectionID string  `json:"connection_id"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	LastSyncedAt *string `json:"last_synced_at,omitempty"`
	SyncedCount  int     `json:"synced_count"`
}

type ListIntegrationsOutput struct {
	Integrations []IntegrationOutput `json:"integrations"`
}

type LinkIntegrationInput struct {
	CRMType      string `json:"crm_type" jsonschema:"CRM to link (required)"`
	CellID       string `json:"cell_id,omitempty" jsonschema:"Cell for per-cell CRMs"`
	ConnectionID string `json:"connection_id,omitempty" jsonschema:"Broker connection id; looked up automatically when omitted"`
	CallerInput
}

func (h *Handlers) caller(in CallerInput) (string, string) {
	userID := strings.TrimSpace(in.UserID)
	orgID := strings.TrimSpace(in.OrgID)
	if userID == "" {
		userID = h.identity.UserID
		if orgID == "" {
			orgID = h.identity.OrgID
		}
	}
	return userID, orgID
}

func (h *Handlers) SyncCRM(ctx context.Context, request *mcp.CallToolRequest, input SyncCRMInput) (*mcp.CallToolResult, SyncCRMOutput, error) {
	if strings.TrimSpace(input.CRMType) == "" {
		return nil, SyncCRMOutput{}, fmt.Errorf("crm_type is required")
	}

	userID, orgID := h.caller(input.CallerInput)
	summary, err := h.service.RunSync(ctx, sync.SyncRequest{
		CRMType: models.CRMType(input.CRMType),
		UserID:  userID,
		OrgID:   orgID,
		CellID:  strings.TrimSpace(input.CellID),
	})
	if err != nil {
		return nil, SyncCRMOutput{}, toolError(err)
	}

	return nil, SyncCRMOutput{
		RunID:         summary.RunID,
		CRMType:       string(summary.CRMType),
		InsertedCount: summary.InsertedCount,
		MergedCount:   summary.MergedCount,
		SkippedCount:  summary.SkippedCount,
		TotalContacts: summary.TotalContacts,
		CellsSynced:   summary.CellsSynced,
		Message:       summary.Message,
	}, nil
}

func (h *Handlers) ListCellContacts(ctx context.Context, request *mcp.CallToolRequest, input ListCellContactsInput) (*mcp.CallToolResult, ListCellContactsOutput, error) {
	if strings.TrimSpace(input.CellID) == "" {
		return nil, ListCellContactsOutput{}, fmt.Errorf("cell_id is required")
	}

	userID, orgID := h.caller(input.CallerInput)
	views, err := h.service.CellContacts(ctx, userID, orgID, input.CellID)
	if err != nil {
		return nil, ListCellContactsOutput{}, toolError(err)
	}

	out := ListCellContactsOutput{CellID: input.CellID, Contacts: make([]ContactOutput, 0, len(views))}
	for _, v := range views {
		out.Contacts = append(out.Contacts, contactToOutput(v))
	}
	out.Count = len(out.Contacts)
	return nil, out, nil
}

func (h *Handlers) ListIntegrations(ctx context.Context, request *mcp.CallToolRequest, input CallerInput) (*mcp.CallToolResult, ListIntegrationsOutput, error) {
	userID, orgID := h.caller(input)
	integrations, err := h.service.Integrations(ctx, userID, orgID)
	if err != nil {
		return nil, ListIntegrationsOutput{}, toolError(err)
	}

	out := ListIntegrationsOutput{Integrations: make([]IntegrationOutput, 0, len(integrations))}
	for i := range integrations {
		out.Integrations = append(out.Integrations, integrationToOutput(&integrations[i]))
	}
	return nil, out, nil
}

func (h *Handlers) LinkIntegration(ctx context.Context, request *mcp.CallToolRequest, input LinkIntegrationInput) (*mcp.CallToolResult, IntegrationOutput, error) {
	if strings.TrimSpace(input.CRMType) == "" {
		return nil, IntegrationOutput{}, fmt.Errorf("crm_type is required")
	}

	userID, orgID := h.caller(input.CallerInput)
	integration, err := h.service.LinkIntegration(ctx, sync.LinkRequest{
		CRMType:      models.CRMType(input.CRMType),
		UserID:       userID,
		OrgID:        orgID,
		CellID:       strings.TrimSpace(input.CellID),
		ConnectionID: strings.TrimSpace(input.ConnectionID),
	})
	if err != nil {
		return nil, IntegrationOutput{}, toolError(err)
	}
	return nil, integrationToOutput(integration), nil
}

// toolError rewrites failures the model can act on into plain instructions.
func toolError(err error) error {
	switch {
	case errors.Is(err, sync.ErrUnauthenticated):
		return fmt.Errorf("no user configured: pass user_id or set CELLSYNC_IDENTITY_USER_ID")
	case errors.Is(err, sync.ErrReauthRequired):
		return fmt.Errorf("the CRM connection must be re-authorized before syncing: %w", err)
	default:
		return err
	}
}

func contactToOutput(v models.ContactView) ContactOutput {
	out := ContactOutput{
		ID:          v.ID,
		PhoneNumber: v.PhoneNumber,
		CreatedAt:   v.CreatedAt.Format(time.RFC3339),
		Records:     make([]CrmRecordOutput, 0, len(v.Records)),
	}
	for _, r := range v.Records {
		out.Records = append(out.Records, CrmRecordOutput{
			CRMType:    string(r.CRMType),
			ExternalID: r.ExternalID,
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			Email:      r.Email,
			Company:    r.Company,
			UpdatedAt:  r.UpdatedAt.Format(time.RFC3339),
		})
	}
	return out
}

func integrationToOutput(i *models.Integration) IntegrationOutput {
	out := IntegrationOutput{
		ID:           i.ID,
		CRMType:      string(i.CRMType),
		Scope:        string(i.Scope),
		CellID:       models.StringValue(i.CellID),
		ConnectionID: i.ConnectionID,
		Status:       i.Status,
		ErrorMessage: models.StringValue(i.ErrorMessage),
		SyncedCount:  i.SyncedCount,
	}
	if i.LastSyncedAt != nil {
		s := i.LastSyncedAt.Format(time.RFC3339)
		out.LastSyncedAt = &s
	}
	return out
}
