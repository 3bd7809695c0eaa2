// ABOUTME: Tests for MCP tool, resource and prompt handlers
// ABOUTME: Uses a fake sync service to check identity defaults, output shaping and errors
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fakeService struct {
	syncReq      sync.SyncRequest
	linkReq      sync.LinkRequest
	contactsFor  string
	views        []models.ContactView
	integrations []models.Integration
	err          error
}

func (f *fakeService) RunSync(ctx context.Context, req sync.SyncRequest) (*sync.SyncSummary, error) {
	f.syncReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &sync.SyncSummary{RunID: "run-1", CRMType: req.CRMType, InsertedCount: 4, MergedCount: 1, TotalContacts: 6, CellsSynced: 1, Message: "ok"}, nil
}

func (f *fakeService) CellContacts(ctx context.Context, userID, orgID, cellID string) ([]models.ContactView, error) {
	f.contactsFor = userID + "/" + orgID + "/" + cellID
	return f.views, f.err
}

func (f *fakeService) Integrations(ctx context.Context, userID, orgID string) ([]models.Integration, error) {
	return f.integrations, f.err
}

func (f *fakeService) LinkIntegration(ctx context.Context, req sync.LinkRequest) (*models.Integration, error) {
	f.linkReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Integration{ID: "int-1", CRMType: req.CRMType, Scope: models.ScopeAccount, ConnectionID: "ca_1", Status: models.IntegrationStatusIdle}, nil
}

func TestSyncCRMUsesConfiguredIdentity(t *testing.T) {
	svc := &fakeService{}
	h := NewHandlers(svc, Identity{UserID: "user-1", OrgID: "org-1"})

	_, out, err := h.SyncCRM(context.Background(), nil, SyncCRMInput{CRMType: "hubspot", CellID: " cell-1 "})
	if err != nil {
		t.Fatalf("SyncCRM failed: %v", err)
	}

	want := sync.SyncRequest{CRMType: "hubspot", UserID: "user-1", OrgID: "org-1", CellID: "cell-1"}
	if svc.syncReq != want {
		t.Errorf("expected request %+v, got %+v", want, svc.syncReq)
	}
	if out.InsertedCount != 4 || out.MergedCount != 1 || out.TotalContacts != 6 {
		t.Errorf("unexpected counts: %+v", out)
	}
	if out.RunID != "run-1" {
		t.Errorf("expected run id run-1, got %q", out.RunID)
	}
}

func TestExplicitUserDropsConfiguredOrg(t *testing.T) {
	svc := &fakeService{}
	h := NewHandlers(svc, Identity{UserID: "user-1", OrgID: "org-1"})

	_, _, err := h.SyncCRM(context.Background(), nil, SyncCRMInput{CRMType: "zoho", CallerInput: CallerInput{UserID: "user-2"}})
	if err != nil {
		t.Fatalf("SyncCRM failed: %v", err)
	}
	if svc.syncReq.UserID != "user-2" || svc.syncReq.OrgID != "" {
		t.Errorf("expected user-2 with no org, got %+v", svc.syncReq)
	}
}

func TestSyncCRMRequiresType(t *testing.T) {
	h := NewHandlers(&fakeService{}, Identity{UserID: "user-1"})
	if _, _, err := h.SyncCRM(context.Background(), nil, SyncCRMInput{}); err == nil {
		t.Error("expected error for missing crm_type")
	}
}

func TestToolErrors(t *testing.T) {
	h := NewHandlers(&fakeService{err: fmt.Errorf("%w: token revoked", sync.ErrReauthRequired)}, Identity{UserID: "user-1"})
	_, _, err := h.SyncCRM(context.Background(), nil, SyncCRMInput{CRMType: "hubspot", CellID: "cell-1"})
	if err == nil || !strings.Contains(err.Error(), "re-authorized") {
		t.Errorf("expected re-authorization hint, got %v", err)
	}

	h = NewHandlers(&fakeService{err: sync.ErrUnauthenticated}, Identity{})
	_, _, err = h.ListIntegrations(context.Background(), nil, CallerInput{})
	if err == nil || !strings.Contains(err.Error(), "CELLSYNC_IDENTITY_USER_ID") {
		t.Errorf("expected identity hint, got %v", err)
	}
}

func TestListCellContactsShapesOutput(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{views: []models.ContactView{
		{
			ContactMapping: models.ContactMapping{ID: "m1", PhoneNumber: "+15149791879", CellID: "cell-1", CreatedAt: created},
			Records: []models.CrmContact{
				{CRMType: models.CRMHubSpot, ContactAttributes: models.ContactAttributes{ExternalID: "1", FirstName: "Ada"}, UpdatedAt: created},
			},
		},
		{ContactMapping: models.ContactMapping{ID: "m2", PhoneNumber: "+12015550123", CellID: "cell-1", CreatedAt: created}},
	}}
	h := NewHandlers(svc, Identity{UserID: "user-1"})

	_, out, err := h.ListCellContacts(context.Background(), nil, ListCellContactsInput{CellID: "cell-1"})
	if err != nil {
		t.Fatalf("ListCellContacts failed: %v", err)
	}
	if svc.contactsFor != "user-1//cell-1" {
		t.Errorf("unexpected lookup %q", svc.contactsFor)
	}
	if out.Count != 2 {
		t.Fatalf("expected 2 contacts, got %d", out.Count)
	}
	if out.Contacts[0].CreatedAt != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected timestamp %q", out.Contacts[0].CreatedAt)
	}
	if len(out.Contacts[0].Records) != 1 || out.Contacts[0].Records[0].FirstName != "Ada" {
		t.Errorf("unexpected records %+v", out.Contacts[0].Records)
	}
	if out.Contacts[1].Records == nil {
		t.Error("records should be an empty list, not null")
	}

	if _, _, err := h.ListCellContacts(context.Background(), nil, ListCellContactsInput{}); err == nil {
		t.Error("expected error for missing cell_id")
	}
}

func TestLinkIntegrationTool(t *testing.T) {
	svc := &fakeService{}
	h := NewHandlers(svc, Identity{UserID: "user-1", OrgID: "org-1"})

	_, out, err := h.LinkIntegration(context.Background(), nil, LinkIntegrationInput{CRMType: "attio"})
	if err != nil {
		t.Fatalf("LinkIntegration failed: %v", err)
	}
	if svc.linkReq.CRMType != "attio" || svc.linkReq.OrgID != "org-1" || svc.linkReq.ConnectionID != "" {
		t.Errorf("unexpected link request %+v", svc.linkReq)
	}
	if out.ID != "int-1" || out.Scope != "account" || out.LastSyncedAt != nil {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestReadResource(t *testing.T) {
	synced := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{integrations: []models.Integration{
		{ID: "int-1", CRMType: models.CRMZoho, Scope: models.ScopeAccount, Status: models.IntegrationStatusIdle, LastSyncedAt: &synced, SyncedCount: 12},
	}}
	h := NewHandlers(svc, Identity{UserID: "user-1"})

	res, err := h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "cellsync://integrations"}})
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	var out ListIntegrationsOutput
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &out); err != nil {
		t.Fatalf("invalid resource json: %v", err)
	}
	if len(out.Integrations) != 1 || out.Integrations[0].SyncedCount != 12 {
		t.Errorf("unexpected integrations %+v", out.Integrations)
	}

	_, err = h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: "cellsync://cells/cell-9/contacts"}})
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	if svc.contactsFor != "user-1//cell-9" {
		t.Errorf("unexpected lookup %q", svc.contactsFor)
	}

	for _, uri := range []string{"crm://contacts", "cellsync://deals", "cellsync://cells//contacts"} {
		if _, err := h.ReadResource(context.Background(), &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}); err == nil {
			t.Errorf("expected error for %s", uri)
		}
	}
}

func TestGetPrompt(t *testing.T) {
	msg := "token expired"
	svc := &fakeService{integrations: []models.Integration{
		{ID: "int-1", CRMType: models.CRMHubSpot, Scope: models.ScopeCell, CellID: models.StringPtr("cell-1"), Status: models.IntegrationStatusError, ErrorMessage: &msg},
	}}
	h := NewHandlers(svc, Identity{UserID: "user-1"})

	res, err := h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "sync-health"}})
	if err != nil {
		t.Fatalf("GetPrompt failed: %v", err)
	}
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	if !strings.Contains(text, "token expired") || !strings.Contains(text, "never synced") {
		t.Errorf("prompt missing integration details: %s", text)
	}

	if _, err := h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "cell-contact-review"}}); err == nil {
		t.Error("expected error without cell_id")
	}
	if _, err := h.GetPrompt(context.Background(), &mcp.GetPromptRequest{Params: &mcp.GetPromptParams{Name: "nope"}}); err == nil {
		t.Error("expected error for unknown prompt")
	}
}

func TestNewServerRegistersEverything(t *testing.T) {
	if NewServer(NewHandlers(&fakeService{}, Identity{}), "test") == nil {
		t.Fatal("expected server")
	}
}
