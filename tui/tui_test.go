// ABOUTME: Tests for the integrations dashboard model
// ABOUTME: Drives key handling and command results with a fake sync service
package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
)

type fakeService struct {
	integrations []models.Integration
	contacts     []models.ContactView
	syncErr      error
	syncReqs     []sync.SyncRequest
}

func (f *fakeService) RunSync(ctx context.Context, req sync.SyncRequest) (*sync.SyncSummary, error) {
	f.syncReqs = append(f.syncReqs, req)
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &sync.SyncSummary{CRMType: req.CRMType, Message: "Synced 3 " + req.CRMType.DisplayName() + " contacts"}, nil
}

func (f *fakeService) CellContacts(ctx context.Context, userID, orgID, cellID string) ([]models.ContactView, error) {
	return f.contacts, nil
}

func (f *fakeService) Integrations(ctx context.Context, userID, orgID string) ([]models.Integration, error) {
	return f.integrations, nil
}

func newService() *fakeService {
	return &fakeService{
		integrations: []models.Integration{
			{ID: "int-1", CRMType: models.CRMHubSpot, Scope: models.ScopeCell, CellID: models.StringPtr("cell-1"), Status: models.IntegrationStatusIdle},
			{ID: "int-2", CRMType: models.CRMZoho, Scope: models.ScopeAccount, Status: models.IntegrationStatusError},
		},
		contacts: []models.ContactView{
			{
				ContactMapping: models.ContactMapping{ID: "m1", PhoneNumber: "+15149791879"},
				Records: []models.CrmContact{
					{CRMType: models.CRMHubSpot, ContactAttributes: models.ContactAttributes{FirstName: "Ada", LastName: "Lovelace", Company: "Engines"}},
				},
			},
		},
	}
}

// loaded returns a model with integrations already fetched.
func loaded(t *testing.T, svc *fakeService) Model {
	t.Helper()
	m := NewModel(context.Background(), svc, "user-1", "org-1")
	updated, _ := m.Update(m.Init()())
	return updated.(Model)
}

func TestInitLoadsIntegrations(t *testing.T) {
	m := loaded(t, newService())
	if len(m.integrations) != 2 {
		t.Fatalf("Expected 2 integrations, got %d", len(m.integrations))
	}

	view := m.View()
	if !strings.Contains(view, "HubSpot") || !strings.Contains(view, "Zoho") {
		t.Errorf("View should list both integrations:\n%s", view)
	}
}

func TestEmptyDashboard(t *testing.T) {
	m := loaded(t, &fakeService{})
	if !strings.Contains(m.View(), "No integrations linked") {
		t.Error("Expected empty state message")
	}
}

func TestSyncKeyNavigation(t *testing.T) {
	m := loaded(t, newService())

	updated, _ := m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	if m.selected != 1 {
		t.Errorf("Expected selected=1, got %d", m.selected)
	}

	updated, _ = m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(Model)
	if m.selected != 1 {
		t.Errorf("Selection should stop at the last row, got %d", m.selected)
	}

	updated, _ = m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyUp})
	m = updated.(Model)
	if m.selected != 0 {
		t.Errorf("Expected selected=0, got %d", m.selected)
	}
}

func TestEnterRunsSyncForSelected(t *testing.T) {
	svc := newService()
	m := loaded(t, svc)

	updated, cmd := m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("Expected a sync command")
	}
	if !m.syncInProgress["int-1"] {
		t.Error("Sync should be marked in progress")
	}

	// A second Enter while running is ignored.
	_, again := m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyEnter})
	if again != nil {
		t.Error("Expected no command while a sync is running")
	}

	msg := cmd().(SyncCompleteMsg)
	if len(svc.syncReqs) != 1 {
		t.Fatalf("Expected 1 sync request, got %d", len(svc.syncReqs))
	}
	want := sync.SyncRequest{CRMType: models.CRMHubSpot, UserID: "user-1", OrgID: "org-1", CellID: "cell-1"}
	if svc.syncReqs[0] != want {
		t.Errorf("Expected request %+v, got %+v", want, svc.syncReqs[0])
	}

	updated, reload := m.Update(msg)
	m = updated.(Model)
	if m.syncInProgress["int-1"] {
		t.Error("Sync should not be in progress after completion")
	}
	if reload == nil {
		t.Error("Completion should reload integrations")
	}
	last := m.syncMessages[len(m.syncMessages)-1]
	if !strings.Contains(last, "✓ Synced 3 HubSpot contacts") {
		t.Errorf("Unexpected activity line %q", last)
	}
}

func TestSyncCompleteWithError(t *testing.T) {
	svc := newService()
	svc.syncErr = errors.New("token revoked")
	m := loaded(t, svc)

	updated, cmd := m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	m = updated.(Model)
	if cmd == nil {
		t.Fatal("Expected batch command")
	}
	if !m.syncInProgress["int-1"] || !m.syncInProgress["int-2"] {
		t.Error("Both integrations should be syncing")
	}

	_ = m.handleSyncComplete(SyncCompleteMsg{IntegrationID: "int-2", CRMType: models.CRMZoho, Error: svc.syncErr})
	last := m.syncMessages[len(m.syncMessages)-1]
	if !strings.Contains(last, "Zoho sync failed: token revoked") {
		t.Errorf("Unexpected activity line %q", last)
	}
}

func TestContactsView(t *testing.T) {
	m := loaded(t, newService())

	updated, cmd := m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = updated.(Model)
	if m.viewMode != ViewContacts || cmd == nil {
		t.Fatal("Expected to switch to the contacts view")
	}

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	view := m.View()
	if !strings.Contains(view, "+15149791879") || !strings.Contains(view, "Ada Lovelace") {
		t.Errorf("Contacts view missing row:\n%s", view)
	}

	updated, _ = m.handleContactsKeys(tea.KeyMsg{Type: tea.KeyEsc})
	m = updated.(Model)
	if m.viewMode != ViewIntegrations {
		t.Error("Escape should return to integrations")
	}
}

func TestContactsNeedsCellIntegration(t *testing.T) {
	m := loaded(t, newService())
	m.selected = 1

	updated, cmd := m.handleSyncKeys(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = updated.(Model)
	if cmd != nil || m.viewMode != ViewIntegrations {
		t.Error("Account-wide integrations have no single cell to browse")
	}
	if len(m.syncMessages) == 0 {
		t.Error("Expected an explanatory message")
	}
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{1 * time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{1 * time.Hour, "1 hour ago"},
		{3 * time.Hour, "3 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, tt := range tests {
		got := formatTimeSince(time.Now().Add(-tt.ago - time.Second))
		if got != tt.want {
			t.Errorf("formatTimeSince(%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}
