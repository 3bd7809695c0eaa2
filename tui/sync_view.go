// ABOUTME: Integrations view listing CRM links with their sync status
// ABOUTME: Triggers syncs for the selected or all integrations and keeps an activity log
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
)

const maxActivity = 5

type integrationsLoadedMsg struct {
	integrations []models.Integration
	err          error
}

// SyncCompleteMsg is sent when a sync operation completes.
type SyncCompleteMsg struct {
	IntegrationID string
	CRMType       models.CRMType
	Summary       *sync.SyncSummary
	Error         error
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("CRM Integrations"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n\n")
	}

	if len(m.integrations) == 0 {
		s.WriteString(messageStyle.Render("No integrations linked. Run 'cellsync integrations link <crm>' first."))
		s.WriteString("\n\n")
		s.WriteString(helpStyle.Render("r: Refresh • q: Quit"))
		return s.String()
	}

	s.WriteString(m.integrationsTable().View())
	s.WriteString("\n\n")

	if len(m.syncMessages) > 0 {
		s.WriteString(headerStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		start := 0
		if len(m.syncMessages) > maxActivity {
			start = len(m.syncMessages) - maxActivity
		}
		for _, line := range m.syncMessages[start:] {
			s.WriteString(messageStyle.Render("  " + line))
			s.WriteString("\n")
		}
	}

	s.WriteString(m.renderSyncHelp())
	return s.String()
}

func (m Model) integrationsTable() table.Model {
	columns := []table.Column{
		{Title: "CRM", Width: 12},
		{Title: "Scope", Width: 8},
		{Title: "Cell", Width: 14},
		{Title: "Status", Width: 14},
		{Title: "Last sync", Width: 16},
		{Title: "Contacts", Width: 9},
	}

	rows := make([]table.Row, 0, len(m.integrations))
	for _, i := range m.integrations {
		cell := models.StringValue(i.CellID)
		if cell == "" {
			cell = "all cells"
		}
		lastSync := "never"
		if i.LastSyncedAt != nil {
			lastSync = formatTimeSince(*i.LastSyncedAt)
		}
		rows = append(rows, table.Row{
			i.CRMType.DisplayName(),
			string(i.Scope),
			cell,
			m.statusLabel(i),
			lastSync,
			fmt.Sprintf("%d", i.SyncedCount),
		})
	}

	height := len(rows) + 1
	if limit := m.height - 12; limit > 2 && height > limit {
		height = limit
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	if m.selected < len(rows) {
		t.SetCursor(m.selected)
	}
	return t
}

func (m Model) statusLabel(i models.Integration) string {
	switch {
	case m.syncInProgress[i.ID] || i.Status == models.IntegrationStatusSyncing:
		return syncingStyle.Render("⟳ syncing")
	case i.Status == models.IntegrationStatusError:
		return errorStyle.Render("✗ error")
	default:
		return idleStyle.Render("✓ idle")
	}
}

func (m Model) renderSyncHelp() string {
	help := []string{
		"↑/↓: Select",
		"Enter: Sync selected",
		"a: Sync all",
		"c: Contacts",
		"r: Refresh",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) loadIntegrations() tea.Cmd {
	return func() tea.Msg {
		integrations, err := m.service.Integrations(m.ctx, m.userID, m.orgID)
		return integrationsLoadedMsg{integrations: integrations, err: err}
	}
}

func (m *Model) handleIntegrationsLoaded(msg integrationsLoadedMsg) {
	m.err = msg.err
	if msg.err != nil {
		return
	}
	m.integrations = msg.integrations
	if m.selected >= len(m.integrations) {
		m.selected = max(len(m.integrations)-1, 0)
	}
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.integrations)-1 {
			m.selected++
		}
	case "enter":
		if m.selected < len(m.integrations) {
			return m, m.startSync(m.integrations[m.selected])
		}
	case "a":
		cmds := make([]tea.Cmd, 0, len(m.integrations))
		for _, i := range m.integrations {
			if cmd := m.startSync(i); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)
	case "c":
		if m.selected < len(m.integrations) {
			cellID := models.StringValue(m.integrations[m.selected].CellID)
			if cellID == "" {
				m.addSyncMessage("Account-wide integration: pick a per-cell integration to browse contacts")
				return m, nil
			}
			m.viewMode = ViewContacts
			m.contactsCell = cellID
			m.contacts = nil
			return m, m.loadContacts(cellID)
		}
	case "r":
		return m, m.loadIntegrations()
	}
	return m, nil
}

// startSync marks the integration busy and returns the command running it.
// A second start while one is running is ignored.
func (m *Model) startSync(i models.Integration) tea.Cmd {
	if m.syncInProgress[i.ID] {
		return nil
	}
	m.syncInProgress[i.ID] = true
	m.addSyncMessage(fmt.Sprintf("Starting %s sync...", i.CRMType.DisplayName()))

	req := sync.SyncRequest{
		CRMType: i.CRMType,
		UserID:  m.userID,
		OrgID:   m.orgID,
		CellID:  models.StringValue(i.CellID),
	}
	service, ctx := m.service, m.ctx
	return func() tea.Msg {
		summary, err := service.RunSync(ctx, req)
		return SyncCompleteMsg{IntegrationID: i.ID, CRMType: i.CRMType, Summary: summary, Error: err}
	}
}

// addSyncMessage adds a message to the sync message log.
func (m *Model) addSyncMessage(msg string) {
	timestamp := time.Now().Format("15:04:05")
	m.syncMessages = append(m.syncMessages, fmt.Sprintf("[%s] %s", timestamp, msg))
}

// handleSyncComplete handles sync completion messages.
func (m *Model) handleSyncComplete(msg SyncCompleteMsg) tea.Cmd {
	m.syncInProgress[msg.IntegrationID] = false

	if msg.Error != nil {
		m.addSyncMessage(fmt.Sprintf("✗ %s sync failed: %v", msg.CRMType.DisplayName(), msg.Error))
	} else if msg.Summary != nil {
		m.addSyncMessage("✓ " + msg.Summary.Message)
	}

	return m.loadIntegrations()
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
