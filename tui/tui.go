// ABOUTME: Terminal dashboard for CRM integrations using bubbletea
// ABOUTME: Shows integration status, runs syncs and browses a cell's contacts
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/cellsync/models"
	"github.com/harperreed/cellsync/sync"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewIntegrations ViewMode = iota
	ViewContacts
)

// Service is what the dashboard needs from the sync engine.
type Service interface {
	RunSync(ctx context.Context, req sync.SyncRequest) (*sync.SyncSummary, error)
	CellContacts(ctx context.Context, userID, orgID, cellID string) ([]models.ContactView, error)
	Integrations(ctx context.Context, userID, orgID string) ([]models.Integration, error)
}

// Model is the main bubbletea model
type Model struct {
	ctx     context.Context
	service Service
	userID  string
	orgID   string

	viewMode ViewMode

	// Integrations view state
	integrations   []models.Integration
	selected       int
	syncInProgress map[string]bool
	syncMessages   []string

	// Contacts view state
	contactsCell string
	contacts     []models.ContactView

	// UI state
	width  int
	height int
	err    error
}

// NewModel creates a dashboard acting as userID within orgID.
func NewModel(ctx context.Context, service Service, userID, orgID string) Model {
	return Model{
		ctx:            ctx,
		service:        service,
		userID:         userID,
		orgID:          orgID,
		viewMode:       ViewIntegrations,
		syncInProgress: make(map[string]bool),
		width:          80,
		height:         24,
	}
}

// Run starts the dashboard in the alternate screen.
func Run(ctx context.Context, service Service, userID, orgID string) error {
	p := tea.NewProgram(NewModel(ctx, service, userID, orgID), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadIntegrations()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case integrationsLoadedMsg:
		m.handleIntegrationsLoaded(msg)
		return m, nil
	case SyncCompleteMsg:
		return m, m.handleSyncComplete(msg)
	case contactsLoadedMsg:
		m.handleContactsLoaded(msg)
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewIntegrations:
		return m.renderSyncView()
	case ViewContacts:
		return m.renderContactsView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewIntegrations:
		return m.handleSyncKeys(msg)
	case ViewContacts:
		return m.handleContactsKeys(msg)
	}
	return m, nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	syncingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)
