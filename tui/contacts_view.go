// ABOUTME: Contacts view for one cell
// ABOUTME: Lists phone numbers with the CRM records attached to each
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/cellsync/models"
)

type contactsLoadedMsg struct {
	cellID   string
	contacts []models.ContactView
	err      error
}

func (m Model) loadContacts(cellID string) tea.Cmd {
	service, ctx, userID, orgID := m.service, m.ctx, m.userID, m.orgID
	return func() tea.Msg {
		contacts, err := service.CellContacts(ctx, userID, orgID, cellID)
		return contactsLoadedMsg{cellID: cellID, contacts: contacts, err: err}
	}
}

func (m *Model) handleContactsLoaded(msg contactsLoadedMsg) {
	if msg.cellID != m.contactsCell {
		return
	}
	m.err = msg.err
	m.contacts = msg.contacts
}

func (m Model) renderContactsView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("Contacts in %s", m.contactsCell)))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n\n")
	}

	if len(m.contacts) == 0 {
		s.WriteString(messageStyle.Render("No contacts yet"))
		s.WriteString("\n")
	} else {
		columns := []table.Column{
			{Title: "Phone", Width: 16},
			{Title: "Name", Width: 24},
			{Title: "Company", Width: 20},
			{Title: "CRMs", Width: 24},
		}

		rows := make([]table.Row, 0, len(m.contacts))
		for _, c := range m.contacts {
			rows = append(rows, contactRow(c))
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithHeight(max(min(len(rows)+1, m.height-8), 2)),
		)
		s.WriteString(t.View())
		s.WriteString("\n")
		s.WriteString(messageStyle.Render(fmt.Sprintf("%d contact(s)", len(m.contacts))))
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("Esc: Back • q: Quit"))
	return s.String()
}

func contactRow(c models.ContactView) table.Row {
	var name, company string
	crms := make([]string, 0, len(c.Records))
	for _, r := range c.Records {
		if name == "" {
			name = strings.TrimSpace(r.FirstName + " " + r.LastName)
		}
		if company == "" {
			company = r.Company
		}
		crms = append(crms, r.CRMType.DisplayName())
	}
	return table.Row{c.PhoneNumber, name, company, strings.Join(crms, ", ")}
}

func (m Model) handleContactsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.viewMode = ViewIntegrations
		m.contacts = nil
		m.contactsCell = ""
		m.err = nil
	}
	return m, nil
}
