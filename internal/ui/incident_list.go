package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/shhac/devcopilot/internal/incident"
)

// IncidentTab identifies which sub-tab is active.
type IncidentTab int

const (
	TabOpen IncidentTab = iota
	TabResolved
)

// loadState tracks the data-fetch lifecycle.
type loadState int

const (
	stateLoading loadState = iota
	stateLoaded
	stateError
)

// IncidentItem represents an incident in the list.
type IncidentItem struct {
	inc incident.Incident
}

func (i IncidentItem) FilterValue() string {
	return i.inc.IncidentID + " " + i.inc.Summary + " " + string(i.inc.Status)
}
func (i IncidentItem) Title() string { return i.inc.IncidentID }
func (i IncidentItem) Description() string {
	return fmt.Sprintf("%s · %s", i.inc.Summary, humanize.Time(i.inc.CreatedAt))
}

// incidentItemDelegate renders list rows with a status badge. The incident
// open in the detail panel gets a ▸ marker.
type incidentItemDelegate struct {
	selectedID *string // points to IncidentListModel.selectedID
}

func (d incidentItemDelegate) Height() int                             { return 2 }
func (d incidentItemDelegate) Spacing() int                            { return 1 }
func (d incidentItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d incidentItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(IncidentItem)
	if !ok || m.Width() <= 0 {
		return
	}

	badge := incidentBadge(i.inc.Status)
	badgeWidth := lipgloss.Width(badge) + 1

	textWidth := max(m.Width()-4, 1)
	title := ansi.Truncate(i.Title(), max(textWidth-badgeWidth, 1), "…")
	desc := ansi.Truncate(i.Description(), textWidth, "…")

	isCursor := index == m.Index()
	isActive := d.selectedID != nil && *d.selectedID != "" && i.inc.IncidentID == *d.selectedID

	switch {
	case isCursor:
		titleStyle := lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("62")).
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Padding(0, 0, 0, 1)
		descStyle := titleStyle.Bold(false).Foreground(lipgloss.Color("99"))
		title = titleStyle.Render(title)
		desc = descStyle.Render(desc)
	case isActive:
		marker := lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).Render("▸ ")
		title = marker + lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true).Render(title)
		desc = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Padding(0, 0, 0, 2).Render(desc)
	default:
		titleStyle := lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#dddddd"}).
			Padding(0, 0, 0, 2)
		descStyle := titleStyle.Foreground(lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"})
		title = titleStyle.Render(title)
		desc = descStyle.Render(desc)
	}

	fmt.Fprintf(w, "%s %s\n%s", title, badge, desc)
}

// IncidentListModel manages the incident list panel.
type IncidentListModel struct {
	list      list.Model
	spinner   spinner.Model
	activeTab IncidentTab
	width     int
	height    int
	focused   bool

	// Heap-allocated so the delegate's pointer survives value copies.
	selectedID *string

	state    loadState
	errMsg   string
	open     []list.Item
	resolved []list.Item
}

func NewIncidentListModel() IncidentListModel {
	selected := new(string)

	l := list.New(nil, incidentItemDelegate{selectedID: selected}, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.FilterInput.Placeholder = "id, summary, status…"
	l.DisableQuitKeybindings()

	return IncidentListModel{
		list:       l,
		spinner:    newLoadingSpinner(),
		activeTab:  TabOpen,
		state:      stateLoading,
		selectedID: selected,
	}
}

// SetSelected marks which incident is open in the detail panel.
func (m *IncidentListModel) SetSelected(id string) {
	*m.selectedID = id
}

// SetLoading puts the panel into loading state.
func (m *IncidentListModel) SetLoading() {
	m.state = stateLoading
	m.errMsg = ""
}

// SetError puts the panel into error state with a message.
func (m *IncidentListModel) SetError(err string) {
	m.state = stateError
	m.errMsg = err
}

// SetIncidents splits incidents into the open and resolved tabs and keeps
// the cursor on the same incident when it is still listed.
func (m *IncidentListModel) SetIncidents(incidents []incident.Incident) {
	cursorID := m.CursorID()

	m.open = nil
	m.resolved = nil
	for _, inc := range incidents {
		if inc.Status == incident.StatusResolved {
			m.resolved = append(m.resolved, IncidentItem{inc: inc})
		} else {
			m.open = append(m.open, IncidentItem{inc: inc})
		}
	}
	m.state = stateLoaded
	m.errMsg = ""
	m.showActiveTab()

	if cursorID == "" {
		return
	}
	for idx, it := range m.list.Items() {
		if it.(IncidentItem).inc.IncidentID == cursorID {
			m.list.Select(idx)
			return
		}
	}
}

// Lookup returns the incident with the given id from either tab.
func (m IncidentListModel) Lookup(id string) (incident.Incident, bool) {
	for _, items := range [][]list.Item{m.open, m.resolved} {
		for _, it := range items {
			if inc := it.(IncidentItem).inc; inc.IncidentID == id {
				return inc, true
			}
		}
	}
	return incident.Incident{}, false
}

// CursorID returns the id of the incident under the cursor, or "".
func (m IncidentListModel) CursorID() string {
	if item, ok := m.list.SelectedItem().(IncidentItem); ok {
		return item.inc.IncidentID
	}
	return ""
}

func (m *IncidentListModel) showActiveTab() {
	if m.activeTab == TabResolved {
		m.list.SetItems(m.resolved)
	} else {
		m.list.SetItems(m.open)
	}
}

// IsFiltering returns true when the user is actively typing in the filter input.
func (m IncidentListModel) IsFiltering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m IncidentListModel) Update(msg tea.Msg) (IncidentListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.state == stateLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		if m.IsFiltering() {
			break
		}
		switch {
		case key.Matches(msg, ListKeys.PrevTab):
			if m.activeTab == TabResolved {
				m.activeTab = TabOpen
				m.list.ResetFilter()
				m.showActiveTab()
			}
			return m, nil
		case key.Matches(msg, ListKeys.NextTab):
			if m.activeTab == TabOpen {
				m.activeTab = TabResolved
				m.list.ResetFilter()
				m.showActiveTab()
			}
			return m, nil
		case key.Matches(msg, ListKeys.Select):
			if id := m.CursorID(); id != "" {
				return m, func() tea.Msg { return IncidentSelectedMsg{IncidentID: id} }
			}
			return m, nil
		}
	}

	if m.state == stateLoaded {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *IncidentListModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	// borders (2), tab header (2), padding
	m.list.SetSize(max(width-4, 1), max(height-5, 1))
}

func (m *IncidentListModel) SetFocused(focused bool) {
	m.focused = focused
}

func (m IncidentListModel) View() string {
	var content string
	switch m.state {
	case stateLoading:
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Padding(1, 2).
			Render(m.spinner.View() + " Loading incidents...")
	case stateError:
		content = renderErrorWithHint(m.errMsg, "Press r to retry")
	case stateLoaded:
		switch {
		case len(m.list.Items()) > 0:
			content = m.list.View()
		case m.activeTab == TabOpen:
			content = renderEmptyState("No open incidents", "Press i to inject a bug, then s to scan")
		default:
			content = renderEmptyState("Nothing resolved yet", "")
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), content)
	return panelStyle(m.focused, m.width-2, m.height-2).Render(inner)
}

func (m IncidentListModel) renderTabs() string {
	openLabel, resolvedLabel := "Open", "Resolved"
	if m.state == stateLoaded {
		openLabel = fmt.Sprintf("Open (%d)", len(m.open))
		resolvedLabel = fmt.Sprintf("Resolved (%d)", len(m.resolved))
	}

	active := panelHeaderStyle(m.focused).Underline(true)
	inactive := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	if m.activeTab == TabOpen {
		return strings.Join([]string{active.Render(openLabel), inactive.Render(resolvedLabel)}, " ")
	}
	return strings.Join([]string{inactive.Render(openLabel), active.Render(resolvedLabel)}, " ")
}
