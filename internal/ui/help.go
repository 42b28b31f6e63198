package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// anyPanel marks help groups whose keys work regardless of focus.
const anyPanel Panel = -1

var (
	helpCloseKeys = key.NewBinding(key.WithKeys("?", "esc", "q"))

	filterKey = key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter incidents"),
	)
	agentScrollKey = key.NewBinding(
		key.WithKeys("j", "k", "up", "down"),
		key.WithHelp("j/k", "scroll agent cards"),
	)
)

// helpGroup is one titled block of the key reference.
type helpGroup struct {
	title    string
	panel    Panel
	bindings []key.Binding
}

// helpGroups lists the dashboard keys with the focused panel's block first.
func helpGroups(focused Panel) []helpGroup {
	g, l, d := GlobalKeys, ListKeys, DetailKeys
	remediation := helpGroup{"Remediation", anyPanel, []key.Binding{g.Inject, g.Scan, g.Analyse, g.Autofix, g.Merge}}
	navigation := helpGroup{"Navigation", anyPanel, []key.Binding{
		g.Tab, g.ShiftTab, g.Panel1, g.Panel2, g.Panel3, g.Zoom, g.Refresh, g.Help, g.Quit,
	}}
	panels := []helpGroup{
		{PanelLeft.String(), PanelLeft, []key.Binding{l.Up, l.Down, l.Select, l.PrevTab, l.NextTab, filterKey}},
		{PanelCenter.String(), PanelCenter, []key.Binding{d.Up, d.Down, d.HalfDown, d.HalfUp, d.Top, d.Bottom}},
		{PanelRight.String(), PanelRight, []key.Binding{agentScrollKey}},
	}

	var out []helpGroup
	for _, p := range panels {
		if p.panel == focused {
			out = append(out, p)
		}
	}
	out = append(out, remediation, navigation)
	for _, p := range panels {
		if p.panel != focused {
			out = append(out, p)
		}
	}
	return out
}

// renderHelpGroups lays the groups out as two columns of key and description.
func renderHelpGroups(groups []helpGroup, focused Panel) string {
	keyWidth := 0
	for _, grp := range groups {
		for _, b := range grp.bindings {
			keyWidth = max(keyWidth, lipgloss.Width(b.Help().Key))
		}
	}
	keyCol := helpKeyStyle.Width(keyWidth + 3)

	blocks := make([]string, 0, len(groups))
	for _, grp := range groups {
		title := helpGroupStyle.Render(grp.title)
		if grp.panel == focused {
			title = helpFocusStyle.Render("▸ " + grp.title + " (focused)")
		}
		rows := []string{title}
		for _, b := range grp.bindings {
			if !b.Enabled() {
				continue
			}
			h := b.Help()
			rows = append(rows, keyCol.Render(h.Key)+helpDescStyle.Render(h.Desc))
		}
		blocks = append(blocks, strings.Join(rows, "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// HelpOverlayModel is the centered key reference opened with "?".
type HelpOverlayModel struct {
	viewport viewport.Model
	focused  Panel
	visible  bool
	ready    bool

	termW, termH int
	boxW, boxH   int
}

func NewHelpOverlayModel() HelpOverlayModel {
	return HelpOverlayModel{}
}

// Show opens the overlay for the panel that had focus.
func (m *HelpOverlayModel) Show(focused Panel) {
	m.focused = focused
	m.visible = true
	m.reload()
}

func (m *HelpOverlayModel) Hide() {
	m.visible = false
}

func (m HelpOverlayModel) IsVisible() bool {
	return m.visible
}

// SetSize sizes the box to roughly two thirds of the terminal.
func (m *HelpOverlayModel) SetSize(termWidth, termHeight int) {
	m.termW, m.termH = termWidth, termHeight
	m.boxW = min(max(termWidth*2/3, 48), termWidth)
	m.boxH = min(max(termHeight*3/4, 14), termHeight)

	// Border and padding take 4 columns, the scrollbar 1 more. Border,
	// header and footer take 6 rows.
	vw, vh := max(m.boxW-5, 1), max(m.boxH-6, 1)
	if !m.ready {
		m.viewport = viewport.New(vw, vh)
		m.ready = true
	} else {
		m.viewport.Width, m.viewport.Height = vw, vh
	}
	m.reload()
}

func (m *HelpOverlayModel) reload() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderHelpGroups(helpGroups(m.focused), m.focused))
	m.viewport.GotoTop()
}

func (m HelpOverlayModel) Update(msg tea.Msg) (HelpOverlayModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.Matches(km, helpCloseKeys) {
		m.Hide()
		return m, func() tea.Msg { return HelpClosedMsg{} }
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(km)
	return m, cmd
}

func (m HelpOverlayModel) View() string {
	if !m.visible || !m.ready {
		return ""
	}
	inner := m.boxW - 4

	body := m.viewport.View()
	if bar := renderScrollbar(m.viewport, nil); bar != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, bar)
	}
	header := lipgloss.PlaceHorizontal(inner, lipgloss.Center,
		helpTitleStyle.Render(" Keys · "+m.focused.String()+" "))
	footer := lipgloss.PlaceHorizontal(inner, lipgloss.Center,
		helpFooterStyle.Render("? / Esc / q to close"))

	box := helpBoxStyle.Width(m.boxW - 2).Height(m.boxH - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, header, "", body, "", footer))
	return lipgloss.Place(m.termW, m.termH, lipgloss.Center, lipgloss.Center, box)
}

var (
	helpBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
	helpTitleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("62"))
	helpFooterStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("244"))
	helpGroupStyle  = sectionStyle
	helpFocusStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	helpKeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	helpDescStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)
