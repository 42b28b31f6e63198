package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/shhac/devcopilot/internal/agent"
)

// AgentPanelModel renders the five agent cards of one board.
type AgentPanelModel struct {
	viewport viewport.Model
	width    int
	height   int
	focused  bool
	ready    bool

	summary *agent.Summary
	errMsg  string
	now     func() time.Time
}

func NewAgentPanelModel() AgentPanelModel {
	return AgentPanelModel{now: time.Now}
}

// IncidentID returns the board being shown ("" is the system board).
func (m AgentPanelModel) IncidentID() string {
	if m.summary == nil {
		return agent.SystemBoard
	}
	return m.summary.IncidentID
}

// SetSummary replaces the board contents.
func (m *AgentPanelModel) SetSummary(s *agent.Summary) {
	m.summary = s
	m.errMsg = ""
	m.refresh()
}

// SetError shows a fetch error in place of the cards.
func (m *AgentPanelModel) SetError(err string) {
	m.errMsg = err
	m.refresh()
}

func (m *AgentPanelModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	innerW, innerH := max(width-4, 1), max(height-4, 1)
	if !m.ready {
		m.viewport = viewport.New(innerW, innerH)
		m.ready = true
	} else {
		m.viewport.Width = innerW
		m.viewport.Height = innerH
	}
	m.refresh()
}

func (m *AgentPanelModel) SetFocused(focused bool) {
	m.focused = focused
}

func (m AgentPanelModel) Update(msg tea.Msg) (AgentPanelModel, tea.Cmd) {
	if !m.ready {
		return m, nil
	}
	if _, ok := msg.(tea.KeyMsg); !ok {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m AgentPanelModel) View() string {
	header := panelHeaderStyle(m.focused).Render("Agents")
	if m.summary != nil {
		board := "system"
		if m.summary.IncidentID != agent.SystemBoard {
			board = m.summary.IncidentID
		}
		header += " " + detailMetaStyle.Render(board) + " " + agentBadge(m.summary.OverallStatus)
	}

	var body string
	if m.ready {
		body = m.viewport.View()
	}
	inner := lipgloss.JoinVertical(lipgloss.Left, header, body)
	return panelStyle(m.focused, m.width-2, m.height-2).Render(inner)
}

func (m *AgentPanelModel) refresh() {
	if !m.ready {
		return
	}
	switch {
	case m.errMsg != "":
		m.viewport.SetContent(renderErrorWithHint(m.errMsg, "Press r to retry"))
	case m.summary == nil:
		m.viewport.SetContent(renderEmptyState("Waiting for agents...", ""))
	default:
		m.viewport.SetContent(renderAgentCards(m.summary.Agents, m.now(), m.viewport.Width))
	}
}

// renderAgentCards renders one card per agent relative to now.
func renderAgentCards(agents []agent.Agent, now time.Time, width int) string {
	cards := make([]string, 0, len(agents))
	for _, a := range agents {
		glyph := agentGlyphs[a.Icon]
		if glyph == "" {
			glyph = "•"
		}
		name := cardNameStyle.Render(glyph + " " + a.Name)
		lines := []string{
			ansi.Truncate(name+" "+agentBadge(a.Status), width, "…"),
			cardMetaStyle.Render(ansi.Truncate(lastActivity(a.LastActivity, now), width, "…")),
		}
		if a.Metrics != nil {
			lines = append(lines, cardMetaStyle.Render(
				"memories "+humanize.Comma(int64(a.Metrics.Usage))+" · peak "+humanize.Comma(int64(a.Metrics.Peak))))
		}
		cards = append(cards, strings.Join(lines, "\n"))
	}
	return strings.Join(cards, "\n\n")
}

func lastActivity(t, now time.Time) string {
	if t.IsZero() {
		return "no activity"
	}
	return "active " + humanize.RelTime(t, now, "ago", "from now")
}
