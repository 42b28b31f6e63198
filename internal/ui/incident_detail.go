package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/repo"
	"github.com/shhac/devcopilot/internal/simulator"
)

const timelineLayout = "15:04:05"

// IncidentDetailModel shows the selected incident, its analysis, the fix
// pull request and the affected source.
type IncidentDetailModel struct {
	viewport viewport.Model
	md       detailRenderer
	width    int
	height   int
	focused  bool
	ready    bool

	inc     *incident.Incident
	pr      *repo.PullRequest
	snippet string
	errMsg  string

	// snippetLine is the content line where the source listing starts, or -1.
	snippetLine int
}

func NewIncidentDetailModel() IncidentDetailModel {
	return IncidentDetailModel{snippetLine: -1}
}

// IncidentID returns the id of the incident being shown, or "".
func (m IncidentDetailModel) IncidentID() string {
	if m.inc == nil {
		return ""
	}
	return m.inc.IncidentID
}

// Incident returns the incident being shown.
func (m IncidentDetailModel) Incident() *incident.Incident {
	return m.inc
}

// PullRequest returns the fix pull request, if one has been loaded.
func (m IncidentDetailModel) PullRequest() *repo.PullRequest {
	return m.pr
}

// SetIncident shows inc. Switching to a different incident drops the
// previously loaded pull request and source.
func (m *IncidentDetailModel) SetIncident(inc incident.Incident) {
	switched := m.inc == nil || m.inc.IncidentID != inc.IncidentID
	if switched {
		m.pr = nil
		m.snippet = ""
		m.errMsg = ""
	}
	m.inc = &inc
	m.refresh(switched)
}

// SetDetail stores the pull request and source loaded for the current incident.
func (m *IncidentDetailModel) SetDetail(msg DetailLoadedMsg) {
	if msg.IncidentID != m.IncidentID() {
		return
	}
	if msg.Err != nil {
		m.errMsg = formatUserError(msg.Err)
	} else {
		m.errMsg = ""
		m.pr = msg.PR
		m.snippet = msg.Snippet
	}
	m.refresh(false)
}

// SetPullRequest replaces the fix pull request after an action.
func (m *IncidentDetailModel) SetPullRequest(pr *repo.PullRequest) {
	m.pr = pr
	m.refresh(false)
}

func (m *IncidentDetailModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	// leave room for the border and the scrollbar gutter
	innerW, innerH := max(width-6, 1), max(height-5, 1)
	if !m.ready {
		m.viewport = viewport.New(innerW, innerH)
		m.ready = true
	} else {
		m.viewport.Width = innerW
		m.viewport.Height = innerH
	}
	m.refresh(false)
}

func (m *IncidentDetailModel) SetFocused(focused bool) {
	m.focused = focused
}

func (m IncidentDetailModel) Update(msg tea.Msg) (IncidentDetailModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || !m.ready {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, DetailKeys.Top):
		m.viewport.GotoTop()
	case key.Matches(keyMsg, DetailKeys.Bottom):
		m.viewport.GotoBottom()
	case key.Matches(keyMsg, DetailKeys.HalfDown):
		m.viewport.HalfViewDown()
	case key.Matches(keyMsg, DetailKeys.HalfUp):
		m.viewport.HalfViewUp()
	default:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m IncidentDetailModel) View() string {
	header := panelHeaderStyle(m.focused).Render("Detail")
	if m.inc != nil {
		header += " " + detailMetaStyle.Render(m.inc.IncidentID)
	}

	var body string
	switch {
	case m.inc == nil:
		body = renderEmptyState("No incident selected", "Pick one from the list with Enter")
	case !m.ready:
		body = ""
	default:
		body = m.viewport.View()
		var marks []int
		if m.snippetLine >= 0 {
			marks = []int{m.snippetLine}
		}
		if bar := renderScrollbar(m.viewport, marks); bar != "" {
			body = lipgloss.JoinHorizontal(lipgloss.Top, body, " ", bar)
		}
	}

	parts := []string{header, body}
	if m.ready && m.inc != nil {
		if ind := scrollIndicator(m.viewport, m.viewport.Width); ind != "" {
			parts = append(parts, ind)
		}
	}
	inner := lipgloss.JoinVertical(lipgloss.Left, parts...)
	return panelStyle(m.focused, m.width-2, m.height-2).Render(inner)
}

// refresh re-renders the viewport content. top resets the scroll position.
func (m *IncidentDetailModel) refresh(top bool) {
	if !m.ready || m.inc == nil {
		return
	}
	width := m.viewport.Width

	var sections []string
	sections = append(sections, detailTitleStyle.Render(m.inc.Summary)+" "+incidentBadge(m.inc.Status))
	if m.errMsg != "" {
		sections = append(sections, renderErrorWithHint(m.errMsg, "Press r to retry"))
	}
	sections = append(sections, m.md.Render(incidentMarkdown(*m.inc, m.pr), width))
	m.snippetLine = -1
	if m.snippet != "" {
		m.snippetLine = strings.Count(strings.Join(sections, "\n\n"), "\n") + 2
		sections = append(sections,
			sectionStyle.Render(simulator.BugPath+" @ "+repo.ShortID(m.inc.CommitID, 7)),
			highlightCode(m.snippet, simulator.BugPath))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if top {
		m.viewport.GotoTop()
	}
}

// incidentMarkdown builds the markdown body of the detail panel.
func incidentMarkdown(inc incident.Incident, pr *repo.PullRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Commit** `%s` · **Repo** `%s`\n\n", repo.ShortID(inc.CommitID, 7), inc.RepoID)
	if inc.ErrorContext != "" {
		fmt.Fprintf(&b, "> %s\n\n", inc.ErrorContext)
	}

	if len(inc.Findings) > 0 {
		b.WriteString("## Findings\n\n")
		for _, f := range inc.Findings {
			fmt.Fprintf(&b, "- %s\n", f)
		}
		b.WriteString("\n")
	}

	if inc.GeminiExplanation != nil {
		b.WriteString("## Analysis\n\n")
		b.WriteString(*inc.GeminiExplanation + "\n\n")
		if inc.RootCause != "" {
			fmt.Fprintf(&b, "**Root cause:** %s\n\n", inc.RootCause)
		}
		if inc.SecurityImpact != "" {
			fmt.Fprintf(&b, "**Security impact:** %s\n\n", inc.SecurityImpact)
		}
	}

	if len(inc.GeminiSuggestions) > 0 {
		b.WriteString("## Suggested fixes\n\n")
		for i, s := range inc.GeminiSuggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		b.WriteString("\n")
	}

	if pr != nil {
		fmt.Fprintf(&b, "## Pull request %s (%s)\n\n", pr.PRID, pr.Status)
		fmt.Fprintf(&b, "`%s` → `%s`\n\n", pr.SourceBranch, pr.TargetBranch)
		if pr.Description != "" {
			b.WriteString(pr.Description + "\n\n")
		}
	}

	if len(inc.Timeline) > 0 {
		b.WriteString("## Timeline\n\n")
		for _, e := range inc.Timeline {
			fmt.Fprintf(&b, "- `%s` **%s** %s\n", e.Timestamp.Local().Format(timelineLayout), e.Status, e.Message)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
