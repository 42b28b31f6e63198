package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/incident"
)

// Panel border colors
var (
	focusedBorderColor   = lipgloss.Color("62")  // bright purple/blue
	unfocusedBorderColor = lipgloss.Color("240") // dim gray
)

// Status bar
var (
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252"))
	statusBarAccentStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("236")).
				Foreground(lipgloss.Color("62")).
				Bold(true)
)

// Detail panel
var (
	detailTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	detailMetaStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	sectionStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
)

// Agent cards
var (
	cardNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	cardMetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func panelStyle(focused bool, width, height int) lipgloss.Style {
	borderColor := unfocusedBorderColor
	if focused {
		borderColor = focusedBorderColor
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(width).
		Height(height)
}

func panelHeaderStyle(focused bool) lipgloss.Style {
	if focused {
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
}

// incidentStatusColor maps an incident status onto the dashboard palette.
func incidentStatusColor(s incident.Status) lipgloss.Color {
	switch s {
	case incident.StatusDetected:
		return lipgloss.Color("196") // red
	case incident.StatusAnalysed:
		return lipgloss.Color("214") // orange
	case incident.StatusFixReady:
		return lipgloss.Color("75") // blue
	case incident.StatusResolved:
		return lipgloss.Color("42") // green
	default:
		return lipgloss.Color("244")
	}
}

func incidentBadge(s incident.Status) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(incidentStatusColor(s)).
		Padding(0, 1).
		Render(string(s))
}

func agentStatusColor(s agent.Status) lipgloss.Color {
	switch s {
	case agent.StatusRunning:
		return lipgloss.Color("214")
	case agent.StatusDone:
		return lipgloss.Color("42")
	case agent.StatusError:
		return lipgloss.Color("196")
	default:
		return lipgloss.Color("240")
	}
}

func agentBadge(s agent.Status) string {
	return lipgloss.NewStyle().
		Foreground(agentStatusColor(s)).
		Bold(true).
		Render(string(s))
}

// agentGlyphs maps agent icon names onto terminal glyphs.
var agentGlyphs = map[string]string{
	"shield": "⛨",
	"search": "⌕",
	"wrench": "⚒",
	"bell":   "♪",
	"brain":  "◉",
}

// newLoadingSpinner creates a consistently styled spinner for loading states.
func newLoadingSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	return s
}

// renderEmptyState renders a consistent empty state message with optional action hint.
func renderEmptyState(message, hint string) string {
	msg := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244")).
		Padding(1, 2).
		Render("· " + message)
	if hint == "" {
		return msg
	}
	h := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true).
		Padding(0, 2).
		Render(hint)
	return lipgloss.JoinVertical(lipgloss.Left, msg, h)
}

// renderErrorWithHint renders a consistent error message with retry hint.
func renderErrorWithHint(errMsg, hint string) string {
	msg := lipgloss.NewStyle().
		Foreground(lipgloss.Color("196")).
		Bold(true).
		Padding(1, 2).
		Render(errMsg)
	if hint == "" {
		return msg
	}
	h := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244")).
		Padding(0, 2).
		Render(hint)
	return lipgloss.JoinVertical(lipgloss.Left, msg, h)
}

// Scroll indicator style
var scrollIndicatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

// scrollIndicator returns a scroll position line for a viewport.
// Returns "" if all content fits within the viewport (no scrolling needed).
func scrollIndicator(vp viewport.Model, width int) string {
	if vp.TotalLineCount() <= vp.Height {
		return ""
	}
	pct := int(vp.ScrollPercent() * 100)
	var label string
	switch {
	case vp.AtTop():
		label = fmt.Sprintf("%d%% ▼", pct)
	case vp.AtBottom():
		label = fmt.Sprintf("▲ %d%%", pct)
	default:
		label = fmt.Sprintf("▲ %d%% ▼", pct)
	}
	return scrollIndicatorStyle.Render(
		lipgloss.PlaceHorizontal(width, lipgloss.Right, label),
	)
}
