package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StatusBarModel renders the bottom status bar.
type StatusBarModel struct {
	width     int
	focused   Panel
	mode      AppMode
	filtering bool // true when the incident filter input is active

	repoID     string
	incidentID string
	busy       Action

	// Temporary flash message (e.g. "Scanning repo...")
	statusMessage string
	// Monotonic counter: incremented on each SetTemporaryMessage call.
	// StatusBarClearMsg carries the seq at time of scheduling; if it doesn't
	// match current seq the clear is stale and ignored.
	messageSeq int
}

func NewStatusBarModel(repoID string) StatusBarModel {
	return StatusBarModel{repoID: repoID}
}

func (m *StatusBarModel) SetWidth(width int) {
	m.width = width
}

func (m *StatusBarModel) SetState(focused Panel, mode AppMode) {
	m.focused = focused
	m.mode = mode
}

// SetFiltering updates whether the incident filter input is active.
func (m *StatusBarModel) SetFiltering(filtering bool) {
	m.filtering = filtering
}

// SetIncident records the incident open in the detail panel.
func (m *StatusBarModel) SetIncident(id string) {
	m.incidentID = id
}

// SetBusy records the action in flight ("" when idle).
func (m *StatusBarModel) SetBusy(a Action) {
	m.busy = a
}

// SetTemporaryMessage shows a flash message in the status bar.
// Returns a tea.Cmd that will send a StatusBarClearMsg after the given duration,
// which the caller must include in the returned command batch.
func (m *StatusBarModel) SetTemporaryMessage(msg string, duration time.Duration) tea.Cmd {
	m.messageSeq++
	m.statusMessage = msg
	seq := m.messageSeq
	return tea.Tick(duration, func(_ time.Time) tea.Msg {
		return StatusBarClearMsg{Seq: seq}
	})
}

// ClearIfSeqMatch clears the message only if the given seq matches the current one.
// Returns true if the message was cleared.
func (m *StatusBarModel) ClearIfSeqMatch(seq int) bool {
	if seq == m.messageSeq {
		m.statusMessage = ""
		return true
	}
	return false
}

func (m StatusBarModel) View() string {
	var leftHints string
	if m.statusMessage != "" {
		leftHints = " " + m.statusMessage
	} else {
		leftHints = m.keyHints()
	}

	leftRendered := statusBarAccentStyle.Render(leftHints)
	rightRendered := statusBarStyle.Render(m.contextInfo())

	padding := max(m.width-lipgloss.Width(leftRendered)-lipgloss.Width(rightRendered), 0)
	bar := leftRendered +
		statusBarStyle.Render(strings.Repeat(" ", padding)) +
		rightRendered

	return statusBarStyle.Width(m.width).Render(bar)
}

func (m StatusBarModel) keyHints() string {
	if m.filtering {
		return " [Esc]cancel [Enter]apply [type]filter"
	}
	if m.mode == ModeOverlay {
		return " [j/k]scroll [?/Esc]close"
	}

	const actions = " [i]inject [s]scan [a]analyse [f]fix [m]merge"
	switch m.focused {
	case PanelLeft:
		return " [h/l]tab [j/k]move [/]filter [Enter]open" + actions + " [?]help"
	case PanelCenter:
		return " [j/k]scroll [g/G]top/bottom" + actions + " [?]help"
	case PanelRight:
		return " [j/k]scroll [r]refresh" + actions + " [?]help"
	default:
		return " [Tab]panel [?]help [q]quit"
	}
}

func (m StatusBarModel) contextInfo() string {
	modeStr := " NAV "
	if m.mode == ModeOverlay {
		modeStr = " OVERLAY "
	}
	info := modeStr
	if m.busy != "" {
		info += string(m.busy) + "… "
	}
	if m.incidentID != "" {
		info += m.incidentID + " "
	}
	if m.repoID != "" {
		info += m.repoID + " "
	}
	return info
}
