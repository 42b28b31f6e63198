package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/incident"
)

const (
	flashDuration = 3 * time.Second
	errorDuration = 5 * time.Second
)

// -- Incident domain handlers --

// handleIncidentMsg handles incident list loading, selection and detail fetches.
func (m App) handleIncidentMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case IncidentsLoadedMsg:
		if msg.Err != nil {
			if !m.initialLoadDone {
				m.incidents.SetError(formatUserError(msg.Err))
				return m, nil
			}
			return m, m.statusBar.SetTemporaryMessage("Refresh failed: "+formatUserError(msg.Err), errorDuration)
		}
		m.incidents.SetIncidents(msg.Incidents)

		var cmds []tea.Cmd
		if fresh := m.detectNewIncidents(msg.Incidents); len(fresh) > 0 && m.notifier.Enabled() {
			cmds = append(cmds, notifyDetectedCmd(m.notifier, fresh))
		}
		if cur := m.detail.Incident(); cur != nil {
			if updated, ok := m.incidents.Lookup(cur.IncidentID); ok {
				changed := updated.Status != cur.Status || updated.PRID != cur.PRID
				m.detail.SetIncident(updated)
				if changed {
					cmds = append(cmds, fetchDetailCmd(m.svc, updated))
				}
			}
		}
		return m, tea.Batch(cmds...)

	case IncidentSelectedMsg:
		inc, ok := m.incidents.Lookup(msg.IncidentID)
		if !ok {
			return m, nil
		}
		return m.openIncident(inc)

	case DetailLoadedMsg:
		m.detail.SetDetail(msg)
		return m, nil
	}
	return m, nil
}

// openIncident shows inc in the detail panel and switches the agent board to it.
func (m App) openIncident(inc incident.Incident) (tea.Model, tea.Cmd) {
	m.detail.SetIncident(inc)
	m.incidents.SetSelected(inc.IncidentID)
	m.statusBar.SetIncident(inc.IncidentID)
	m.showAndFocusPanel(PanelCenter)
	return m, tea.Batch(
		fetchDetailCmd(m.svc, inc),
		m.setBoard(inc.IncidentID),
	)
}

// detectNewIncidents records incident ids and returns the ones not seen
// before. Nothing is reported for the first load.
func (m *App) detectNewIncidents(incidents []incident.Incident) []incident.Incident {
	var fresh []incident.Incident
	for _, inc := range incidents {
		if m.knownIncidents[inc.IncidentID] {
			continue
		}
		m.knownIncidents[inc.IncidentID] = true
		if m.initialLoadDone {
			fresh = append(fresh, inc)
		}
	}
	m.initialLoadDone = true
	return fresh
}

// -- Agent board --

func (m App) handleAgentState(msg AgentStateLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.IncidentID != m.boardID {
		return m, nil
	}
	if msg.Err != nil {
		m.agents.SetError(formatUserError(msg.Err))
		return m, nil
	}
	m.agents.SetSummary(msg.Summary)
	return m, nil
}

// -- Polling --

func (m App) handlePollTick() (tea.Model, tea.Cmd) {
	if m.pollInterval <= 0 {
		return m, nil
	}
	return m, tea.Batch(
		fetchIncidentsCmd(m.svc, m.repoID),
		fetchAgentStateCmd(m.svc, m.boardID),
		pollTickCmd(m.pollInterval),
	)
}

// -- Remediation actions --

// startAction runs cmd as the single in-flight action.
func (m App) startAction(a Action, label string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if m.busy != "" {
		return m, m.statusBar.SetTemporaryMessage("Still running "+string(m.busy)+"...", flashDuration)
	}
	m.busy = a
	m.statusBar.SetBusy(a)
	return m, tea.Batch(cmd, m.statusBar.SetTemporaryMessage(label, actionTimeout))
}

// requireIncident returns the incident open in the detail panel.
func (m App) requireIncident() (*incident.Incident, bool) {
	inc := m.detail.Incident()
	return inc, inc != nil
}

func (m App) handleActionDone(msg ActionDoneMsg) (tea.Model, tea.Cmd) {
	m.busy = ""
	m.statusBar.SetBusy("")

	if msg.Err != nil {
		return m, tea.Batch(
			m.statusBar.SetTemporaryMessage(string(msg.Action)+" failed: "+formatUserError(msg.Err), errorDuration),
			m.refresh(),
		)
	}

	cmds := []tea.Cmd{m.statusBar.SetTemporaryMessage(msg.Message, flashDuration)}

	if msg.Incident != nil && msg.Incident.IncidentID == m.detail.IncidentID() {
		m.detail.SetIncident(*msg.Incident)
	}
	if msg.PR != nil && msg.PR.IncidentID == m.detail.IncidentID() {
		m.detail.SetPullRequest(msg.PR)
	}

	switch msg.Action {
	case ActionScan:
		// Open the first new incident when nothing is selected yet.
		if len(msg.Detected) > 0 && m.detail.Incident() == nil {
			model, cmd := m.openIncident(msg.Detected[0])
			m = model.(App)
			cmds = append(cmds, cmd)
		}
	case ActionAutofix:
		if msg.PR != nil && m.notifier.Enabled() {
			cmds = append(cmds, notifyFixReadyCmd(m.notifier, msg.PR.IncidentID, msg.PR.PRID, msg.PR.Title))
		}
	}

	cmds = append(cmds, fetchIncidentsCmd(m.svc, m.repoID), fetchAgentStateCmd(m.svc, m.boardID))
	return m, tea.Batch(cmds...)
}

// -- Key handling --

func (m App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.helpOverlay.IsVisible() {
		var cmd tea.Cmd
		m.helpOverlay, cmd = m.helpOverlay.Update(msg)
		return m, cmd
	}

	// The filter input owns every key while it is open.
	if m.focused == PanelLeft && m.incidents.IsFiltering() {
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.updateFocusedPanel(msg)
	}

	switch {
	case key.Matches(msg, GlobalKeys.Quit):
		return m, tea.Quit

	case key.Matches(msg, GlobalKeys.Help):
		m.mode = ModeOverlay
		m.statusBar.SetState(m.focused, m.mode)
		m.helpOverlay.Show(m.focused)
		return m, nil

	case key.Matches(msg, GlobalKeys.Tab):
		m.focusPanel(nextVisiblePanel(m.focused, m.panelVisible))
		return m, nil

	case key.Matches(msg, GlobalKeys.ShiftTab):
		m.focusPanel(prevVisiblePanel(m.focused, m.panelVisible))
		return m, nil

	case key.Matches(msg, GlobalKeys.Panel1):
		m.showAndFocusPanel(PanelLeft)
		return m, nil

	case key.Matches(msg, GlobalKeys.Panel2):
		m.showAndFocusPanel(PanelCenter)
		return m, nil

	case key.Matches(msg, GlobalKeys.Panel3):
		m.showAndFocusPanel(PanelRight)
		return m, nil

	case key.Matches(msg, GlobalKeys.Zoom):
		m.toggleZoom()
		return m, nil

	case key.Matches(msg, GlobalKeys.Refresh):
		return m, tea.Batch(
			m.statusBar.SetTemporaryMessage("Refreshing...", flashDuration),
			m.refresh(),
		)

	case key.Matches(msg, GlobalKeys.Inject):
		return m.startAction(ActionInject, "Injecting bug...", injectCmd(m.svc, m.repoID))

	case key.Matches(msg, GlobalKeys.Scan):
		return m.startAction(ActionScan, "Scanning "+m.repoID+"...", scanCmd(m.svc, m.repoID))

	case key.Matches(msg, GlobalKeys.Analyse):
		inc, ok := m.requireIncident()
		if !ok {
			return m, m.statusBar.SetTemporaryMessage("Open an incident first", flashDuration)
		}
		m.busyBoard(inc.IncidentID)
		return m.startAction(ActionAnalyse, "Analysing "+inc.IncidentID+"...", analyseCmd(m.svc, inc.IncidentID))

	case key.Matches(msg, GlobalKeys.Autofix):
		inc, ok := m.requireIncident()
		if !ok {
			return m, m.statusBar.SetTemporaryMessage("Open an incident first", flashDuration)
		}
		m.busyBoard(inc.IncidentID)
		return m.startAction(ActionAutofix, "Generating fix for "+inc.IncidentID+"...", autofixCmd(m.svc, inc.IncidentID))

	case key.Matches(msg, GlobalKeys.Merge):
		inc, ok := m.requireIncident()
		if !ok {
			return m, m.statusBar.SetTemporaryMessage("Open an incident first", flashDuration)
		}
		if inc.PRID == "" {
			return m, m.statusBar.SetTemporaryMessage("No fix pull request to merge", flashDuration)
		}
		return m.startAction(ActionMerge, "Merging "+inc.PRID+"...", mergeCmd(m.svc, inc.RepoID, inc.PRID))
	}

	return m.updateFocusedPanel(msg)
}

// busyBoard points the agent panel at the incident an action is working on.
func (m *App) busyBoard(incidentID string) {
	if m.busy == "" && m.boardID != incidentID {
		m.boardID = incidentID
		m.agents.SetSummary(&agent.Summary{IncidentID: incidentID, OverallStatus: agent.StatusRunning})
	}
}
