package ui

import (
	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/repo"
)

// -- Incident list data --

// IncidentsLoadedMsg is sent when the incident list has been fetched.
type IncidentsLoadedMsg struct {
	Incidents []incident.Incident
	Err       error
}

// IncidentSelectedMsg is sent when the user opens an incident.
type IncidentSelectedMsg struct {
	IncidentID string
}

// -- Incident detail --

// DetailLoadedMsg carries the pull request and vulnerable file of an incident.
// PR is nil until a fix has been proposed.
type DetailLoadedMsg struct {
	IncidentID string
	PR         *repo.PullRequest
	Snippet    string
	Err        error
}

// -- Agent board --

// AgentStateLoadedMsg is sent when an agent board has been fetched.
type AgentStateLoadedMsg struct {
	IncidentID string
	Summary    *agent.Summary
	Err        error
}

// -- Actions --

// Action names a remediation step started from the dashboard.
type Action string

const (
	ActionInject  Action = "inject"
	ActionScan    Action = "scan"
	ActionAnalyse Action = "analyse"
	ActionAutofix Action = "autofix"
	ActionMerge   Action = "merge"
)

// ActionDoneMsg is sent when a remediation call returns.
type ActionDoneMsg struct {
	Action   Action
	Message  string
	Incident *incident.Incident
	PR       *repo.PullRequest
	// Detected lists incidents raised by a scan.
	Detected []incident.Incident
	Err      error
}

// -- Infrastructure --

// pollTickMsg fires on every background poll interval.
type pollTickMsg struct{}

// StatusBarClearMsg clears a flash message if Seq is still current.
type StatusBarClearMsg struct {
	Seq int
}

// HelpClosedMsg is sent when the help overlay is dismissed.
type HelpClosedMsg struct{}
