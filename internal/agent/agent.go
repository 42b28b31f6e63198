// Package agent keeps the per-incident status board of the five copilot
// agents and runs the timed workflows that animate it.
package agent

import (
	"context"
	"sync"
	"time"
)

// Status is the state of one agent.
type Status string

const (
	StatusIdle    Status = "IDLE"
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusError   Status = "ERROR"
)

// Agent keys, in display order.
const (
	Monitoring   = "monitoring"
	Analysis     = "analysis"
	AutoFixer    = "autoFixer"
	Notification = "notification"
	Memory       = "memory"
)

// SystemBoard is the board used for activity not tied to an incident.
const SystemBoard = ""

// Keys lists every agent key in display order.
var Keys = []string{Monitoring, Analysis, AutoFixer, Notification, Memory}

var definitions = map[string]struct{ name, icon string }{
	Monitoring:   {"Monitoring Agent", "shield"},
	Analysis:     {"Analysis Agent", "search"},
	AutoFixer:    {"Auto Fixer Agent", "wrench"},
	Notification: {"Notification Agent", "bell"},
	Memory:       {"Memory Agent", "brain"},
}

// Metrics are reported by the memory agent.
type Metrics struct {
	Usage int `json:"usage"`
	Peak  int `json:"peak"`
}

// Agent is one entry on a status board.
type Agent struct {
	Key          string    `json:"key"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	Icon         string    `json:"icon"`
	LastActivity time.Time `json:"lastActivity"`
	Metrics      *Metrics  `json:"metrics,omitempty"`
}

// Summary is the board view served to the dashboard.
type Summary struct {
	IncidentID    string  `json:"incidentId"`
	Agents        []Agent `json:"agents"`
	OverallStatus Status  `json:"overallStatus"`
}

// Board holds the agent states of every incident.
type Board struct {
	mu     sync.Mutex
	boards map[string]map[string]*Agent
	now    func() time.Time

	// stepScale multiplies workflow step durations.
	stepScale float64
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewBoard creates an empty board. stepScale multiplies workflow step
// durations; zero disables the waits entirely.
func NewBoard(stepScale float64) *Board {
	return &Board{
		boards:    make(map[string]map[string]*Agent),
		now:       time.Now,
		stepScale: stepScale,
		sleep:     sleepContext,
	}
}

// Initialize resets the board of incidentID to five IDLE agents.
func (b *Board) Initialize(incidentID string) []Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.initLocked(incidentID))
}

// UpdateStatus sets the status of one agent, initializing the board on
// demand. Unknown keys leave the board unchanged.
func (b *Board) UpdateStatus(incidentID, key string, status Status) []Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	agents := b.getLocked(incidentID)
	if a, ok := agents[key]; ok {
		a.Status = status
		a.LastActivity = b.now()
	}
	return snapshot(agents)
}

// RecordMemory sets the memory agent's usage and raises its peak.
func (b *Board) RecordMemory(incidentID string, usage int) Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.getLocked(incidentID)[Memory].Metrics
	m.Usage = usage
	if usage > m.Peak {
		m.Peak = usage
	}
	return *m
}

// Get returns the agents of incidentID in display order.
func (b *Board) Get(incidentID string) []Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return snapshot(b.getLocked(incidentID))
}

// Summary returns the board view of incidentID.
func (b *Board) Summary(incidentID string) Summary {
	agents := b.Get(incidentID)
	return Summary{
		IncidentID:    incidentID,
		Agents:        agents,
		OverallStatus: OverallStatus(agents),
	}
}

// OverallStatus folds agent statuses: any ERROR wins, then any RUNNING,
// then DONE when every agent is DONE, otherwise IDLE.
func OverallStatus(agents []Agent) Status {
	if len(agents) == 0 {
		return StatusIdle
	}
	running, allDone := false, true
	for _, a := range agents {
		switch a.Status {
		case StatusError:
			return StatusError
		case StatusRunning:
			running = true
		}
		if a.Status != StatusDone {
			allDone = false
		}
	}
	switch {
	case running:
		return StatusRunning
	case allDone:
		return StatusDone
	default:
		return StatusIdle
	}
}

func (b *Board) getLocked(incidentID string) map[string]*Agent {
	if agents, ok := b.boards[incidentID]; ok {
		return agents
	}
	return b.initLocked(incidentID)
}

func (b *Board) initLocked(incidentID string) map[string]*Agent {
	now := b.now()
	agents := make(map[string]*Agent, len(Keys))
	for _, key := range Keys {
		def := definitions[key]
		a := &Agent{Key: key, Name: def.name, Status: StatusIdle, Icon: def.icon, LastActivity: now}
		if key == Memory {
			a.Metrics = &Metrics{}
		}
		agents[key] = a
	}
	b.boards[incidentID] = agents
	return agents
}

func snapshot(agents map[string]*Agent) []Agent {
	out := make([]Agent, 0, len(Keys))
	for _, key := range Keys {
		a := *agents[key]
		if a.Metrics != nil {
			m := *a.Metrics
			a.Metrics = &m
		}
		out = append(out, a)
	}
	return out
}
