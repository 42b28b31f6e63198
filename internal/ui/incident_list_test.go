package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/shhac/devcopilot/internal/incident"
)

func newLoadedList(incidents ...incident.Incident) IncidentListModel {
	m := NewIncidentListModel()
	m.SetSize(50, 30)
	m.SetIncidents(incidents)
	return m
}

func TestIncidentList_SplitsTabs(t *testing.T) {
	m := newLoadedList(
		testIncident("INC-1", incident.StatusDetected),
		testIncident("INC-2", incident.StatusResolved),
		testIncident("INC-3", incident.StatusFixReady),
	)
	if len(m.open) != 2 {
		t.Errorf("open = %d, want 2", len(m.open))
	}
	if len(m.resolved) != 1 {
		t.Errorf("resolved = %d, want 1", len(m.resolved))
	}
	if got := len(m.list.Items()); got != 2 {
		t.Errorf("visible items = %d, want 2 on the open tab", got)
	}

	m, _ = m.Update(runeKey("l"))
	if m.activeTab != TabResolved {
		t.Fatalf("activeTab = %v, want TabResolved", m.activeTab)
	}
	if got := m.CursorID(); got != "INC-2" {
		t.Errorf("CursorID() = %q, want INC-2", got)
	}

	m, _ = m.Update(runeKey("h"))
	if m.activeTab != TabOpen {
		t.Errorf("activeTab = %v, want TabOpen", m.activeTab)
	}
}

func TestIncidentList_KeepsCursorOnReload(t *testing.T) {
	m := newLoadedList(
		testIncident("INC-1", incident.StatusDetected),
		testIncident("INC-2", incident.StatusDetected),
	)
	m.list.Select(1)
	if got := m.CursorID(); got != "INC-2" {
		t.Fatalf("CursorID() = %q, want INC-2", got)
	}

	m.SetIncidents([]incident.Incident{
		testIncident("INC-0", incident.StatusDetected),
		testIncident("INC-1", incident.StatusDetected),
		testIncident("INC-2", incident.StatusAnalysed),
	})
	if got := m.CursorID(); got != "INC-2" {
		t.Errorf("CursorID() after reload = %q, want INC-2", got)
	}
}

func TestIncidentList_SelectEmitsMsg(t *testing.T) {
	m := newLoadedList(testIncident("INC-1", incident.StatusDetected))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("Enter returned no command")
	}
	msg, ok := cmd().(IncidentSelectedMsg)
	if !ok {
		t.Fatalf("cmd() = %T, want IncidentSelectedMsg", cmd())
	}
	if msg.IncidentID != "INC-1" {
		t.Errorf("IncidentID = %q, want INC-1", msg.IncidentID)
	}
}

func TestIncidentList_SelectOnEmptyList(t *testing.T) {
	m := newLoadedList()
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("Enter on an empty list should do nothing")
	}
}

func TestIncidentList_Lookup(t *testing.T) {
	m := newLoadedList(
		testIncident("INC-1", incident.StatusDetected),
		testIncident("INC-2", incident.StatusResolved),
	)
	if inc, ok := m.Lookup("INC-2"); !ok || inc.Status != incident.StatusResolved {
		t.Errorf("Lookup(INC-2) = %+v, %v", inc, ok)
	}
	if _, ok := m.Lookup("INC-9"); ok {
		t.Error("Lookup(INC-9) should miss")
	}
}

func TestIncidentList_States(t *testing.T) {
	m := NewIncidentListModel()
	m.SetSize(50, 30)
	if m.state != stateLoading {
		t.Errorf("initial state = %v, want stateLoading", m.state)
	}
	m.SetError("boom")
	if m.state != stateError || m.errMsg != "boom" {
		t.Errorf("state = %v, errMsg = %q", m.state, m.errMsg)
	}
	m.SetIncidents(nil)
	if m.state != stateLoaded || m.errMsg != "" {
		t.Errorf("state = %v, errMsg = %q after load", m.state, m.errMsg)
	}
}
