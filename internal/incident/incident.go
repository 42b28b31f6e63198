// Package incident tracks detected bugs and their remediation status.
package incident

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the remediation stage of an incident.
type Status string

const (
	StatusDetected Status = "DETECTED"
	StatusAnalysed Status = "ANALYSED"
	StatusFixReady Status = "FIX_READY"
	StatusResolved Status = "RESOLVED"
)

var (
	// ErrNotFound is returned for unknown incident ids.
	ErrNotFound = errors.New("incident not found")
	// ErrInvalidTransition is returned when a status change skips or reverses a stage.
	ErrInvalidTransition = errors.New("invalid incident status transition")
)

// allowed lists the statuses each status may move to.
var allowed = map[Status][]Status{
	StatusDetected: {StatusAnalysed},
	StatusAnalysed: {StatusAnalysed, StatusFixReady},
	StatusFixReady: {StatusResolved},
}

// Incident is a detected bug and its remediation record.
type Incident struct {
	IncidentID        string          `json:"incidentId"`
	RepoID            string          `json:"repoId"`
	CommitID          string          `json:"commitId"`
	Status            Status          `json:"status"`
	Summary           string          `json:"summary"`
	ErrorContext      string          `json:"errorContext"`
	Findings          []string        `json:"findings,omitempty"`
	GeminiExplanation *string         `json:"geminiExplanation"`
	GeminiSuggestions []string        `json:"geminiSuggestions"`
	RootCause         string          `json:"rootCause,omitempty"`
	SecurityImpact    string          `json:"securityImpact,omitempty"`
	PRID              string          `json:"prId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	Timeline          []TimelineEntry `json:"timeline"`
}

// TimelineEntry records a single status change.
type TimelineEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
}

// Analysis is the subset of an AI analysis stored on an incident.
type Analysis struct {
	Explanation    string
	RootCause      string
	SecurityImpact string
	Suggestions    []string
}

// Service stores incidents in memory.
type Service struct {
	mu        sync.RWMutex
	incidents map[string]*Incident
	now       func() time.Time
}

// NewService creates an empty incident service.
func NewService() *Service {
	return &Service{
		incidents: make(map[string]*Incident),
		now:       time.Now,
	}
}

// Create records a newly detected incident.
func (s *Service) Create(repoID, commitID, summary, errorContext string, findings []string) (*Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked(repoID, commitID, summary, errorContext, findings)
}

// CreateIfAbsent records an incident for a commit unless one already
// exists. The lookup and insert share one lock, so concurrent scans raise
// at most one incident per commit. created is false when the existing
// incident is returned.
func (s *Service) CreateIfAbsent(repoID, commitID, summary, errorContext string, findings []string) (inc *Incident, created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findByCommitLocked(repoID, commitID); existing != nil {
		return clone(existing), false, nil
	}
	inc, err = s.createLocked(repoID, commitID, summary, errorContext, findings)
	if err != nil {
		return nil, false, err
	}
	return inc, true, nil
}

func (s *Service) createLocked(repoID, commitID, summary, errorContext string, findings []string) (*Incident, error) {
	id, err := s.newID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	inc := &Incident{
		IncidentID:        id,
		RepoID:            repoID,
		CommitID:          commitID,
		Status:            StatusDetected,
		Summary:           summary,
		ErrorContext:      errorContext,
		Findings:          append([]string(nil), findings...),
		GeminiSuggestions: []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
		Timeline: []TimelineEntry{
			{Timestamp: now, Status: StatusDetected, Message: "Incident detected"},
		},
	}
	s.incidents[id] = inc
	return clone(inc), nil
}

// Get returns an incident by id.
func (s *Service) Get(id string) (*Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return clone(inc), nil
}

// List returns the incidents of a repository, oldest first.
func (s *Service) List(repoID string) []Incident {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []Incident{}
	for _, inc := range s.incidents {
		if inc.RepoID == repoID {
			out = append(out, *clone(inc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].IncidentID < out[j].IncidentID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FindByCommit returns the incident raised for a commit, if any.
func (s *Service) FindByCommit(repoID, commitID string) (*Incident, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inc := s.findByCommitLocked(repoID, commitID); inc != nil {
		return clone(inc), true
	}
	return nil, false
}

func (s *Service) findByCommitLocked(repoID, commitID string) *Incident {
	for _, inc := range s.incidents {
		if inc.RepoID == repoID && inc.CommitID == commitID {
			return inc
		}
	}
	return nil
}

// Count returns the number of incidents held across all repositories.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents)
}

// UpdateWithAnalysis stores an analysis and moves the incident to ANALYSED.
func (s *Service) UpdateWithAnalysis(id string, a Analysis) (*Incident, error) {
	return s.transition(id, StatusAnalysed, "Analysis complete", func(inc *Incident) {
		explanation := a.Explanation
		inc.GeminiExplanation = &explanation
		inc.GeminiSuggestions = append([]string{}, a.Suggestions...)
		inc.RootCause = a.RootCause
		inc.SecurityImpact = a.SecurityImpact
	})
}

// MarkFixReady links a pull request and moves the incident to FIX_READY.
func (s *Service) MarkFixReady(id, prID string) (*Incident, error) {
	return s.transition(id, StatusFixReady, "PR created: "+prID, func(inc *Incident) {
		inc.PRID = prID
	})
}

// MarkResolved moves the incident to RESOLVED.
func (s *Service) MarkResolved(id string) (*Incident, error) {
	return s.transition(id, StatusResolved, "Incident resolved", nil)
}

func (s *Service) transition(id string, to Status, message string, apply func(*Incident)) (*Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inc, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if !canTransition(inc.Status, to) {
		return nil, fmt.Errorf("%s: %s -> %s: %w", id, inc.Status, to, ErrInvalidTransition)
	}

	if apply != nil {
		apply(inc)
	}
	now := s.now()
	inc.Status = to
	inc.UpdatedAt = now
	inc.Timeline = append(inc.Timeline, TimelineEntry{Timestamp: now, Status: to, Message: message})
	return clone(inc), nil
}

func canTransition(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// newID returns INC-<unix millis>-<8 hex>, unique within the service.
func (s *Service) newID() (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate incident id: %w", err)
		}
		id := fmt.Sprintf("INC-%d-%s", s.now().UnixMilli(), hex.EncodeToString(buf))
		if _, taken := s.incidents[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique incident id")
}

// Suffix returns the random part of an incident id, or the id itself when it
// does not have the INC-<millis>-<hex> shape.
func Suffix(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			return id[i+1:]
		}
	}
	return id
}

func clone(inc *Incident) *Incident {
	out := *inc
	if inc.GeminiExplanation != nil {
		e := *inc.GeminiExplanation
		out.GeminiExplanation = &e
	}
	out.Findings = append([]string(nil), inc.Findings...)
	out.GeminiSuggestions = append([]string{}, inc.GeminiSuggestions...)
	out.Timeline = append([]TimelineEntry(nil), inc.Timeline...)
	return &out
}
