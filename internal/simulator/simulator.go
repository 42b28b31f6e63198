// Package simulator drives the demo scenario: it injects the
// authentication-bypass bug into a repository and applies the fix.
package simulator

import (
	"fmt"
	"sync"
	"time"

	"github.com/shhac/devcopilot/internal/repo"
)

const (
	// BugPath is the file the scenario breaks and repairs.
	BugPath = "src/auth.py"

	bugMessage   = "Hotfix: Add auth improvements (contains bug)"
	fixMessageFm = "Fix: Applied security patch - %s..."

	mainBranch = "main"
)

// BugInfo describes the bug currently live in a repository.
type BugInfo struct {
	CommitID   string    `json:"commitId"`
	BugType    string    `json:"bugType"`
	Severity   string    `json:"severity"`
	DetectedAt time.Time `json:"detectedAt"`
}

// State is the current state of the simulated application.
type State struct {
	RepoID          string          `json:"repoId"`
	CurrentCommitID string          `json:"currentCommitId"`
	CurrentBranch   string          `json:"currentBranch"`
	CurrentType     repo.CommitType `json:"currentType"`
	HasBug          bool            `json:"hasBug"`
	BugInfo         *BugInfo        `json:"bugInfo"`
}

// Simulator mutates a repo.Store to play the demo scenario.
type Simulator struct {
	store *repo.Store
	now   func() time.Time

	mu   sync.Mutex
	bugs map[string]BugInfo
}

// New creates a Simulator over store.
func New(store *repo.Store) *Simulator {
	return &Simulator{
		store: store,
		now:   time.Now,
		bugs:  make(map[string]BugInfo),
	}
}

// InjectBug commits the buggy variant of src/auth.py on main. The branch
// must have a clean commit to build on.
func (s *Simulator) InjectBug(repoID string) (*repo.Commit, error) {
	if _, err := s.store.LatestCommit(repoID, mainBranch); err != nil {
		return nil, fmt.Errorf("failed to inject bug: %w", err)
	}

	commit, err := s.store.CreateCommit(repoID, mainBranch, []repo.FileChange{
		{Path: BugPath, Status: repo.StatusModified, Additions: 25, Deletions: 18},
	}, bugMessage, repo.CommitBuggy)
	if err != nil {
		return nil, fmt.Errorf("failed to inject bug: %w", err)
	}

	s.mu.Lock()
	s.bugs[repoID] = BugInfo{
		CommitID:   commit.ID,
		BugType:    "authentication_bypass",
		Severity:   "critical",
		DetectedAt: s.now(),
	}
	s.mu.Unlock()
	return commit, nil
}

// CurrentState reports the most recent commit and any live bug.
func (s *Simulator) CurrentState(repoID string) (*State, error) {
	latest, err := s.store.LatestCommitAnyBranch(repoID)
	if err != nil {
		return nil, err
	}

	st := &State{
		RepoID:          repoID,
		CurrentCommitID: latest.ID,
		CurrentBranch:   latest.Branch,
		CurrentType:     latest.Type,
	}
	s.mu.Lock()
	if bug, ok := s.bugs[repoID]; ok {
		st.HasBug = true
		st.BugInfo = &bug
	}
	s.mu.Unlock()
	return st, nil
}

// ApplyFix commits the fixed variant of src/auth.py on branch and clears the
// live bug record.
func (s *Simulator) ApplyFix(repoID, branch string, suggestions []string) (*repo.Commit, error) {
	first := ""
	if len(suggestions) > 0 {
		first = truncate(suggestions[0], 50)
	}

	commit, err := s.store.CreateCommit(repoID, branch, []repo.FileChange{
		{Path: BugPath, Status: repo.StatusModified, Additions: 32, Deletions: 25},
	}, fmt.Sprintf(fixMessageFm, first), repo.CommitFixed)
	if err != nil {
		return nil, fmt.Errorf("failed to apply fix: %w", err)
	}

	s.mu.Lock()
	delete(s.bugs, repoID)
	s.mu.Unlock()
	return commit, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
