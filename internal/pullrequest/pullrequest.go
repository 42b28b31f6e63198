// Package pullrequest raises and merges mock pull requests against the
// simulated repository store.
package pullrequest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/shhac/devcopilot/internal/repo"
)

// ErrAlreadyMerged is returned when merging a pull request twice.
var ErrAlreadyMerged = errors.New("pull request already merged")

// DefaultChecks are attached to every new pull request.
var DefaultChecks = []repo.Check{
	{Name: "Unit Tests", Status: "passed"},
	{Name: "Linting", Status: "passed"},
	{Name: "Security Scan", Status: "passed"},
}

// CreateParams describes a pull request to open.
type CreateParams struct {
	RepoID       string
	IncidentID   string
	SourceBranch string
	TargetBranch string
	Title        string
	Description  string
	FilesChanged []repo.FileChange
	Commits      []string
}

// Service opens and merges pull requests held by a repo.Store.
type Service struct {
	store *repo.Store
	now   func() time.Time
}

// NewService creates a pull request service backed by store.
func NewService(store *repo.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create opens a pull request with the default passing checks.
func (s *Service) Create(p CreateParams) (*repo.PullRequest, error) {
	existing := s.store.ListPullRequests(p.RepoID)
	id, err := newID(s.now(), existing)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pr := repo.PullRequest{
		PRID:         id,
		RepoID:       p.RepoID,
		IncidentID:   p.IncidentID,
		SourceBranch: p.SourceBranch,
		TargetBranch: p.TargetBranch,
		Title:        p.Title,
		Description:  p.Description,
		FilesChanged: append([]repo.FileChange(nil), p.FilesChanged...),
		Status:       repo.PROpen,
		CreatedAt:    now,
		UpdatedAt:    now,
		Commits:      append([]string{}, p.Commits...),
		Reviews:      []string{},
		Checks:       append([]repo.Check(nil), DefaultChecks...),
	}
	if err := s.store.AddPullRequest(pr); err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	return &pr, nil
}

// Get returns a pull request by id.
func (s *Service) Get(repoID, prID string) (*repo.PullRequest, error) {
	return s.store.GetPullRequest(repoID, prID)
}

// Find looks a pull request up across every repository.
func (s *Service) Find(prID string) (*repo.PullRequest, error) {
	for _, r := range s.store.ListRepos() {
		if pr, err := s.store.GetPullRequest(r.RepoID, prID); err == nil {
			return pr, nil
		}
	}
	return nil, fmt.Errorf("pull request %s: %w", prID, repo.ErrNotFound)
}

// List returns every pull request of a repository.
func (s *Service) List(repoID string) []repo.PullRequest {
	prs := s.store.ListPullRequests(repoID)
	if prs == nil {
		return []repo.PullRequest{}
	}
	return prs
}

// Merge marks a pull request merged and fast-forwards its target branch to
// the head of its source branch.
func (s *Service) Merge(repoID, prID string) (*repo.PullRequest, error) {
	pr, err := s.store.GetPullRequest(repoID, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status == repo.PRMerged {
		return nil, fmt.Errorf("%s: %w", prID, ErrAlreadyMerged)
	}

	head := ""
	for _, b := range s.store.ListBranches(repoID) {
		if b.Name == pr.SourceBranch {
			head = b.CommitID
		}
	}
	if head == "" {
		return nil, fmt.Errorf("source branch %s: %w", pr.SourceBranch, repo.ErrNotFound)
	}
	if err := s.store.MoveBranch(repoID, pr.TargetBranch, head); err != nil {
		return nil, fmt.Errorf("failed to merge %s: %w", prID, err)
	}

	now := s.now()
	pr.Status = repo.PRMerged
	pr.MergedAt = &now
	pr.UpdatedAt = now
	if err := s.store.UpdatePullRequest(*pr); err != nil {
		return nil, fmt.Errorf("failed to merge %s: %w", prID, err)
	}
	return pr, nil
}

// newID returns PR-<unix millis>-<6 hex> not used by any existing PR.
func newID(now time.Time, existing []repo.PullRequest) (string, error) {
	taken := make(map[string]bool, len(existing))
	for _, pr := range existing {
		taken[pr.PRID] = true
	}
	for attempt := 0; attempt < 16; attempt++ {
		buf := make([]byte, 3)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate pull request id: %w", err)
		}
		id := fmt.Sprintf("PR-%d-%s", now.UnixMilli(), hex.EncodeToString(buf))
		if !taken[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique pull request id")
}
