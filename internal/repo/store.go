// Package repo provides the in-memory simulated repository store: repos,
// branches, commits and per-path file variants, plus the pull requests
// raised against them. Every read returns a copy so callers cannot mutate
// store state without going through a Store method.
package repo

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultAuthor is the author stamped on commits the copilot creates.
const DefaultAuthor = "DevOps Copilot"

var (
	// ErrNotFound is returned when a repo, branch, commit, path or PR does not exist.
	ErrNotFound = errors.New("not found")
	// ErrBranchExists is returned when creating a branch whose name is taken.
	ErrBranchExists = errors.New("branch already exists")
	// ErrDefaultBranch is returned when deleting a repo's default branch.
	ErrDefaultBranch = errors.New("cannot delete default branch")
)

// Store holds simulated repositories keyed by repo id.
type Store struct {
	mu    sync.RWMutex
	repos []*Repo
	now   func() time.Time
}

// NewStore creates a Store holding copies of the given repositories.
func NewStore(repos []Repo) *Store {
	s := &Store{now: time.Now}
	for i := range repos {
		r := cloneRepo(&repos[i])
		s.repos = append(s.repos, r)
	}
	return s
}

// SetClock replaces the time source used for new commits. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// -- Repos --

// ListRepos returns a summary of every repository.
func (s *Store) ListRepos() []RepoSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RepoSummary, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, RepoSummary{
			RepoID:        r.RepoID,
			Name:          r.Name,
			Owner:         r.Owner,
			Description:   r.Description,
			DefaultBranch: r.DefaultBranch,
		})
	}
	return out
}

// GetRepo returns a copy of the repository with the given id.
func (s *Store) GetRepo(repoID string) (*Repo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	return cloneRepo(r), nil
}

// -- Branches --

// ListBranches returns the branches of a repository, or nil when it is unknown.
func (s *Store) ListBranches(repoID string) []Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil
	}
	return append([]Branch(nil), r.Branches...)
}

// CreateBranch creates name pointing at the head of base.
func (s *Store) CreateBranch(repoID, base, name string) (*Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	baseBranch := findBranch(r, base)
	if baseBranch == nil {
		return nil, fmt.Errorf("branch %s: %w", base, ErrNotFound)
	}
	if findBranch(r, name) != nil {
		return nil, fmt.Errorf("branch %s: %w", name, ErrBranchExists)
	}

	b := Branch{Name: name, CommitID: baseBranch.CommitID}
	r.Branches = append(r.Branches, b)
	return &b, nil
}

// DeleteBranch removes a non-default branch together with the commits made
// on it.
func (s *Store) DeleteBranch(repoID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.find(repoID)
	if err != nil {
		return err
	}
	b := findBranch(r, name)
	if b == nil {
		return fmt.Errorf("branch %s: %w", name, ErrNotFound)
	}
	if b.IsDefault || name == r.DefaultBranch {
		return fmt.Errorf("branch %s: %w", name, ErrDefaultBranch)
	}

	branches := r.Branches[:0]
	for _, br := range r.Branches {
		if br.Name != name {
			branches = append(branches, br)
		}
	}
	r.Branches = branches

	commits := r.Commits[:0]
	for _, c := range r.Commits {
		if c.Branch != name {
			commits = append(commits, c)
		}
	}
	r.Commits = commits
	return nil
}

// MoveBranch fast-forwards a branch head to commitID.
func (s *Store) MoveBranch(repoID, branch, commitID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.find(repoID)
	if err != nil {
		return err
	}
	b := findBranch(r, branch)
	if b == nil {
		return fmt.Errorf("branch %s: %w", branch, ErrNotFound)
	}
	if findCommit(r, commitID) == nil {
		return fmt.Errorf("commit %s: %w", commitID, ErrNotFound)
	}
	b.CommitID = commitID
	return nil
}

// -- Commits --

// ListCommits returns commits newest first. An empty branch lists every branch.
func (s *Store) ListCommits(repoID, branch string) ([]Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}

	var out []Commit
	for i := range r.Commits {
		if branch == "" || r.Commits[i].Branch == branch {
			out = append(out, cloneCommit(r.Commits[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// GetCommit returns a single commit by id.
func (s *Store) GetCommit(repoID, commitID string) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	c := findCommit(r, commitID)
	if c == nil {
		return nil, fmt.Errorf("commit %s: %w", commitID, ErrNotFound)
	}
	out := cloneCommit(*c)
	return &out, nil
}

// CommitsOfType returns every commit of the given type in insertion order.
func (s *Store) CommitsOfType(repoID string, t CommitType) ([]Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	var out []Commit
	for i := range r.Commits {
		if r.Commits[i].Type == t {
			out = append(out, cloneCommit(r.Commits[i]))
		}
	}
	return out, nil
}

// LatestCommit returns the newest non-buggy commit on branch.
func (s *Store) LatestCommit(repoID, branch string) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}

	var latest *Commit
	for i := range r.Commits {
		c := &r.Commits[i]
		if c.Branch != branch || c.Type == CommitBuggy {
			continue
		}
		if latest == nil || !c.Timestamp.Before(latest.Timestamp) {
			latest = c
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("no clean commit on %s: %w", branch, ErrNotFound)
	}
	out := cloneCommit(*latest)
	return &out, nil
}

// CreateCommit appends a commit on branch and advances the branch head.
func (s *Store) CreateCommit(repoID, branch string, files []FileChange, message string, t CommitType) (*Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	b := findBranch(r, branch)
	if b == nil {
		return nil, fmt.Errorf("branch %s: %w", branch, ErrNotFound)
	}

	id, err := newCommitID(r)
	if err != nil {
		return nil, err
	}
	parent := b.CommitID
	c := Commit{
		ID:             id,
		Branch:         branch,
		Message:        message,
		Timestamp:      s.now(),
		Author:         DefaultAuthor,
		FilesChanged:   append([]FileChange(nil), files...),
		Type:           t,
		ParentCommitID: &parent,
	}
	r.Commits = append(r.Commits, c)
	b.CommitID = c.ID

	out := cloneCommit(c)
	return &out, nil
}

// LatestCommitAnyBranch returns the most recently appended commit.
func (s *Store) LatestCommitAnyBranch(repoID string) (*Commit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	if len(r.Commits) == 0 {
		return nil, fmt.Errorf("repo %s has no commits: %w", repoID, ErrNotFound)
	}
	out := cloneCommit(r.Commits[len(r.Commits)-1])
	return &out, nil
}

// -- Files --

// FileContent returns the content of path as seen by commitID.
func (s *Store) FileContent(repoID, commitID, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return "", err
	}
	return fileContent(r, commitID, path)
}

// DiffBetweenCommits reconstructs a file-level diff from the change metadata
// of two commits.
func (s *Store) DiffBetweenCommits(repoID, fromID, toID string) (*Diff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	a := findCommit(r, fromID)
	if a == nil {
		return nil, fmt.Errorf("commit %s: %w", fromID, ErrNotFound)
	}
	b := findCommit(r, toID)
	if b == nil {
		return nil, fmt.Errorf("commit %s: %w", toID, ErrNotFound)
	}

	diff := &Diff{
		FromCommit: ShortID(a.ID, 7),
		ToCommit:   ShortID(b.ID, 7),
		Files:      []FileChange{},
	}

	var paths []string
	seen := make(map[string]bool)
	for _, c := range [...]*Commit{a, b} {
		for _, f := range c.FilesChanged {
			if !seen[f.Path] {
				seen[f.Path] = true
				paths = append(paths, f.Path)
			}
		}
	}

	for _, path := range paths {
		fa := findChange(a, path)
		fb := findChange(b, path)

		status := StatusModified
		if fa == nil {
			status = StatusAdded
		}
		if fb == nil {
			status = StatusDeleted
		}

		change := FileChange{Path: path, Status: status}
		if fb != nil {
			change.Additions = fb.Additions
		}
		if fa != nil {
			change.Deletions = fa.Deletions
		}
		diff.Files = append(diff.Files, change)
	}
	return diff, nil
}

// FilePatch computes a line diff of path between two commits.
func (s *Store) FilePatch(repoID, fromID, toID, path string) (*FilePatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	before, errA := fileContent(r, fromID, path)
	after, errB := fileContent(r, toID, path)
	if errA != nil && errB != nil {
		return nil, errB
	}

	status := StatusModified
	switch {
	case errA != nil:
		status = StatusAdded
	case errB != nil:
		status = StatusDeleted
	}

	p := LineDiff(before, after)
	p.Path = path
	p.Status = status
	return &p, nil
}

// -- Pull requests --

// AddPullRequest stores a pull request against its repository.
func (s *Store) AddPullRequest(pr PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.find(pr.RepoID)
	if err != nil {
		return err
	}
	r.PullRequests = append(r.PullRequests, clonePR(pr))
	return nil
}

// UpdatePullRequest replaces a stored pull request with the same id.
func (s *Store) UpdatePullRequest(pr PullRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.find(pr.RepoID)
	if err != nil {
		return err
	}
	for i := range r.PullRequests {
		if r.PullRequests[i].PRID == pr.PRID {
			r.PullRequests[i] = clonePR(pr)
			return nil
		}
	}
	return fmt.Errorf("pull request %s: %w", pr.PRID, ErrNotFound)
}

// GetPullRequest returns a pull request by id.
func (s *Store) GetPullRequest(repoID, prID string) (*PullRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil, err
	}
	for i := range r.PullRequests {
		if r.PullRequests[i].PRID == prID {
			pr := clonePR(r.PullRequests[i])
			return &pr, nil
		}
	}
	return nil, fmt.Errorf("pull request %s: %w", prID, ErrNotFound)
}

// ListPullRequests returns the pull requests of a repository in creation order.
func (s *Store) ListPullRequests(repoID string) []PullRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.find(repoID)
	if err != nil {
		return nil
	}
	out := make([]PullRequest, 0, len(r.PullRequests))
	for _, pr := range r.PullRequests {
		out = append(out, clonePR(pr))
	}
	return out
}

// -- internal helpers (callers hold s.mu) --

func (s *Store) find(repoID string) (*Repo, error) {
	for _, r := range s.repos {
		if r.RepoID == repoID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("repo %s: %w", repoID, ErrNotFound)
}

func fileContent(r *Repo, commitID, path string) (string, error) {
	versions, ok := r.Files[path]
	if !ok {
		return "", fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	c := findCommit(r, commitID)
	if c == nil {
		return "", fmt.Errorf("commit %s: %w", commitID, ErrNotFound)
	}

	var content *string
	switch c.Type {
	case CommitBuggy:
		content = versions.Buggy
	case CommitFixed:
		content = versions.Fixed
	default:
		content = &versions.Clean
	}
	if content == nil {
		return "", fmt.Errorf("file %s has no %s variant: %w", path, c.Type, ErrNotFound)
	}
	return *content, nil
}

func findBranch(r *Repo, name string) *Branch {
	for i := range r.Branches {
		if r.Branches[i].Name == name {
			return &r.Branches[i]
		}
	}
	return nil
}

func findCommit(r *Repo, id string) *Commit {
	for i := range r.Commits {
		if r.Commits[i].ID == id {
			return &r.Commits[i]
		}
	}
	return nil
}

func findChange(c *Commit, path string) *FileChange {
	for i := range c.FilesChanged {
		if c.FilesChanged[i].Path == path {
			return &c.FilesChanged[i]
		}
	}
	return nil
}

// newCommitID generates an 8-hex-char id not yet used in r.
func newCommitID(r *Repo) (string, error) {
	for attempt := 0; attempt < 16; attempt++ {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate commit id: %w", err)
		}
		id := hex.EncodeToString(buf)
		if findCommit(r, id) == nil {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique commit id")
}

func cloneRepo(r *Repo) *Repo {
	out := *r
	out.Branches = append([]Branch(nil), r.Branches...)
	out.Commits = make([]Commit, len(r.Commits))
	for i, c := range r.Commits {
		out.Commits[i] = cloneCommit(c)
	}
	out.Files = make(map[string]FileVersions, len(r.Files))
	for k, v := range r.Files {
		out.Files[k] = v
	}
	out.PullRequests = make([]PullRequest, len(r.PullRequests))
	for i, pr := range r.PullRequests {
		out.PullRequests[i] = clonePR(pr)
	}
	return &out
}

func cloneCommit(c Commit) Commit {
	c.FilesChanged = append([]FileChange(nil), c.FilesChanged...)
	if c.ParentCommitID != nil {
		parent := *c.ParentCommitID
		c.ParentCommitID = &parent
	}
	return c
}

func clonePR(pr PullRequest) PullRequest {
	pr.FilesChanged = append([]FileChange(nil), pr.FilesChanged...)
	pr.Commits = append([]string{}, pr.Commits...)
	pr.Reviews = append([]string{}, pr.Reviews...)
	pr.Checks = append([]Check(nil), pr.Checks...)
	if pr.MergedAt != nil {
		t := *pr.MergedAt
		pr.MergedAt = &t
	}
	return pr
}
