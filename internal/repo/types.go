package repo

import "time"

// CommitType tags which file variant a commit materialises.
type CommitType string

const (
	CommitClean CommitType = "clean"
	CommitBuggy CommitType = "buggy"
	CommitFixed CommitType = "fixed"
)

// File change statuses.
const (
	StatusAdded    = "added"
	StatusModified = "modified"
	StatusDeleted  = "deleted"
)

// Repo is a simulated repository with its full object graph.
type Repo struct {
	RepoID        string                  `json:"repoId" yaml:"repoId"`
	Name          string                  `json:"name" yaml:"name"`
	Owner         string                  `json:"owner" yaml:"owner"`
	DefaultBranch string                  `json:"defaultBranch" yaml:"defaultBranch"`
	Description   string                  `json:"description" yaml:"description"`
	CreatedAt     time.Time               `json:"createdAt" yaml:"createdAt"`
	Branches      []Branch                `json:"branches" yaml:"branches"`
	Commits       []Commit                `json:"commits" yaml:"commits"`
	Files         map[string]FileVersions `json:"files" yaml:"files"`
	PullRequests  []PullRequest           `json:"pullRequests" yaml:"-"`
}

// RepoSummary is the lightweight representation used by list views.
type RepoSummary struct {
	RepoID        string `json:"repoId"`
	Name          string `json:"name"`
	Owner         string `json:"owner"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"defaultBranch"`
}

// Branch points at a head commit.
type Branch struct {
	Name      string `json:"name" yaml:"name"`
	IsDefault bool   `json:"isDefault" yaml:"isDefault"`
	CommitID  string `json:"commitId" yaml:"commitId"`
}

// Commit is a single simulated commit. Its file contents are not stored
// directly: Type selects the variant served from Repo.Files.
type Commit struct {
	ID             string       `json:"id" yaml:"id"`
	Branch         string       `json:"branch" yaml:"branch"`
	Message        string       `json:"message" yaml:"message"`
	Timestamp      time.Time    `json:"timestamp" yaml:"timestamp"`
	Author         string       `json:"author" yaml:"author"`
	FilesChanged   []FileChange `json:"filesChanged" yaml:"filesChanged"`
	Type           CommitType   `json:"type" yaml:"type"`
	ParentCommitID *string      `json:"parentCommitId" yaml:"parentCommitId"`
}

// FileChange is per-file change metadata attached to a commit.
type FileChange struct {
	Path      string `json:"path" yaml:"path"`
	Status    string `json:"status" yaml:"status"` // "added", "modified", "deleted"
	Additions int    `json:"additions" yaml:"additions"`
	Deletions int    `json:"deletions" yaml:"deletions"`
}

// FileVersions holds the content variants of a single path.
// Buggy and Fixed are nil for files the scenario never touches.
type FileVersions struct {
	Clean string  `json:"clean" yaml:"clean"`
	Buggy *string `json:"buggy" yaml:"buggy"`
	Fixed *string `json:"fixed" yaml:"fixed"`
}

// Diff is the metadata-level difference between two commits.
type Diff struct {
	FromCommit string       `json:"fromCommit"`
	ToCommit   string       `json:"toCommit"`
	Files      []FileChange `json:"files"`
}

// FilePatch is a computed line diff of one path between two commits.
type FilePatch struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch"`
}

// PR statuses.
const (
	PROpen   = "open"
	PRMerged = "merged"
)

// PullRequest is a mock pull request proposing a fix branch.
type PullRequest struct {
	PRID         string       `json:"prId"`
	RepoID       string       `json:"repoId"`
	IncidentID   string       `json:"incidentId,omitempty"`
	SourceBranch string       `json:"sourceBranch"`
	TargetBranch string       `json:"targetBranch"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	FilesChanged []FileChange `json:"filesChanged"`
	Status       string       `json:"status"` // "open", "merged"
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	MergedAt     *time.Time   `json:"mergedAt,omitempty"`
	Commits      []string     `json:"commits"`
	Reviews      []string     `json:"reviews"`
	Checks       []Check      `json:"checks"`
}

// Check is a CI check attached to a pull request.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "passed", "failed", "pending"
}

// ShortID returns the first n characters of a commit id.
func ShortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}
