package simulator

import (
	"errors"
	"strings"
	"testing"

	"github.com/shhac/devcopilot/internal/repo"
)

func newTestSimulator(t *testing.T) (*Simulator, *repo.Store) {
	t.Helper()
	store, err := repo.NewDemoStore()
	if err != nil {
		t.Fatalf("NewDemoStore: %v", err)
	}
	return New(store), store
}

func TestInjectBug(t *testing.T) {
	sim, store := newTestSimulator(t)

	c, err := sim.InjectBug("repo-unicorn")
	if err != nil {
		t.Fatalf("InjectBug: %v", err)
	}
	if c.Type != repo.CommitBuggy {
		t.Errorf("Type = %q, want buggy", c.Type)
	}
	if c.Message != "Hotfix: Add auth improvements (contains bug)" {
		t.Errorf("Message = %q", c.Message)
	}
	if c.Branch != "main" {
		t.Errorf("Branch = %q, want main", c.Branch)
	}
	if len(c.FilesChanged) != 1 || c.FilesChanged[0].Additions != 25 || c.FilesChanged[0].Deletions != 18 {
		t.Errorf("FilesChanged = %+v, want src/auth.py +25/-18", c.FilesChanged)
	}
	if c.ParentCommitID == nil || *c.ParentCommitID != "fc94782a" {
		t.Errorf("ParentCommitID = %v, want fc94782a", c.ParentCommitID)
	}

	content, err := store.FileContent("repo-unicorn", c.ID, BugPath)
	if err != nil {
		t.Fatalf("FileContent: %v", err)
	}
	if !strings.Contains(content, "hardcoded_secret_key") {
		t.Error("buggy commit does not serve the buggy variant")
	}

	st, err := sim.CurrentState("repo-unicorn")
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if !st.HasBug || st.BugInfo == nil {
		t.Fatalf("state = %+v, want live bug", st)
	}
	if st.BugInfo.CommitID != c.ID || st.BugInfo.BugType != "authentication_bypass" || st.BugInfo.Severity != "critical" {
		t.Errorf("BugInfo = %+v", st.BugInfo)
	}
	if st.CurrentCommitID != c.ID || st.CurrentType != repo.CommitBuggy {
		t.Errorf("current = %s/%s, want %s/buggy", st.CurrentCommitID, st.CurrentType, c.ID)
	}
}

func TestInjectBug_UnknownRepo(t *testing.T) {
	sim, _ := newTestSimulator(t)
	if _, err := sim.InjectBug("nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("err = %v, want repo.ErrNotFound", err)
	}
}

func TestCurrentState_Clean(t *testing.T) {
	sim, _ := newTestSimulator(t)
	st, err := sim.CurrentState("repo-unicorn")
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if st.HasBug || st.BugInfo != nil {
		t.Errorf("state = %+v, want no bug", st)
	}
}

func TestApplyFix(t *testing.T) {
	sim, store := newTestSimulator(t)
	if _, err := sim.InjectBug("repo-unicorn"); err != nil {
		t.Fatalf("InjectBug: %v", err)
	}
	if _, err := store.CreateBranch("repo-unicorn", "main", "fix/auth-bypass-1"); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	long := strings.Repeat("x", 80)
	c, err := sim.ApplyFix("repo-unicorn", "fix/auth-bypass-1", []string{long, "second"})
	if err != nil {
		t.Fatalf("ApplyFix: %v", err)
	}
	want := "Fix: Applied security patch - " + strings.Repeat("x", 50) + "..."
	if c.Message != want {
		t.Errorf("Message = %q, want %q", c.Message, want)
	}
	if c.Type != repo.CommitFixed || c.Branch != "fix/auth-bypass-1" {
		t.Errorf("commit = %s on %s, want fixed on fix branch", c.Type, c.Branch)
	}
	if c.FilesChanged[0].Additions != 32 || c.FilesChanged[0].Deletions != 25 {
		t.Errorf("FilesChanged = %+v, want +32/-25", c.FilesChanged)
	}

	st, _ := sim.CurrentState("repo-unicorn")
	if st.HasBug {
		t.Error("bug info not cleared by ApplyFix")
	}
}

func TestApplyFix_UnknownBranch(t *testing.T) {
	sim, _ := newTestSimulator(t)
	if _, err := sim.ApplyFix("repo-unicorn", "missing", []string{"s"}); !errors.Is(err, repo.ErrNotFound) {
		t.Errorf("err = %v, want repo.ErrNotFound", err)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 50, "short"},
		{"abcdef", 3, "abc"},
		{"héllo", 2, "hé"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
