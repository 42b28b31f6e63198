package incident

import (
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"
)

var idPattern = regexp.MustCompile(`^INC-\d+-[0-9a-f]{8}$`)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func TestCreate(t *testing.T) {
	s := newTestService(t)
	inc, err := s.Create("repo-unicorn", "abcd1234", "Authentication bypass vulnerability detected", "ctx", []string{"f1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !idPattern.MatchString(inc.IncidentID) {
		t.Errorf("IncidentID = %q, want INC-<millis>-<8 hex>", inc.IncidentID)
	}
	if inc.Status != StatusDetected {
		t.Errorf("Status = %q, want %q", inc.Status, StatusDetected)
	}
	if inc.GeminiExplanation != nil {
		t.Errorf("GeminiExplanation = %v, want nil", *inc.GeminiExplanation)
	}
	if inc.GeminiSuggestions == nil || len(inc.GeminiSuggestions) != 0 {
		t.Errorf("GeminiSuggestions = %v, want empty non-nil", inc.GeminiSuggestions)
	}
	if len(inc.Timeline) != 1 || inc.Timeline[0].Message != "Incident detected" {
		t.Errorf("Timeline = %+v, want single detected entry", inc.Timeline)
	}
}

func TestUniqueIDs(t *testing.T) {
	s := NewService()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		inc, err := s.Create("r", "c", "", "", nil)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[inc.IncidentID] {
			t.Fatalf("duplicate id %s", inc.IncidentID)
		}
		seen[inc.IncidentID] = true
	}
	if s.Count() != 200 {
		t.Errorf("Count() = %d, want 200", s.Count())
	}
}

func TestLifecycle(t *testing.T) {
	s := newTestService(t)
	inc, _ := s.Create("repo-unicorn", "abcd1234", "sum", "ctx", nil)

	analysed, err := s.UpdateWithAnalysis(inc.IncidentID, Analysis{
		Explanation:    "missing password check",
		RootCause:      "auth skipped",
		SecurityImpact: "bypass",
		Suggestions:    []string{"Verify the password hash"},
	})
	if err != nil {
		t.Fatalf("UpdateWithAnalysis: %v", err)
	}
	if analysed.Status != StatusAnalysed {
		t.Errorf("Status = %q, want %q", analysed.Status, StatusAnalysed)
	}
	if analysed.GeminiExplanation == nil || *analysed.GeminiExplanation != "missing password check" {
		t.Errorf("GeminiExplanation not stored")
	}
	if analysed.RootCause != "auth skipped" {
		t.Errorf("RootCause = %q, want %q", analysed.RootCause, "auth skipped")
	}

	// Re-analysis is allowed.
	if _, err := s.UpdateWithAnalysis(inc.IncidentID, Analysis{Explanation: "again"}); err != nil {
		t.Fatalf("re-analysis: %v", err)
	}

	ready, err := s.MarkFixReady(inc.IncidentID, "PR-1-abcdef")
	if err != nil {
		t.Fatalf("MarkFixReady: %v", err)
	}
	if ready.PRID != "PR-1-abcdef" {
		t.Errorf("PRID = %q, want PR-1-abcdef", ready.PRID)
	}
	last := ready.Timeline[len(ready.Timeline)-1]
	if last.Message != "PR created: PR-1-abcdef" {
		t.Errorf("timeline message = %q, want %q", last.Message, "PR created: PR-1-abcdef")
	}

	resolved, err := s.MarkResolved(inc.IncidentID)
	if err != nil {
		t.Fatalf("MarkResolved: %v", err)
	}
	if resolved.Status != StatusResolved {
		t.Errorf("Status = %q, want %q", resolved.Status, StatusResolved)
	}
	if len(resolved.Timeline) != 5 {
		t.Errorf("len(Timeline) = %d, want 5", len(resolved.Timeline))
	}
	if !resolved.UpdatedAt.After(resolved.CreatedAt) {
		t.Errorf("UpdatedAt %v not after CreatedAt %v", resolved.UpdatedAt, resolved.CreatedAt)
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *Service, id string)
		do    func(s *Service, id string) error
	}{
		{
			name: "fix ready before analysis",
			do: func(s *Service, id string) error {
				_, err := s.MarkFixReady(id, "PR")
				return err
			},
		},
		{
			name: "resolve before fix",
			setup: func(s *Service, id string) {
				s.UpdateWithAnalysis(id, Analysis{})
			},
			do: func(s *Service, id string) error {
				_, err := s.MarkResolved(id)
				return err
			},
		},
		{
			name: "analyse after fix ready",
			setup: func(s *Service, id string) {
				s.UpdateWithAnalysis(id, Analysis{})
				s.MarkFixReady(id, "PR")
			},
			do: func(s *Service, id string) error {
				_, err := s.UpdateWithAnalysis(id, Analysis{})
				return err
			},
		},
		{
			name: "resolve twice",
			setup: func(s *Service, id string) {
				s.UpdateWithAnalysis(id, Analysis{})
				s.MarkFixReady(id, "PR")
				s.MarkResolved(id)
			},
			do: func(s *Service, id string) error {
				_, err := s.MarkResolved(id)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t)
			inc, _ := s.Create("r", "c", "", "", nil)
			if tt.setup != nil {
				tt.setup(s, inc.IncidentID)
			}
			before, _ := s.Get(inc.IncidentID)
			err := tt.do(s, inc.IncidentID)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("err = %v, want ErrInvalidTransition", err)
			}
			after, _ := s.Get(inc.IncidentID)
			if after.Status != before.Status || len(after.Timeline) != len(before.Timeline) {
				t.Errorf("incident changed on rejected transition")
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	s := NewService()
	if _, err := s.Get("INC-nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if _, err := s.MarkResolved("INC-nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkResolved err = %v, want ErrNotFound", err)
	}
}

func TestListAndFind(t *testing.T) {
	s := newTestService(t)
	first, _ := s.Create("repo-a", "c1", "", "", nil)
	second, _ := s.Create("repo-a", "c2", "", "", nil)
	s.Create("repo-b", "c3", "", "", nil)

	list := s.List("repo-a")
	if len(list) != 2 {
		t.Fatalf("len(List) = %d, want 2", len(list))
	}
	if list[0].IncidentID != first.IncidentID || list[1].IncidentID != second.IncidentID {
		t.Errorf("List order = %s, %s; want oldest first", list[0].IncidentID, list[1].IncidentID)
	}
	if got := s.List("missing"); got == nil || len(got) != 0 {
		t.Errorf("List(missing) = %v, want empty slice", got)
	}

	found, ok := s.FindByCommit("repo-a", "c2")
	if !ok || found.IncidentID != second.IncidentID {
		t.Errorf("FindByCommit = %v, %v; want %s", found, ok, second.IncidentID)
	}
	if _, ok := s.FindByCommit("repo-b", "c1"); ok {
		t.Error("FindByCommit matched across repos")
	}
}

func TestCreateIfAbsent(t *testing.T) {
	s := newTestService(t)
	first, created, err := s.CreateIfAbsent("repo-a", "c1", "s", "ctx", nil)
	if err != nil || !created {
		t.Fatalf("CreateIfAbsent = %v, %v; want new incident", created, err)
	}
	again, created, err := s.CreateIfAbsent("repo-a", "c1", "s", "ctx", nil)
	if err != nil || created {
		t.Fatalf("second CreateIfAbsent = %v, %v; want existing", created, err)
	}
	if again.IncidentID != first.IncidentID {
		t.Errorf("IncidentID = %q, want %q", again.IncidentID, first.IncidentID)
	}
	if _, created, _ := s.CreateIfAbsent("repo-b", "c1", "s", "ctx", nil); !created {
		t.Error("same commit id in another repo should raise its own incident")
	}
}

func TestCreateIfAbsentConcurrent(t *testing.T) {
	s := NewService()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := s.CreateIfAbsent("repo-a", "c1", "", "", nil)
			if err != nil {
				t.Errorf("CreateIfAbsent: %v", err)
				return
			}
			if isNew {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewService()
	inc, _ := s.Create("r", "c", "", "", []string{"a"})
	inc.Findings[0] = "mutated"
	inc.Status = StatusResolved

	got, _ := s.Get(inc.IncidentID)
	if got.Findings[0] != "a" || got.Status != StatusDetected {
		t.Errorf("stored incident was mutated through returned copy: %+v", got)
	}
}

func TestSuffix(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"INC-1700000000000-a1b2c3d4", "a1b2c3d4"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Suffix(tt.in); got != tt.want {
			t.Errorf("Suffix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
