package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/gemini"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/repo"
)

func newDemoStore(t *testing.T) *repo.Store {
	t.Helper()
	store, err := repo.NewDemoStore()
	require.NoError(t, err)
	return store
}

func makeTestServer(t *testing.T, analyzer gemini.Analyzer) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(Options{
		Store:    newDemoStore(t),
		Analyzer: analyzer,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func doJSON(t *testing.T, method, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type incidentResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	Incident    incident.Incident `json:"incident"`
	PullRequest repo.PullRequest  `json:"pullRequest"`
	Analysis    gemini.Analysis   `json:"analysis"`
	Error       string            `json:"error"`
}

func TestHealth(t *testing.T) {
	_, ts := makeTestServer(t, gemini.DemoAnalyzer{})

	var out map[string]interface{}
	resp := doJSON(t, "GET", ts.URL+"/api/health", nil, &out)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, true, out["analyzerConfigured"])
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	req, err := http.NewRequest("GET", ts.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestRepoReads(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	var repos struct {
		Repos []repo.RepoSummary `json:"repos"`
	}
	resp := doJSON(t, "GET", ts.URL+"/api/repo/list", nil, &repos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, repos.Repos, 1)
	assert.Equal(t, "repo-unicorn", repos.Repos[0].RepoID)

	var branches struct {
		Branches []repo.Branch `json:"branches"`
	}
	doJSON(t, "GET", ts.URL+"/api/repo/branches?repoId=repo-unicorn", nil, &branches)
	assert.Len(t, branches.Branches, 2)

	var commits struct {
		Commits []repo.Commit `json:"commits"`
	}
	doJSON(t, "GET", ts.URL+"/api/repo/commits?repoId=repo-unicorn&branch=main", nil, &commits)
	assert.NotEmpty(t, commits.Commits)

	var state map[string]interface{}
	resp = doJSON(t, "GET", ts.URL+"/api/repo/state?repoId=repo-unicorn", nil, &state)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, state["hasBug"])
}

func TestRepoReadErrors(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	tests := []struct {
		url    string
		status int
		msg    string
	}{
		{"/api/repo/branches", http.StatusBadRequest, "repoId required"},
		{"/api/repo/branches?repoId=nope", http.StatusNotFound, "Repository not found"},
		{"/api/repo/diff?repoId=repo-unicorn&from=a", http.StatusBadRequest, "to required"},
		{"/api/repo/file?repoId=repo-unicorn&commitId=fc94782a", http.StatusBadRequest, "path required"},
		{"/api/repo/incidents", http.StatusBadRequest, "repoId required"},
		{"/api/repo/incident/INC-1-deadbeef", http.StatusNotFound, "Incident not found"},
		{"/api/repo/pull-request/PR-1-abcdef", http.StatusNotFound, "Pull request not found"},
		{"/api/nothing-here", http.StatusNotFound, "Not found"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			var out errorBody
			resp := doJSON(t, "GET", ts.URL+tt.url, nil, &out)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, out.Error)
		})
	}
}

func TestFullRemediationFlow(t *testing.T) {
	_, ts := makeTestServer(t, gemini.DemoAnalyzer{})
	api := ts.URL + "/api"

	// Inject.
	var injected struct {
		Success bool        `json:"success"`
		Commit  repo.Commit `json:"commit"`
	}
	resp := doJSON(t, "POST", api+"/repo/inject-bug", map[string]string{"repoId": "repo-unicorn"}, &injected)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, injected.Success)
	assert.Equal(t, repo.CommitBuggy, injected.Commit.Type)

	var state map[string]interface{}
	doJSON(t, "GET", api+"/repo/state?repoId=repo-unicorn", nil, &state)
	assert.Equal(t, true, state["hasBug"])

	// Scan.
	var scanned struct {
		Message   string              `json:"message"`
		Incidents []incident.Incident `json:"incidents"`
	}
	resp = doJSON(t, "POST", api+"/repo/scan", map[string]string{"repoId": "repo-unicorn"}, &scanned)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, scanned.Incidents, 1)
	assert.Equal(t, "Found 1 incident(s)", scanned.Message)

	inc := scanned.Incidents[0]
	assert.Equal(t, incident.StatusDetected, inc.Status)
	assert.Equal(t, injected.Commit.ID, inc.CommitID)
	assert.Contains(t, inc.ErrorContext, "Authentication bypass detected in commit "+injected.Commit.ID)
	assert.NotEmpty(t, inc.Findings)

	// A second scan finds nothing new.
	resp = doJSON(t, "POST", api+"/repo/scan", map[string]string{"repoId": "repo-unicorn"}, &scanned)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, scanned.Incidents)
	assert.Equal(t, "No issues found", scanned.Message)

	var board agent.Summary
	doJSON(t, "GET", api+"/agent-state/"+inc.IncidentID, nil, &board)
	require.Len(t, board.Agents, 5)
	assert.Equal(t, agent.StatusDone, board.Agents[0].Status)

	// Autofix before analysis is refused.
	var out incidentResponse
	resp = doJSON(t, "POST", api+"/repo/autofix", map[string]string{"incidentId": inc.IncidentID}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Must analyze incident first", out.Error)

	// Analyse.
	out = incidentResponse{}
	resp = doJSON(t, "POST", api+"/repo/analyse", map[string]string{"incidentId": inc.IncidentID}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode, out.Error)
	assert.True(t, out.Success)
	assert.Equal(t, incident.StatusAnalysed, out.Incident.Status)
	require.NotNil(t, out.Incident.GeminiExplanation)
	assert.NotEmpty(t, out.Analysis.Suggestions)
	assert.Equal(t, out.Analysis.Suggestions, out.Incident.GeminiSuggestions)

	// Autofix.
	out = incidentResponse{}
	resp = doJSON(t, "POST", api+"/repo/autofix", map[string]string{"incidentId": inc.IncidentID}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode, out.Error)
	pr := out.PullRequest
	assert.Equal(t, incident.StatusFixReady, out.Incident.Status)
	assert.Equal(t, pr.PRID, out.Incident.PRID)
	assert.Equal(t, repo.PROpen, pr.Status)
	assert.Equal(t, "main", pr.TargetBranch)
	assert.True(t, strings.HasPrefix(pr.SourceBranch, fixBranchPrefix))
	assert.Equal(t, "Security Fix: Resolve authentication bypass in "+pr.SourceBranch, pr.Title)
	assert.Contains(t, pr.Description, "## Security Impact")
	require.Len(t, pr.Commits, 1)

	doJSON(t, "GET", api+"/agent-state/"+inc.IncidentID, nil, &board)
	assert.Equal(t, agent.StatusDone, board.OverallStatus)
	require.NotNil(t, board.Agents[4].Metrics)
	assert.Equal(t, 1, board.Agents[4].Metrics.Usage)

	// The fix cleared the live bug.
	doJSON(t, "GET", api+"/repo/state?repoId=repo-unicorn", nil, &state)
	assert.Equal(t, false, state["hasBug"])
	assert.Equal(t, string(repo.CommitFixed), state["currentType"])

	// A second autofix conflicts.
	resp = doJSON(t, "POST", api+"/repo/autofix", map[string]string{"incidentId": inc.IncidentID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Merge.
	out = incidentResponse{}
	resp = doJSON(t, "POST", api+"/repo/merge", map[string]string{"repoId": "repo-unicorn", "prId": pr.PRID}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode, out.Error)
	assert.Equal(t, repo.PRMerged, out.PullRequest.Status)
	assert.NotNil(t, out.PullRequest.MergedAt)
	assert.Equal(t, incident.StatusResolved, out.Incident.Status)
	assert.Len(t, out.Incident.Timeline, 4)

	var branches struct {
		Branches []repo.Branch `json:"branches"`
	}
	doJSON(t, "GET", api+"/repo/branches?repoId=repo-unicorn", nil, &branches)
	for _, b := range branches.Branches {
		if b.Name == "main" {
			assert.Equal(t, pr.Commits[0], b.CommitID)
		}
	}

	resp = doJSON(t, "POST", api+"/repo/merge", map[string]string{"repoId": "repo-unicorn", "prId": pr.PRID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Lists.
	var incidents struct {
		Incidents []incident.Incident `json:"incidents"`
	}
	doJSON(t, "GET", api+"/repo/incidents?repoId=repo-unicorn", nil, &incidents)
	require.Len(t, incidents.Incidents, 1)
	assert.Equal(t, incident.StatusResolved, incidents.Incidents[0].Status)

	var prs struct {
		PullRequests []repo.PullRequest `json:"pullRequests"`
	}
	doJSON(t, "GET", api+"/repo/pull-requests?repoId=repo-unicorn", nil, &prs)
	assert.Len(t, prs.PullRequests, 1)

	var single struct {
		PullRequest repo.PullRequest `json:"pullRequest"`
	}
	resp = doJSON(t, "GET", api+"/repo/pull-request/"+pr.PRID, nil, &single)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pr.PRID, single.PullRequest.PRID)
}

func TestAutofixRetryAfterDiscardedBranch(t *testing.T) {
	s, ts := makeTestServer(t, gemini.DemoAnalyzer{})
	api := ts.URL + "/api"

	resp := doJSON(t, "POST", api+"/repo/inject-bug", map[string]string{"repoId": "repo-unicorn"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var scanned struct {
		Incidents []incident.Incident `json:"incidents"`
	}
	doJSON(t, "POST", api+"/repo/scan", map[string]string{"repoId": "repo-unicorn"}, &scanned)
	require.Len(t, scanned.Incidents, 1)
	inc := scanned.Incidents[0]
	resp = doJSON(t, "POST", api+"/repo/analyse", map[string]string{"incidentId": inc.IncidentID}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// A failed attempt that left its branch and fix commit behind.
	branch := fixBranchPrefix + repo.ShortID(incident.Suffix(inc.IncidentID), 8)
	_, err := s.store.CreateBranch("repo-unicorn", "main", branch)
	require.NoError(t, err)
	_, err = s.sim.ApplyFix("repo-unicorn", branch, []string{"stale fix"})
	require.NoError(t, err)

	resp = doJSON(t, "POST", api+"/repo/autofix", map[string]string{"incidentId": inc.IncidentID}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	s.discardFixBranch("repo-unicorn", branch)
	commits, err := s.store.ListCommits("repo-unicorn", branch)
	require.NoError(t, err)
	assert.Empty(t, commits)

	var out incidentResponse
	resp = doJSON(t, "POST", api+"/repo/autofix", map[string]string{"incidentId": inc.IncidentID}, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode, out.Error)
	assert.Equal(t, branch, out.PullRequest.SourceBranch)
	assert.Equal(t, incident.StatusFixReady, out.Incident.Status)

	commits, err = s.store.ListCommits("repo-unicorn", branch)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, []string{commits[0].ID}, out.PullRequest.Commits)
}

func TestConcurrentScansRaiseOneIncidentPerCommit(t *testing.T) {
	_, ts := makeTestServer(t, gemini.DemoAnalyzer{})
	api := ts.URL + "/api"
	resp := doJSON(t, "POST", api+"/repo/inject-bug", map[string]string{"repoId": "repo-unicorn"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reported int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(api+"/repo/scan", "application/json", strings.NewReader(`{"repoId":"repo-unicorn"}`))
			if err != nil {
				t.Errorf("scan: %v", err)
				return
			}
			defer resp.Body.Close()
			var out struct {
				Incidents []incident.Incident `json:"incidents"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Errorf("decode: %v", err)
				return
			}
			mu.Lock()
			reported += len(out.Incidents)
			mu.Unlock()
		}()
	}
	wg.Wait()

	var list struct {
		Incidents []incident.Incident `json:"incidents"`
	}
	doJSON(t, "GET", api+"/repo/incidents?repoId=repo-unicorn", nil, &list)
	assert.Equal(t, len(list.Incidents), reported, "every incident is reported by exactly one scan")

	commits := make(map[string]bool)
	for _, inc := range list.Incidents {
		assert.False(t, commits[inc.CommitID], "duplicate incident for commit %s", inc.CommitID)
		commits[inc.CommitID] = true
	}
}

func TestAnalyseWithoutAnalyzer(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	var out errorBody
	resp := doJSON(t, "POST", ts.URL+"/api/repo/analyse", map[string]string{"incidentId": "INC-1-deadbeef"}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Gemini API not configured. Please configure API key first.", out.Error)
}

func TestAnalyseValidation(t *testing.T) {
	_, ts := makeTestServer(t, gemini.DemoAnalyzer{})

	var out errorBody
	resp := doJSON(t, "POST", ts.URL+"/api/repo/analyse", map[string]string{}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "incidentId required", out.Error)

	resp = doJSON(t, "POST", ts.URL+"/api/repo/analyse", map[string]string{"incidentId": "INC-1-deadbeef"}, &out)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Incident not found", out.Error)
}

func TestConnect(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"missing key", map[string]string{"repoId": "repo-unicorn"}, http.StatusBadRequest},
		{"missing repo", map[string]string{"apiKey": "demo-key"}, http.StatusBadRequest},
		{"unknown repo", map[string]string{"apiKey": "demo-key", "repoId": "nope"}, http.StatusNotFound},
		{"demo key", map[string]string{"apiKey": "demo-key", "repoId": "repo-unicorn"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, "POST", ts.URL+"/api/config/connect", tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	var health map[string]interface{}
	doJSON(t, "GET", ts.URL+"/api/health", nil, &health)
	assert.Equal(t, true, health["analyzerConfigured"])
}

func TestMergeValidation(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	var out errorBody
	resp := doJSON(t, "POST", ts.URL+"/api/repo/merge", map[string]string{"repoId": "repo-unicorn"}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "repoId and prId required", out.Error)

	resp = doJSON(t, "POST", ts.URL+"/api/repo/merge", map[string]string{"repoId": "repo-unicorn", "prId": "PR-1-abcdef"}, &out)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidJSONBody(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/repo/inject-bug", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSystemAgentBoard(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	doJSON(t, "POST", ts.URL+"/api/repo/inject-bug", map[string]string{"repoId": "repo-unicorn"}, nil)

	var board agent.Summary
	resp := doJSON(t, "GET", ts.URL+"/api/agent-state", nil, &board)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, board.Agents, 5)
	assert.Equal(t, agent.StatusRunning, board.Agents[4].Status)
	assert.Equal(t, agent.StatusRunning, board.OverallStatus)
}

func TestWorkflow(t *testing.T) {
	s, ts := makeTestServer(t, nil)

	var accepted map[string]interface{}
	resp := doJSON(t, "POST", ts.URL+"/api/agent-state/INC-1-abc/workflow", map[string]string{"workflow": "autofix"}, &accepted)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, true, accepted["accepted"])

	require.Eventually(t, func() bool {
		return s.board.Get("INC-1-abc")[4].Status == agent.StatusDone
	}, 2*time.Second, 10*time.Millisecond)
	agents := s.board.Get("INC-1-abc")
	assert.Equal(t, agent.StatusIdle, agents[0].Status)
	assert.Equal(t, agent.StatusDone, agents[2].Status)
	assert.Equal(t, agent.StatusDone, agents[3].Status)
	assert.Equal(t, agent.StatusDone, agents[4].Status)
}

func TestWorkflowUnknown(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	var out errorBody
	resp := doJSON(t, "POST", ts.URL+"/api/agent-state/INC-1-abc/workflow", map[string]string{"workflow": "deploy"}, &out)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Unknown workflow: deploy", out.Error)
}

func TestMetrics(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	doJSON(t, "GET", ts.URL+"/api/repo/list", nil, nil)

	resp, err := http.Get(ts.URL + "/api/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `devcopilot_http_requests_total{method="GET",route="/api/repo/list",status="200"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	_, ts := makeTestServer(t, nil)

	req, err := http.NewRequest("OPTIONS", ts.URL+"/api/repo/scan", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	s, err := New(Options{Store: newDemoStore(t)})
	require.NoError(t, err)
	defer s.Close()
	s.router.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
