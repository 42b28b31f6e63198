// Package client is a typed Go client for the devcopilot REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/gemini"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/repo"
	"github.com/shhac/devcopilot/internal/simulator"
)

// DefaultTimeout bounds a single API call. Analysis calls can be slow.
const DefaultTimeout = 90 * time.Second

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a devcopilot server. BaseURL includes the /api prefix.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL, e.g. "http://localhost:8080/api".
// A nil httpClient uses one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Health is the /health response.
type Health struct {
	Status             string `json:"status"`
	Repos              int    `json:"repos"`
	Incidents          int    `json:"incidents"`
	AnalyzerConfigured bool   `json:"analyzerConfigured"`
}

// ConnectResult is the /config/connect response.
type ConnectResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Repo    repo.RepoSummary `json:"repo"`
}

// InjectResult is the /repo/inject-bug response.
type InjectResult struct {
	Success bool        `json:"success"`
	Commit  repo.Commit `json:"commit"`
	Message string      `json:"message"`
}

// ScanResult is the /repo/scan response.
type ScanResult struct {
	Success   bool                `json:"success"`
	Message   string              `json:"message"`
	Incidents []incident.Incident `json:"incidents"`
}

// AnalyseResult is the /repo/analyse response.
type AnalyseResult struct {
	Success  bool              `json:"success"`
	Analysis gemini.Analysis   `json:"analysis"`
	Incident incident.Incident `json:"incident"`
}

// FixResult is returned by /repo/autofix and /repo/merge. Incident is nil
// when a merged pull request had no incident to resolve.
type FixResult struct {
	Success     bool               `json:"success"`
	PullRequest repo.PullRequest   `json:"pullRequest"`
	Incident    *incident.Incident `json:"incident"`
}

// FileResult is the /repo/file response.
type FileResult struct {
	CommitID string `json:"commitId"`
	Path     string `json:"path"`
	Content  string `json:"content"`
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Connect supplies an analysis API key for repoID.
func (c *Client) Connect(ctx context.Context, apiKey, repoID string) (*ConnectResult, error) {
	var out ConnectResult
	body := map[string]string{"apiKey": apiKey, "repoId": repoID}
	if err := c.post(ctx, "/config/connect", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListRepos(ctx context.Context) ([]repo.RepoSummary, error) {
	var out struct {
		Repos []repo.RepoSummary `json:"repos"`
	}
	if err := c.get(ctx, "/repo/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Repos, nil
}

func (c *Client) ListBranches(ctx context.Context, repoID string) ([]repo.Branch, error) {
	var out struct {
		Branches []repo.Branch `json:"branches"`
	}
	if err := c.get(ctx, "/repo/branches", url.Values{"repoId": {repoID}}, &out); err != nil {
		return nil, err
	}
	return out.Branches, nil
}

// ListCommits lists commits newest first. An empty branch lists all branches.
func (c *Client) ListCommits(ctx context.Context, repoID, branch string) ([]repo.Commit, error) {
	q := url.Values{"repoId": {repoID}}
	if branch != "" {
		q.Set("branch", branch)
	}
	var out struct {
		Commits []repo.Commit `json:"commits"`
	}
	if err := c.get(ctx, "/repo/commits", q, &out); err != nil {
		return nil, err
	}
	return out.Commits, nil
}

func (c *Client) State(ctx context.Context, repoID string) (*simulator.State, error) {
	var out simulator.State
	if err := c.get(ctx, "/repo/state", url.Values{"repoId": {repoID}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Diff(ctx context.Context, repoID, from, to string) (*repo.Diff, error) {
	var out repo.Diff
	q := url.Values{"repoId": {repoID}, "from": {from}, "to": {to}}
	if err := c.get(ctx, "/repo/diff", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) File(ctx context.Context, repoID, commitID, path string) (*FileResult, error) {
	var out FileResult
	q := url.Values{"repoId": {repoID}, "commitId": {commitID}, "path": {path}}
	if err := c.get(ctx, "/repo/file", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Patch(ctx context.Context, repoID, from, to, path string) (*repo.FilePatch, error) {
	var out repo.FilePatch
	q := url.Values{"repoId": {repoID}, "from": {from}, "to": {to}, "path": {path}}
	if err := c.get(ctx, "/repo/patch", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) InjectBug(ctx context.Context, repoID string) (*InjectResult, error) {
	var out InjectResult
	if err := c.post(ctx, "/repo/inject-bug", map[string]string{"repoId": repoID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Scan(ctx context.Context, repoID string) (*ScanResult, error) {
	var out ScanResult
	if err := c.post(ctx, "/repo/scan", map[string]string{"repoId": repoID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Analyse(ctx context.Context, incidentID string) (*AnalyseResult, error) {
	var out AnalyseResult
	if err := c.post(ctx, "/repo/analyse", map[string]string{"incidentId": incidentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Autofix(ctx context.Context, incidentID string) (*FixResult, error) {
	var out FixResult
	if err := c.post(ctx, "/repo/autofix", map[string]string{"incidentId": incidentID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Merge(ctx context.Context, repoID, prID string) (*FixResult, error) {
	var out FixResult
	body := map[string]string{"repoId": repoID, "prId": prID}
	if err := c.post(ctx, "/repo/merge", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListIncidents(ctx context.Context, repoID string) ([]incident.Incident, error) {
	var out struct {
		Incidents []incident.Incident `json:"incidents"`
	}
	if err := c.get(ctx, "/repo/incidents", url.Values{"repoId": {repoID}}, &out); err != nil {
		return nil, err
	}
	return out.Incidents, nil
}

func (c *Client) GetIncident(ctx context.Context, incidentID string) (*incident.Incident, error) {
	var out struct {
		Incident incident.Incident `json:"incident"`
	}
	if err := c.get(ctx, "/repo/incident/"+url.PathEscape(incidentID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Incident, nil
}

func (c *Client) ListPullRequests(ctx context.Context, repoID string) ([]repo.PullRequest, error) {
	var out struct {
		PullRequests []repo.PullRequest `json:"pullRequests"`
	}
	if err := c.get(ctx, "/repo/pull-requests", url.Values{"repoId": {repoID}}, &out); err != nil {
		return nil, err
	}
	return out.PullRequests, nil
}

// GetPullRequest fetches a pull request. repoID may be empty.
func (c *Client) GetPullRequest(ctx context.Context, repoID, prID string) (*repo.PullRequest, error) {
	var q url.Values
	if repoID != "" {
		q = url.Values{"repoId": {repoID}}
	}
	var out struct {
		PullRequest repo.PullRequest `json:"pullRequest"`
	}
	if err := c.get(ctx, "/repo/pull-request/"+url.PathEscape(prID), q, &out); err != nil {
		return nil, err
	}
	return &out.PullRequest, nil
}

// AgentState returns the agent board of incidentID, or the system board
// when incidentID is empty.
func (c *Client) AgentState(ctx context.Context, incidentID string) (*agent.Summary, error) {
	path := "/agent-state"
	if incidentID != "" {
		path += "/" + url.PathEscape(incidentID)
	}
	var out agent.Summary
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartWorkflow asks the server to animate a named agent workflow.
func (c *Client) StartWorkflow(ctx context.Context, incidentID, workflow string) error {
	path := "/agent-state/" + url.PathEscape(incidentID) + "/workflow"
	return c.post(ctx, path, map[string]string{"workflow": workflow}, nil)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
