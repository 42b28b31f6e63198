package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/repo"
	"github.com/shhac/devcopilot/internal/scan"
)

type connectRequest struct {
	APIKey string `json:"apiKey"`
	RepoID string `json:"repoId"`
}

type repoRequest struct {
	RepoID string `json:"repoId"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ok",
		"repos":              len(s.store.ListRepos()),
		"incidents":          s.incidents.Count(),
		"analyzerConfigured": s.currentAnalyzer() != nil,
	})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.APIKey == "" || req.RepoID == "" {
		writeError(w, r, http.StatusBadRequest, "API key and repoId required")
		return
	}

	rp, err := s.store.GetRepo(req.RepoID)
	if err != nil {
		reportError(w, r, err, "Repository not found")
		return
	}
	a, err := s.newAnalyzer(req.APIKey)
	if err != nil {
		reportError(w, r, err, "")
		return
	}
	s.setAnalyzer(a)
	log.Info().Str("repo", rp.RepoID).Msg("analyzer connected")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Connected successfully",
		"repo": repo.RepoSummary{
			RepoID:        rp.RepoID,
			Name:          rp.Name,
			Owner:         rp.Owner,
			DefaultBranch: rp.DefaultBranch,
		},
	})
}

func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"repos": s.store.ListRepos()})
}

// requireRepo reads the repoId query parameter and checks the repo exists.
func (s *Server) requireRepo(w http.ResponseWriter, r *http.Request) (string, bool) {
	repoID := r.URL.Query().Get("repoId")
	if repoID == "" {
		writeError(w, r, http.StatusBadRequest, "repoId required")
		return "", false
	}
	if _, err := s.store.GetRepo(repoID); err != nil {
		reportError(w, r, err, "Repository not found")
		return "", false
	}
	return repoID, true
}

// requireQuery reads the named query parameters, all of which must be set.
func requireQuery(w http.ResponseWriter, r *http.Request, names ...string) ([]string, bool) {
	q := r.URL.Query()
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = q.Get(n)
		if out[i] == "" {
			writeError(w, r, http.StatusBadRequest, n+" required")
			return nil, false
		}
	}
	return out, true
}

func (s *Server) handleListBranches(w http.ResponseWriter, r *http.Request) {
	repoID, ok := s.requireRepo(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"branches": s.store.ListBranches(repoID)})
}

func (s *Server) handleListCommits(w http.ResponseWriter, r *http.Request) {
	repoID, ok := s.requireRepo(w, r)
	if !ok {
		return
	}
	commits, err := s.store.ListCommits(repoID, r.URL.Query().Get("branch"))
	if err != nil {
		reportError(w, r, err, "")
		return
	}
	if commits == nil {
		commits = []repo.Commit{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"commits": commits})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	repoID, ok := s.requireRepo(w, r)
	if !ok {
		return
	}
	st, err := s.sim.CurrentState(repoID)
	if err != nil {
		reportError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	repoID, ok := s.requireRepo(w, r)
	if !ok {
		return
	}
	args, ok := requireQuery(w, r, "from", "to")
	if !ok {
		return
	}
	diff, err := s.store.DiffBetweenCommits(repoID, args[0], args[1])
	if err != nil {
		reportError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	repoID, ok := s.requireRepo(w, r)
	if !ok {
		return
	}
	args, ok := requireQuery(w, r, "commitId", "path")
	if !ok {
		return
	}
	content, err := s.store.FileContent(repoID, args[0], args[1])
	if err != nil {
		reportError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"commitId": args[0],
		"path":     args[1],
		"content":  content,
	})
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	repoID, ok := s.requireRepo(w, r)
	if !ok {
		return
	}
	args, ok := requireQuery(w, r, "from", "to", "path")
	if !ok {
		return
	}
	patch, err := s.store.FilePatch(repoID, args[0], args[1], args[2])
	if err != nil {
		reportError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, patch)
}

func (s *Server) handleInjectBug(w http.ResponseWriter, r *http.Request) {
	var req repoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RepoID == "" {
		writeError(w, r, http.StatusBadRequest, "repoId required")
		return
	}

	commit, err := s.sim.InjectBug(req.RepoID)
	if err != nil {
		reportError(w, r, err, "Repository not found")
		return
	}
	s.board.UpdateStatus(agent.SystemBoard, agent.Memory, agent.StatusRunning)
	log.Info().Str("repo", req.RepoID).Str("commit", commit.ID).Msg("bug injected")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"commit":  commit,
		"message": "Bug injected successfully",
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req repoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RepoID == "" {
		writeError(w, r, http.StatusBadRequest, "repoId required")
		return
	}
	buggy, err := s.store.CommitsOfType(req.RepoID, repo.CommitBuggy)
	if err != nil {
		reportError(w, r, err, "Repository not found")
		return
	}

	created := []incident.Incident{}
	for _, commit := range buggy {
		if _, exists := s.incidents.FindByCommit(req.RepoID, commit.ID); exists {
			continue
		}
		findings, err := s.scanner.Scan(r.Context(), commit, scan.CommitFiles(s.store, req.RepoID, commit))
		if err != nil {
			reportError(w, r, err, "")
			return
		}
		inc, isNew, err := s.incidents.CreateIfAbsent(req.RepoID, commit.ID, scan.Summary, scan.ErrorContext(commit, findings), scan.Messages(findings))
		if err != nil {
			reportError(w, r, err, "")
			return
		}
		if !isNew {
			// A concurrent scan raised it first.
			continue
		}
		s.board.Initialize(inc.IncidentID)
		s.board.UpdateStatus(inc.IncidentID, agent.Monitoring, agent.StatusDone)
		s.metrics.incidents.Inc()
		log.Info().
			Str("repo", req.RepoID).
			Str("commit", commit.ID).
			Str("incident", inc.IncidentID).
			Int("findings", len(findings)).
			Msg("incident detected")
		created = append(created, *inc)
	}

	msg := "No issues found"
	if len(created) > 0 {
		msg = fmt.Sprintf("Found %d incident(s)", len(created))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   msg,
		"incidents": created,
	})
}
