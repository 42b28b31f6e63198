package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/gemini"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/pullrequest"
	"github.com/shhac/devcopilot/internal/repo"
	"github.com/shhac/devcopilot/internal/simulator"
)

const (
	fixBranchPrefix = "fix/auth-bypass-"
	fixSummary      = "This PR resolves the authentication bypass vulnerability."
)

type incidentRequest struct {
	IncidentID string `json:"incidentId"`
}

type mergeRequest struct {
	RepoID string `json:"repoId"`
	PRID   string `json:"prId"`
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	repoID := r.URL.Query().Get("repoId")
	if repoID == "" {
		writeError(w, r, http.StatusBadRequest, "repoId required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"incidents": s.incidents.List(repoID)})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	inc, err := s.incidents.Get(mux.Vars(r)["incidentId"])
	if err != nil {
		reportError(w, r, err, "Incident not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"incident": inc})
}

func (s *Server) handleListPullRequests(w http.ResponseWriter, r *http.Request) {
	repoID := r.URL.Query().Get("repoId")
	if repoID == "" {
		writeError(w, r, http.StatusBadRequest, "repoId required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pullRequests": s.prs.List(repoID)})
}

func (s *Server) handleGetPullRequest(w http.ResponseWriter, r *http.Request) {
	prID := mux.Vars(r)["prId"]
	var (
		pr  *repo.PullRequest
		err error
	)
	if repoID := r.URL.Query().Get("repoId"); repoID != "" {
		pr, err = s.prs.Get(repoID, prID)
	} else {
		pr, err = s.prs.Find(prID)
	}
	if err != nil {
		reportError(w, r, err, "Pull request not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pullRequest": pr})
}

func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.IncidentID == "" {
		writeError(w, r, http.StatusBadRequest, "incidentId required")
		return
	}
	analyzer := s.currentAnalyzer()
	if analyzer == nil {
		writeError(w, r, http.StatusBadRequest, "Gemini API not configured. Please configure API key first.")
		return
	}

	inc, err := s.incidents.Get(req.IncidentID)
	if err != nil {
		reportError(w, r, err, "Incident not found")
		return
	}
	if inc.Status != incident.StatusDetected && inc.Status != incident.StatusAnalysed {
		writeError(w, r, http.StatusConflict, fmt.Sprintf("Incident is %s and can no longer be analysed", inc.Status))
		return
	}

	input, err := s.analysisInput(inc)
	if err != nil {
		reportError(w, r, err, "")
		return
	}

	s.board.UpdateStatus(inc.IncidentID, agent.Analysis, agent.StatusRunning)
	analysis, err := analyzer.Analyze(r.Context(), input)
	if err != nil {
		s.board.UpdateStatus(inc.IncidentID, agent.Analysis, agent.StatusError)
		s.metrics.analyses.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("incident", inc.IncidentID).Msg("analysis failed")

		status := http.StatusInternalServerError
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
		writeError(w, r, status, err.Error())
		return
	}

	updated, err := s.incidents.UpdateWithAnalysis(inc.IncidentID, incident.Analysis{
		Explanation:    analysis.Explanation,
		RootCause:      analysis.RootCause,
		SecurityImpact: analysis.SecurityImpact,
		Suggestions:    analysis.Suggestions,
	})
	if err != nil {
		s.board.UpdateStatus(inc.IncidentID, agent.Analysis, agent.StatusError)
		reportError(w, r, err, "Incident not found")
		return
	}
	s.board.UpdateStatus(inc.IncidentID, agent.Analysis, agent.StatusDone)
	s.metrics.analyses.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"analysis": analysis,
		"incident": updated,
	})
}

// analysisInput gathers the commit's change metadata and the current
// content of the affected file.
func (s *Server) analysisInput(inc *incident.Incident) (gemini.AnalyzeInput, error) {
	commit, err := s.store.GetCommit(inc.RepoID, inc.CommitID)
	if err != nil {
		return gemini.AnalyzeInput{}, err
	}
	snippet, err := s.store.FileContent(inc.RepoID, commit.ID, simulator.BugPath)
	if err != nil {
		return gemini.AnalyzeInput{}, err
	}

	diff := repo.Diff{
		ToCommit: repo.ShortID(commit.ID, 7),
		Files:    commit.FilesChanged,
	}
	if commit.ParentCommitID != nil {
		diff.FromCommit = repo.ShortID(*commit.ParentCommitID, 7)
	}
	return gemini.AnalyzeInput{
		Diff:         diff,
		ErrorContext: inc.ErrorContext,
		CodeSnippet:  snippet,
	}, nil
}

func (s *Server) handleAutofix(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.IncidentID == "" {
		writeError(w, r, http.StatusBadRequest, "incidentId required")
		return
	}

	inc, err := s.incidents.Get(req.IncidentID)
	if err != nil {
		reportError(w, r, err, "Incident not found")
		return
	}
	if len(inc.GeminiSuggestions) == 0 {
		writeError(w, r, http.StatusBadRequest, "Must analyze incident first")
		return
	}
	if inc.Status != incident.StatusAnalysed {
		writeError(w, r, http.StatusConflict, fmt.Sprintf("Incident is %s and already has a fix", inc.Status))
		return
	}

	branch := fixBranchPrefix + repo.ShortID(incident.Suffix(inc.IncidentID), 8)
	if _, err := s.store.CreateBranch(inc.RepoID, "main", branch); err != nil {
		reportError(w, r, err, "")
		return
	}
	// Any failure before the PR exists drops the branch again.
	opened := false
	defer func() {
		if !opened {
			s.discardFixBranch(inc.RepoID, branch)
		}
	}()

	s.board.UpdateStatus(inc.IncidentID, agent.AutoFixer, agent.StatusRunning)
	fixed, err := s.sim.ApplyFix(inc.RepoID, branch, inc.GeminiSuggestions)
	if err != nil {
		s.board.UpdateStatus(inc.IncidentID, agent.AutoFixer, agent.StatusError)
		reportError(w, r, err, "")
		return
	}

	body, err := pullrequest.FixDescription(fixSummary, inc.GeminiSuggestions[0], simulator.BugPath)
	if err != nil {
		s.board.UpdateStatus(inc.IncidentID, agent.AutoFixer, agent.StatusError)
		reportError(w, r, err, "")
		return
	}
	pr, err := s.prs.Create(pullrequest.CreateParams{
		RepoID:       inc.RepoID,
		IncidentID:   inc.IncidentID,
		SourceBranch: branch,
		TargetBranch: "main",
		Title:        pullrequest.FixTitle(branch),
		Description:  body,
		FilesChanged: fixed.FilesChanged,
		Commits:      []string{fixed.ID},
	})
	if err != nil {
		s.board.UpdateStatus(inc.IncidentID, agent.AutoFixer, agent.StatusError)
		reportError(w, r, err, "")
		return
	}
	opened = true

	updated, err := s.incidents.MarkFixReady(inc.IncidentID, pr.PRID)
	if err != nil {
		s.board.UpdateStatus(inc.IncidentID, agent.AutoFixer, agent.StatusError)
		reportError(w, r, err, "Incident not found")
		return
	}

	s.board.UpdateStatus(inc.IncidentID, agent.AutoFixer, agent.StatusDone)
	s.board.UpdateStatus(inc.IncidentID, agent.Notification, agent.StatusDone)
	s.board.UpdateStatus(inc.IncidentID, agent.Memory, agent.StatusDone)
	s.board.RecordMemory(inc.IncidentID, s.incidents.Count())
	s.metrics.pullRequests.Inc()
	log.Info().
		Str("incident", inc.IncidentID).
		Str("pr", pr.PRID).
		Str("branch", branch).
		Msg("fix pull request opened")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"pullRequest": pr,
		"incident":    updated,
	})
}

// discardFixBranch removes a fix branch left by a failed autofix attempt.
func (s *Server) discardFixBranch(repoID, branch string) {
	if err := s.store.DeleteBranch(repoID, branch); err != nil {
		log.Warn().Err(err).Str("branch", branch).Msg("failed to discard fix branch")
		return
	}
	log.Debug().Str("branch", branch).Msg("discarded fix branch")
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RepoID == "" || req.PRID == "" {
		writeError(w, r, http.StatusBadRequest, "repoId and prId required")
		return
	}

	pr, err := s.prs.Merge(req.RepoID, req.PRID)
	if err != nil {
		reportError(w, r, err, "Pull request not found")
		return
	}
	s.metrics.merges.Inc()

	resp := map[string]interface{}{
		"success":     true,
		"pullRequest": pr,
	}
	if pr.IncidentID != "" {
		inc, err := s.incidents.MarkResolved(pr.IncidentID)
		if err != nil {
			log.Warn().Err(err).Str("pr", pr.PRID).Msg("merged pull request did not resolve its incident")
		} else {
			resp["incident"] = inc
		}
	}
	log.Info().Str("pr", pr.PRID).Str("target", pr.TargetBranch).Msg("pull request merged")
	writeJSON(w, http.StatusOK, resp)
}
