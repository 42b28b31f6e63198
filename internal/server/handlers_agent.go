package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/shhac/devcopilot/internal/agent"
)

type workflowRequest struct {
	Workflow string `json:"workflow"`
}

func (s *Server) handleAgentState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Summary(mux.Vars(r)["incidentId"]))
}

// handleWorkflow starts a timed workflow in the background and returns at once.
func (s *Server) handleWorkflow(w http.ResponseWriter, r *http.Request) {
	incidentID := mux.Vars(r)["incidentId"]
	var req workflowRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if agent.WorkflowSteps(req.Workflow) == nil {
		writeError(w, r, http.StatusBadRequest, "Unknown workflow: "+req.Workflow)
		return
	}

	s.workflows.Add(1)
	go func() {
		defer s.workflows.Done()
		if _, err := s.board.ExecuteWorkflow(s.baseCtx, incidentID, req.Workflow); err != nil && !errors.Is(err, s.baseCtx.Err()) {
			log.Warn().Err(err).Str("incident", incidentID).Str("workflow", req.Workflow).Msg("workflow failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted":   true,
		"incidentId": incidentID,
		"workflow":   req.Workflow,
	})
}
