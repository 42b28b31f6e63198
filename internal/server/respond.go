package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/shhac/devcopilot/internal/gemini"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/pullrequest"
	"github.com/shhac/devcopilot/internal/repo"
)

// errorBody is the uniform error response.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= 500 {
		log.Error().
			Str("path", r.URL.Path).
			Str("request_id", RequestIDFromContext(r.Context())).
			Int("status", status).
			Msg(msg)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps package sentinel errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repo.ErrNotFound), errors.Is(err, incident.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repo.ErrBranchExists),
		errors.Is(err, incident.ErrInvalidTransition),
		errors.Is(err, pullrequest.ErrAlreadyMerged):
		return http.StatusConflict
	case errors.Is(err, gemini.ErrMissingAPIKey):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// reportError writes err with its mapped status. notFound, when set,
// replaces the message of 404 responses.
func reportError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusNotFound && notFound != "" {
		msg = notFound
	}
	writeError(w, r, status, msg)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
