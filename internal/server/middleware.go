package server

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the per-request id.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

// RequestIDFromContext returns the id assigned by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestID tags each request with an id, reusing a client-supplied one.
type RequestID struct{}

// NewRequestID returns a RequestID negroni.Handler.
func NewRequestID() *RequestID {
	return &RequestID{}
}

// ServeHTTP implements negroni.Handler
func (RequestID) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > 128 {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
}

// Logger is a HTTP request logger for use as negroni middleware.
type Logger struct{}

// NewLogger returns a Logger negroni.Handler that logs through zerolog.
func NewLogger() *Logger {
	return &Logger{}
}

// ServeHTTP implements negroni.Handler
func (Logger) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)

	ev := log.Info()
	if rw, ok := w.(negroni.ResponseWriter); ok {
		if rw.Status() >= 500 {
			ev = log.Error()
		}
		ev = ev.Int("status", rw.Status()).Int("size", rw.Size())
	}
	ev.Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", RequestIDFromContext(r.Context())).
		Dur("took", time.Since(start)).
		Msg("http request")
}

// Recovery is a panic recovery middleware handler for negroni.
type Recovery struct {
	StackAll  bool
	StackSize int
}

// NewRecovery returns a new Recovery negroni.Handler
func NewRecovery() *Recovery {
	return &Recovery{
		StackAll:  false,
		StackSize: 1024 * 8,
	}
}

// ServeHTTP implements negroni.Handler
func (rec *Recovery) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	defer func() {
		if err := recover(); err != nil {
			stack := make([]byte, rec.StackSize)
			stack = stack[:runtime.Stack(stack, rec.StackAll)]
			log.Error().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("panic", fmt.Sprint(err)).
				Bytes("stack", stack).
				Msg("recovered from panic")

			if rw, ok := w.(negroni.ResponseWriter); ok && rw.Written() {
				return
			}
			writeError(w, r, http.StatusInternalServerError, "Internal server error")
		}
	}()

	next(w, r)
}
