// Package server exposes the copilot over a JSON REST API mounted under /api.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/codegangsta/negroni"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/shhac/devcopilot/internal/agent"
	"github.com/shhac/devcopilot/internal/gemini"
	"github.com/shhac/devcopilot/internal/incident"
	"github.com/shhac/devcopilot/internal/pullrequest"
	"github.com/shhac/devcopilot/internal/repo"
	"github.com/shhac/devcopilot/internal/scan"
	"github.com/shhac/devcopilot/internal/simulator"
)

// AnalyzerFactory builds an analyzer for an API key supplied at runtime.
type AnalyzerFactory func(apiKey string) (gemini.Analyzer, error)

// Options wires a Server. Store is required; everything else has a default.
type Options struct {
	Store *repo.Store
	// Analyzer may be nil, in which case analysis is refused until a key is
	// supplied through /config/connect.
	Analyzer        gemini.Analyzer
	AnalyzerFactory AnalyzerFactory
	Scanner         *scan.Scanner
	Metrics         *Metrics
	// StepScale multiplies background workflow step durations.
	StepScale      float64
	AllowedOrigins []string
}

// Server holds the services behind the API.
type Server struct {
	store     *repo.Store
	sim       *simulator.Simulator
	incidents *incident.Service
	prs       *pullrequest.Service
	board     *agent.Board
	scanner   *scan.Scanner
	metrics   *Metrics

	analyzerMu  sync.RWMutex
	analyzer    gemini.Analyzer
	newAnalyzer AnalyzerFactory

	router  *mux.Router
	handler http.Handler

	// Background workflows stop when baseCtx is cancelled.
	baseCtx   context.Context
	cancel    context.CancelFunc
	workflows sync.WaitGroup
}

// New creates a Server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: store is required")
	}
	if opts.Scanner == nil {
		sc, err := scan.NewScanner(context.Background())
		if err != nil {
			return nil, err
		}
		opts.Scanner = sc
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.AnalyzerFactory == nil {
		opts.AnalyzerFactory = DefaultAnalyzerFactory
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		store:       opts.Store,
		sim:         simulator.New(opts.Store),
		incidents:   incident.NewService(),
		prs:         pullrequest.NewService(opts.Store),
		board:       agent.NewBoard(opts.StepScale),
		scanner:     opts.Scanner,
		metrics:     opts.Metrics,
		analyzer:    opts.Analyzer,
		newAnalyzer: opts.AnalyzerFactory,
		router:      mux.NewRouter().StrictSlash(true),
		baseCtx:     ctx,
		cancel:      cancel,
	}
	s.routes()

	cors := handlers.CORS(
		handlers.AllowedHeaders([]string{"content-type", "x-request-id"}),
		handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "OPTIONS"}),
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.ExposedHeaders([]string{RequestIDHeader}),
	)
	s.handler = negroni.New(
		NewRecovery(),
		NewRequestID(),
		NewLogger(),
		negroni.Wrap(cors(s.router)),
	)
	return s, nil
}

// DefaultAnalyzerFactory returns the demo analyzer for demo or empty keys
// and a Gemini client otherwise.
func DefaultAnalyzerFactory(apiKey string) (gemini.Analyzer, error) {
	if gemini.IsDemoKey(apiKey) {
		return gemini.DemoAnalyzer{}, nil
	}
	return gemini.NewClient(apiKey, gemini.ClientOptions{})
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.metrics.Middleware)

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	api.HandleFunc("/config/connect", s.handleConnect).Methods("POST")

	api.HandleFunc("/repo/list", s.handleListRepos).Methods("GET")
	api.HandleFunc("/repo/branches", s.handleListBranches).Methods("GET")
	api.HandleFunc("/repo/commits", s.handleListCommits).Methods("GET")
	api.HandleFunc("/repo/state", s.handleState).Methods("GET")
	api.HandleFunc("/repo/diff", s.handleDiff).Methods("GET")
	api.HandleFunc("/repo/file", s.handleFile).Methods("GET")
	api.HandleFunc("/repo/patch", s.handlePatch).Methods("GET")

	api.HandleFunc("/repo/inject-bug", s.handleInjectBug).Methods("POST")
	api.HandleFunc("/repo/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/repo/analyse", s.handleAnalyse).Methods("POST")
	api.HandleFunc("/repo/autofix", s.handleAutofix).Methods("POST")
	api.HandleFunc("/repo/merge", s.handleMerge).Methods("POST")

	api.HandleFunc("/repo/incidents", s.handleListIncidents).Methods("GET")
	api.HandleFunc("/repo/incident/{incidentId}", s.handleGetIncident).Methods("GET")
	api.HandleFunc("/repo/pull-requests", s.handleListPullRequests).Methods("GET")
	api.HandleFunc("/repo/pull-request/{prId}", s.handleGetPullRequest).Methods("GET")

	api.HandleFunc("/agent-state", s.handleAgentState).Methods("GET")
	api.HandleFunc("/agent-state/{incidentId}", s.handleAgentState).Methods("GET")
	api.HandleFunc("/agent-state/{incidentId}/workflow", s.handleWorkflow).Methods("POST")

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "Not found")
	})
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Close cancels background workflows and waits for them to stop.
func (s *Server) Close() {
	s.cancel()
	s.workflows.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("api listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info().Msg("shutting down api")
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) currentAnalyzer() gemini.Analyzer {
	s.analyzerMu.RLock()
	defer s.analyzerMu.RUnlock()
	return s.analyzer
}

func (s *Server) setAnalyzer(a gemini.Analyzer) {
	s.analyzerMu.Lock()
	s.analyzer = a
	s.analyzerMu.Unlock()
}
