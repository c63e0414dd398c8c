// Package api provides HTTP handlers and the main API server logic for the
// onboarding service.
//
// It exposes RESTful endpoints for starting onboarding flows, submitting and
// navigating wizard steps, finalizing submissions, and reading analytics. The
// API integrates with the flow engine, progress tracker, and store modules.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/qkeluna/lunaxcode-onboarding/internal/flow"
	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
	"github.com/qkeluna/lunaxcode-onboarding/internal/progress"
	"github.com/qkeluna/lunaxcode-onboarding/internal/store"
)

// DefaultAddr is the default listen address for the API server.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the flow engine, progress tracker, and store behind HTTP endpoints.
type Server struct {
	engine  *flow.Engine
	tracker *progress.Tracker
	st      store.Store
	addr    string
}

// NewServer creates an API server over the given modules.
func NewServer(engine *flow.Engine, tracker *progress.Tracker, st store.Store, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: engine, tracker: tracker, st: st, addr: cfg.Addr}
}

// Handler builds the HTTP route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/flows", s.startFlowHandler)
	mux.HandleFunc("/flows/{sessionID}", s.getFlowHandler)
	mux.HandleFunc("/flows/{sessionID}/steps/{step}", s.submitStepHandler)
	mux.HandleFunc("/flows/{sessionID}/navigate", s.navigateHandler)
	mux.HandleFunc("/flows/{sessionID}/abandon", s.abandonHandler)
	mux.HandleFunc("/flows/{sessionID}/submit", s.finalizeHandler)
	mux.HandleFunc("/flows/{sessionID}/analytics", s.analyticsHandler)
	mux.HandleFunc("/submissions", s.listSubmissionsHandler)
	mux.HandleFunc("/submissions/{id}", s.getSubmissionHandler)
	mux.HandleFunc("/health", s.healthHandler)
	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("Onboarding API listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// writeFlowError maps engine errors onto HTTP responses. Recoverable
// navigation/lifecycle conflicts surface as 409 with their message; internal
// consistency faults are logged and reported generically.
func writeFlowError(w http.ResponseWriter, err error) {
	var incomplete *models.IncompleteStepsError
	switch {
	case errors.Is(err, models.ErrFlowNotFound), errors.Is(err, models.ErrSubmissionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	case errors.As(err, &incomplete):
		writeJSONResponse(w, http.StatusConflict, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage(incomplete.Error()).
			WithResult(map[string]interface{}{"missing_steps": incomplete.Missing}).
			Build())
	case errors.Is(err, models.ErrNavigationNotAllowed),
		errors.Is(err, models.ErrFlowCompleted),
		errors.Is(err, models.ErrFlowAbandoned),
		errors.Is(err, models.ErrServiceTypeImmutable),
		errors.Is(err, models.ErrStepMismatch),
		errors.Is(err, models.ErrStepNotSkippable),
		errors.Is(err, models.ErrStepDataNotValidated):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrInvalidServiceType), errors.Is(err, models.ErrInvalidNavigation):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, models.ErrUnknownStep), errors.Is(err, models.ErrSchemaNotFound):
		slog.Error("Server: catalog/registry consistency fault", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	default:
		slog.Error("Server: request failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}
