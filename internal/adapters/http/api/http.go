// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/devinfo/internal/adapters/client"
	repository "github.com/okian/devinfo/internal/adapters/repository"
	service "github.com/okian/devinfo/internal/app"
	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/preference"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Collect runs a session to completion or timeout.
	Collect(ctx context.Context, src service.Source) (service.Result, error)
	// Stream runs a session until ctx ends, calling fn per update.
	Stream(ctx context.Context, src service.Source, fn func(sessionID string, u aggregator.Update)) error

	// Preferences loads a client's preference session.
	Preferences(ctx context.Context, clientID string) (*preference.Session, error)
	// SetDarkMode stores a client's dark-mode preference.
	SetDarkMode(ctx context.Context, clientID string, on bool) error
}

// apiPrefix is the versioned path of the business routes.
const apiPrefix = "/api/v1"

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	factsHandler       *FactsHandler
	preferencesHandler *PreferencesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		factsHandler:       NewFactsHandler(deps),
		preferencesHandler: NewPreferencesHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	r.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)

	// Business routes sit on the root router so a wrong method answers 405.
	r.HandleFunc(apiPrefix+"/facts", MetricsMiddleware(s.factsHandler.HandleCollect, "facts")).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/facts/stream", MetricsMiddleware(s.factsHandler.HandleStream, "facts_stream")).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/preferences/{client}/dark-mode", MetricsMiddleware(s.preferencesHandler.HandleGet, "preferences")).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/preferences/{client}/dark-mode", MetricsMiddleware(s.preferencesHandler.HandlePut, "preferences")).Methods(http.MethodPut)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure maps err to a status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, client.ErrInvalidReport),
		errors.Is(err, repository.ErrInvalidClientID):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, repository.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
