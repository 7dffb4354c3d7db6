// Package server exposes the analysis pipeline over a REST API plus a
// websocket progress feed.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/askdf/askdf/pkg/controller"
	"github.com/askdf/askdf/pkg/domain"
	"github.com/askdf/askdf/pkg/model"
	"github.com/askdf/askdf/pkg/store"
)

// TurnRunner runs one user turn end to end. *controller.Controller
// satisfies it.
type TurnRunner interface {
	Run(ctx context.Context, req *domain.TurnRequest) (*domain.TurnResponse, error)
}

var _ TurnRunner = (*controller.Controller)(nil)

// SandboxStatus reports whether a dataset is currently loaded.
type SandboxStatus interface {
	Status() string
}

// Server serves the REST API for the analysis pipeline.
type Server struct {
	runner    TurnRunner
	attempts  store.AttemptStore
	models    model.Lister
	lifecycle model.Lifecycle
	sandbox   SandboxStatus
	events    *controller.Events
	srv       *http.Server
}

// Config wires a Server. Runner is required; the rest degrade gracefully
// when nil.
type Config struct {
	Runner    TurnRunner
	Attempts  store.AttemptStore
	Models    model.Lister
	Lifecycle model.Lifecycle
	Sandbox   SandboxStatus
	Events    *controller.Events
}

// New creates a new Server.
func New(cfg Config) *Server {
	return &Server{
		runner:    cfg.Runner,
		attempts:  cfg.Attempts,
		models:    cfg.Models,
		lifecycle: cfg.Lifecycle,
		sandbox:   cfg.Sandbox,
		events:    cfg.Events,
	}
}

// Start starts the HTTP server.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()

	// Turns
	mux.HandleFunc("POST /api/turns", s.handleRunTurn)
	mux.HandleFunc("GET /api/turns/{id}/attempts", s.handleListAttempts)

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("POST /api/models/ensure-loaded", s.handleEnsureLoaded)

	// Sandbox
	mux.HandleFunc("GET /api/sandbox/status", s.handleSandboxStatus)

	// WebSocket progress feed
	mux.HandleFunc("/api/events", s.handleEventsWebSocket)

	s.srv = &http.Server{
		Addr:    addr,
		Handler: s.corsMiddleware(mux),
	}

	slog.Info("Starting web server", "addr", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, err error) {
	slog.Error("API Error", "error", err)
	s.jsonResponse(w, status, map[string]string{"error": err.Error()})
}
