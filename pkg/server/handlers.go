package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/askdf/askdf/pkg/domain"
	"github.com/askdf/askdf/pkg/model"
)

// --- Turns ---

func (s *Server) handleRunTurn(w http.ResponseWriter, r *http.Request) {
	var req domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.UserMessage == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("userMessage is required"))
		return
	}

	resp, err := s.runner.Run(r.Context(), &req)
	if err != nil {
		s.errorResponse(w, statusForTurnError(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// statusForTurnError maps backend sentinels to HTTP statuses. Anything the
// pipeline could not classify is a plain 500.
func statusForTurnError(err error) int {
	switch {
	case errors.Is(err, model.ErrModelNotReady):
		return http.StatusConflict
	case errors.Is(err, model.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrUnauthorized), errors.Is(err, model.ErrUnavailable),
		errors.Is(err, model.ErrEmptyResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleListAttempts(w http.ResponseWriter, r *http.Request) {
	if s.attempts == nil {
		s.errorResponse(w, http.StatusNotFound, errors.New("attempt auditing is not enabled"))
		return
	}
	id := r.PathValue("id")
	attempts, err := s.attempts.ListAttempts(r.Context(), id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, attempts)
}

// --- Models ---

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	if s.models == nil {
		s.jsonResponse(w, http.StatusOK, []model.ModelInfo{})
		return
	}
	models, err := s.models.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, models)
}

func (s *Server) handleEnsureLoaded(w http.ResponseWriter, r *http.Request) {
	if s.lifecycle == nil {
		s.errorResponse(w, http.StatusNotFound, errors.New("no local model is configured"))
		return
	}
	err := s.lifecycle.EnsureLoaded(r.Context(), func(percent float64) {
		s.publishProgress(percent)
	})
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// --- Sandbox ---

func (s *Server) handleSandboxStatus(w http.ResponseWriter, r *http.Request) {
	status := "empty"
	if s.sandbox != nil {
		status = s.sandbox.Status()
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": status})
}
