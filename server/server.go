// Package server exposes the workflow engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/santosrai/bioai/engine"
	"github.com/santosrai/bioai/logging"
)

// Options configures the HTTP server.
type Options struct {
	Logger logging.Logger

	// WorkflowTimeout bounds each execute request.
	WorkflowTimeout time.Duration
	// RequestTimeout bounds all other handlers.
	RequestTimeout time.Duration
}

// Server routes workflow requests to the engine.
type Server struct {
	engine *engine.Engine
	opts   Options
	router chi.Router
}

// New creates the HTTP server around an engine.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		WorkflowTimeout: 120 * time.Second,
		RequestTimeout:  10 * time.Second,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{engine: e, opts: opts}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/workflow", func(r chi.Router) {
		r.Post("/execute", s.handleExecute)
		r.Get("/status/{workflowID}", s.handleStatus)
		r.Post("/stop/{workflowID}", s.handleStop)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// executeRequest is the execute endpoint's body. Message is shorthand for
// parameters["message"].
type executeRequest struct {
	WorkflowID   string         `json:"workflow_id,omitempty"`
	WorkflowType string         `json:"workflow_type,omitempty"`
	Message      string         `json:"message,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	if req.Message != "" {
		req.Parameters["message"] = req.Message
	}
	if _, ok := req.Parameters["message"]; !ok {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.WorkflowType == "" {
		req.WorkflowType = "agent_execution"
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.WorkflowTimeout)
	defer cancel()

	result, err := s.engine.Execute(ctx, req.WorkflowID, req.WorkflowType, req.Parameters)
	if err != nil {
		s.opts.Logger.Error("workflow execution rejected", "error", err)
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	status, err := s.engine.Status(workflowID)
	if err != nil {
		if errors.Is(err, engine.ErrWorkflowNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")

	if err := s.engine.Stop(r.Context(), workflowID); err != nil {
		if errors.Is(err, engine.ErrWorkflowNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": workflowID,
		"status":      "stopping",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"active_workflows": len(s.engine.ActiveWorkflows()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, errorResponse{Error: msg})
}
