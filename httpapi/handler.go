// Package httpapi exposes the scheduler over JSON HTTP. It is a thin
// transport shim: all semantics live in pkg/hub.
//
// Caller identity is taken from the X-User-ID header; authentication proper
// is the embedding service's concern.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nqba/qih/pkg/core"
	"github.com/nqba/qih/pkg/hub"
)

const userHeader = "X-User-ID"

// Server routes scheduler operations over HTTP.
type Server struct {
	router chi.Router
	hub    *hub.Hub
}

// NewServer creates the HTTP surface for the given hub.
func NewServer(h *hub.Hub) *Server {
	s := &Server{
		router: chi.NewRouter(),
		hub:    h,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/jobs", s.handleSubmit)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Delete("/jobs/{id}", s.handleCancel)
	r.Post("/jobs/{id}/retry", s.handleRetry)
	r.Get("/usage", s.handleUserUsage)
	r.Get("/usage/global", s.handleGlobalUsage)
	r.Get("/healthz", s.handleHealth)
}

type submitRequest struct {
	Operation        string            `json:"operation"`
	Inputs           map[string]any    `json:"inputs"`
	SolverPreference string            `json:"solver_preference,omitempty"`
	TimeoutSeconds   int               `json:"timeout_seconds"`
	Priority         string            `json:"priority,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IdempotencyKey   string            `json:"idempotency_key,omitempty"`
	MaxRetries       *int              `json:"max_retries,omitempty"`
}

type jobResponse struct {
	JobID       string          `json:"job_id"`
	UserID      string          `json:"user_id"`
	Operation   string          `json:"operation"`
	Status      core.JobStatus  `json:"status"`
	Priority    string          `json:"priority"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Result      *core.Result    `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Metrics     core.JobMetrics `json:"metrics"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
}

func toJobResponse(j *core.QuantumJob) jobResponse {
	return jobResponse{
		JobID:       j.ID,
		UserID:      j.UserID,
		Operation:   j.Request.Operation,
		Status:      j.Status,
		Priority:    j.Priority.String(),
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		Result:      j.Result,
		Error:       j.Error,
		Metrics:     j.Metrics,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	priority, err := core.ParsePriority(req.Priority)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := []hub.SubmitOption{}
	if req.IdempotencyKey != "" {
		opts = append(opts, hub.IdempotencyKey(req.IdempotencyKey))
	}
	if req.MaxRetries != nil {
		opts = append(opts, hub.Retries(*req.MaxRetries))
	}

	jobID, err := s.hub.Submit(r.Context(), userID, core.OptimizationRequest{
		Operation:        req.Operation,
		Inputs:           req.Inputs,
		SolverPreference: req.SolverPreference,
		TimeoutSeconds:   req.TimeoutSeconds,
		Priority:         priority,
		Metadata:         req.Metadata,
	}, opts...)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}

	job, err := s.hub.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil || job.UserID != userID {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}

	var statuses []core.JobStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, core.JobStatus(raw))
	}

	jobs, err := s.hub.UserJobs(r.Context(), userID, statuses...)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}

	err := s.hub.Cancel(r.Context(), chi.URLParam(r, "id"), userID)
	s.writeControlResult(w, err)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}

	err := s.hub.Retry(r.Context(), chi.URLParam(r, "id"), userID)
	s.writeControlResult(w, err)
}

func (s *Server) writeControlResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, core.ErrNotFound):
		httpError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, core.ErrPermissionDenied):
		httpError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrNotCancellable), errors.Is(err, core.ErrNotRetryable):
		httpError(w, http.StatusConflict, err.Error())
	default:
		httpError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleUserUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.hub.Usage().UserUsage(userID))
}

func (s *Server) handleGlobalUsage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Usage().Global())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.hub.QueueDepth(),
		"breaker":     s.hub.Breaker().State().String(),
	})
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		httpError(w, http.StatusUnauthorized, userHeader+" header required")
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
