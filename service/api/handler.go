// Package api exposes run operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/model"
	"github.com/viant/chemflow/runtime/execution"
	"github.com/viant/chemflow/service/dao"
)

// Runtime is the run surface the API serves
type Runtime interface {
	LoadWorkflow(ctx context.Context, location string) (*model.Workflow, error)
	DecodeYAMLWorkflow(data []byte) (*model.Workflow, error)
	Submit(ctx context.Context, wf *model.Workflow, init map[string]interface{}) (*execution.Run, error)
	Status(ctx context.Context, runID string) (*execution.Snapshot, error)
	List(ctx context.Context, parameters ...*dao.Parameter) ([]*execution.Snapshot, error)
	Cancel(ctx context.Context, runID string) (*execution.Snapshot, error)
	Resume(ctx context.Context, runID string) (*execution.Snapshot, error)
	RetryStage(ctx context.Context, runID, stage string) (*execution.Snapshot, error)
	Delete(ctx context.Context, runID string) error
}

// SubmitRequest submits a workflow by location or inline YAML definition
type SubmitRequest struct {
	Workflow   string                 `json:"workflow,omitempty"`
	Definition string                 `json:"definition,omitempty"`
	Init       map[string]interface{} `json:"init,omitempty"`
}

// Handler serves the operator API
type Handler struct {
	runtime   Runtime
	metrics   http.Handler
	logger    *slog.Logger
	startTime time.Time
}

// Router returns the chi router with all routes registered
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(Logging(h.logger))
	r.Use(Tracing)

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	r.Route("/v1/runs", func(r chi.Router) {
		r.Post("/", h.Submit)
		r.Get("/", h.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Status)
			r.Delete("/", h.Delete)
			r.Post("/cancel", h.Cancel)
			r.Post("/resume", h.Resume)
			r.Post("/stages/{stage}/retry", h.RetryStage)
		})
	})
	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	Success(w, map[string]string{"status": "ok", "uptime": time.Since(h.startTime).Round(time.Second).String()})
}

// Submit creates a run
// POST /v1/runs
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body: "+err.Error())
		return
	}
	var wf *model.Workflow
	var err error
	switch {
	case req.Definition != "":
		wf, err = h.runtime.DecodeYAMLWorkflow([]byte(req.Definition))
	case req.Workflow != "":
		wf, err = h.runtime.LoadWorkflow(r.Context(), req.Workflow)
	default:
		BadRequest(w, "either workflow or definition is required")
		return
	}
	if HandleError(w, logging.FromContext(r.Context()), err) {
		return
	}
	aRun, err := h.runtime.Submit(r.Context(), wf, req.Init)
	if HandleError(w, logging.FromContext(r.Context()), err) {
		return
	}
	Created(w, aRun.Snapshot())
}

// List returns runs, optionally filtered by state and workflow
// GET /v1/runs?state=...&workflow=...
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var parameters []*dao.Parameter
	if state := r.URL.Query().Get("state"); state != "" {
		parameters = append(parameters, dao.NewParameter("State", state))
	}
	if workflow := r.URL.Query().Get("workflow"); workflow != "" {
		parameters = append(parameters, dao.NewParameter("Workflow", workflow))
	}
	snapshots, err := h.runtime.List(r.Context(), parameters...)
	if HandleError(w, logging.FromContext(r.Context()), err) {
		return
	}
	List(w, snapshots, len(snapshots))
}

// Status returns a run snapshot
// GET /v1/runs/{id}
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, h.runtime.Status)
}

// Cancel cancels a run
// POST /v1/runs/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, h.runtime.Cancel)
}

// Resume reconciles a run with its transports
// POST /v1/runs/{id}/resume
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	h.snapshot(w, r, h.runtime.Resume)
}

// RetryStage re-enters a failed stage
// POST /v1/runs/{id}/stages/{stage}/retry
func (h *Handler) RetryStage(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	h.snapshot(w, r, func(ctx context.Context, runID string) (*execution.Snapshot, error) {
		return h.runtime.RetryStage(ctx, runID, stage)
	})
}

// Delete removes a run
// DELETE /v1/runs/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, logging.FromContext(r.Context()), h.runtime.Delete(r.Context(), chi.URLParam(r, "id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, runID string) (*execution.Snapshot, error)) {
	snapshot, err := fn(r.Context(), chi.URLParam(r, "id"))
	if HandleError(w, logging.FromContext(r.Context()), err) {
		return
	}
	Success(w, snapshot)
}

// NewHandler creates an API handler; metrics may be nil
func NewHandler(runtime Runtime, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{runtime: runtime, metrics: metrics, logger: logger, startTime: time.Now()}
}
