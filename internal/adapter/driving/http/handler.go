// Package httphandler serves the read API over the stored DORA facts.
package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/dorametrics/internal/application"
	"github.com/ericfisherdev/dorametrics/internal/domain/port/driven"
)

// RunTrigger starts a pipeline run and waits for its report.
type RunTrigger interface {
	TriggerRun(ctx context.Context) (application.RunReport, error)
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	successful driven.SuccessfulDeployStore
	corrective driven.CorrectiveDeployStore
	incidents  driven.IncidentStore
	runner     RunTrigger // nil disables POST /api/v1/runs.
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	successful driven.SuccessfulDeployStore,
	corrective driven.CorrectiveDeployStore,
	incidents driven.IncidentStore,
	runner RunTrigger,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		successful: successful,
		corrective: corrective,
		incidents:  incidents,
		runner:     runner,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/deploys", h.ListDeploys)
	mux.HandleFunc("GET /api/v1/corrective-deploys", h.ListCorrectiveDeploys)
	mux.HandleFunc("GET /api/v1/incidents", h.ListIncidents)
	mux.HandleFunc("POST /api/v1/runs", h.TriggerRun)
	mux.HandleFunc("GET "+HealthPath, h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListDeploys returns successful deploys, optionally filtered by ?repo=.
func (h *Handler) ListDeploys(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")

	deploys, err := h.successful.List(r.Context(), repo)
	if err != nil {
		h.logger.Error("failed to list deploys", "repo", repo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]DeployResponse, 0, len(deploys))
	for _, d := range deploys {
		resp = append(resp, toDeployResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListCorrectiveDeploys returns corrective deploys, optionally filtered by ?repo=.
func (h *Handler) ListCorrectiveDeploys(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")

	deploys, err := h.corrective.List(r.Context(), repo)
	if err != nil {
		h.logger.Error("failed to list corrective deploys", "repo", repo, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]CorrectiveDeployResponse, 0, len(deploys))
	for _, d := range deploys {
		resp = append(resp, toCorrectiveDeployResponse(d))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListIncidents returns all recovered incidents.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.incidents.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list incidents", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]IncidentResponse, 0, len(incidents))
	for _, inc := range incidents {
		resp = append(resp, toIncidentResponse(inc))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerRun starts an immediate pipeline run and returns its report.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "runs are not enabled")
		return
	}

	report, err := h.runner.TriggerRun(r.Context())
	if err != nil {
		h.logger.Error("triggered run failed", "error", err)
		if errors.Is(err, application.ErrPreflight) {
			writeError(w, http.StatusServiceUnavailable, "preflight check failed")
			return
		}
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	writeJSON(w, http.StatusOK, toRunResponse(report))
}

// HealthPath is the route served by Health.
const HealthPath = "/api/v1/health"

// HealthStatusOK is the status Health reports while the process is serving.
const HealthStatusOK = "ok"

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: HealthStatusOK,
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
