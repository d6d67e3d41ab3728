package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"linkguard/internal/domain/services"
	"linkguard/pkg/logger"
)

// ScansHandler exposes bulk scans and the periodic sweep
type ScansHandler struct {
	jobs    *services.BulkScanJobs
	sweeper *services.PeriodicSweeper
	logger  *logger.Logger
}

// NewScansHandler creates a new ScansHandler
func NewScansHandler(jobs *services.BulkScanJobs, sweeper *services.PeriodicSweeper, log *logger.Logger) *ScansHandler {
	return &ScansHandler{
		jobs:    jobs,
		sweeper: sweeper,
		logger:  log.WithComponent("scans-handler"),
	}
}

// BulkScanRequest is the request body for a bulk scan. FromMillis 0 scans everything.
type BulkScanRequest struct {
	FromMillis int64 `json:"from_millis"`
}

// StartBulk handles POST /api/v1/scans/bulk
func (h *ScansHandler) StartBulk(w http.ResponseWriter, r *http.Request) {
	var req BulkScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FromMillis < 0 {
		respondError(w, http.StatusBadRequest, "from_millis must not be negative")
		return
	}

	job := h.jobs.Start(r.Context(), req.FromMillis)
	w.Header().Set("Location", "/api/v1/scans/bulk/"+job.ID.String())
	respondJSON(w, http.StatusAccepted, job)
}

// ListBulk handles GET /api/v1/scans/bulk
func (h *ScansHandler) ListBulk(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	respondJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// GetBulk handles GET /api/v1/scans/bulk/{id}
func (h *ScansHandler) GetBulk(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.jobs.Get(id)
	if errors.Is(err, services.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	respondJSON(w, http.StatusOK, job)
}

// CancelBulk handles DELETE /api/v1/scans/bulk/{id}
func (h *ScansHandler) CancelBulk(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	if err := h.jobs.Cancel(id); errors.Is(err, services.ErrJobNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sweep handles POST /api/v1/scans/sweep - runs one periodic sweep now
func (h *ScansHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.sweeper.Sweep(r.Context())
	switch {
	case errors.Is(err, services.ErrSweepInProgress):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("sweep failed")
		respondError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Watermark handles GET /api/v1/scans/watermark
func (h *ScansHandler) Watermark(w http.ResponseWriter, r *http.Request) {
	watermark, err := h.sweeper.Watermark(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to read watermark")
		respondError(w, http.StatusInternalServerError, "failed to read watermark")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"watermark": watermark})
}
