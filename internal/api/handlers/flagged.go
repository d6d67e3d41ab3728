package handlers

import (
	"net/http"

	"linkguard/internal/domain/models"
	"linkguard/internal/domain/services"
	"linkguard/pkg/logger"
)

// FlaggedHandler serves the flagged link history
type FlaggedHandler struct {
	store  services.FlaggedLinkStore
	logger *logger.Logger
}

// NewFlaggedHandler creates a new FlaggedHandler
func NewFlaggedHandler(store services.FlaggedLinkStore, log *logger.Logger) *FlaggedHandler {
	return &FlaggedHandler{
		store:  store,
		logger: log.WithComponent("flagged-handler"),
	}
}

// List handles GET /api/v1/flagged?level=HIGH|MEDIUM|LOW|ALL
func (h *FlaggedHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := models.ParseLevelFilter(r.URL.Query().Get("level"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	links, err := h.store.ListAll(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Str("level", filter.String()).Msg("failed to list flagged links")
		respondError(w, http.StatusInternalServerError, "failed to list flagged links")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"links": links,
		"count": len(links),
		"level": filter.String(),
	})
}

// Count handles GET /api/v1/flagged/count
func (h *FlaggedHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to count flagged links")
		respondError(w, http.StatusInternalServerError, "failed to count flagged links")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// Clear handles DELETE /api/v1/flagged
func (h *FlaggedHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to clear flagged links")
		respondError(w, http.StatusInternalServerError, "failed to clear flagged links")
		return
	}

	h.logger.Info().Msg("flagged link history cleared")
	w.WriteHeader(http.StatusNoContent)
}
