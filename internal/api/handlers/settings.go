package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"linkguard/internal/domain/models"
	"linkguard/internal/domain/services"
	"linkguard/pkg/logger"
)

// SettingsHandler reads and updates the periodic scan settings
type SettingsHandler struct {
	sweeper *services.PeriodicSweeper
	logger  *logger.Logger
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(sweeper *services.PeriodicSweeper, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		sweeper: sweeper,
		logger:  log.WithComponent("settings-handler"),
	}
}

// Get handles GET /api/v1/settings/scan
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.sweeper.Settings(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load scan settings")
		respondError(w, http.StatusInternalServerError, "failed to load scan settings")
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// Update handles PUT /api/v1/settings/scan
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var settings models.ScanSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.sweeper.UpdateSettings(r.Context(), settings)
	switch {
	case errors.Is(err, services.ErrInvalidSettings):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to save scan settings")
		respondError(w, http.StatusInternalServerError, "failed to save scan settings")
		return
	}

	respondJSON(w, http.StatusOK, settings)
}
