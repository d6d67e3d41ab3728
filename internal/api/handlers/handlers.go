package handlers

import (
	"encoding/json"
	"net/http"

	"linkguard/internal/domain/services"
	"linkguard/internal/infrastructure/database/repository"
	"linkguard/internal/streaming"
	"linkguard/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health   *HealthHandler
	Messages *MessagesHandler
	Scans    *ScansHandler
	Flagged  *FlaggedHandler
	Settings *SettingsHandler
	Alerts   *AlertsHandler
}

// Dependencies holds dependencies for handlers
type Dependencies struct {
	Version string
	Checks  map[string]HealthCheck
	Queue   *services.IngestQueue
	Jobs    *services.BulkScanJobs
	Sweeper *services.PeriodicSweeper
	Repos   *repository.Repositories
	Hub     *streaming.WebSocketHub
	Logger  *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Version, deps.Checks, deps.Logger),
		Messages: NewMessagesHandler(deps.Queue, deps.Logger),
		Scans:    NewScansHandler(deps.Jobs, deps.Sweeper, deps.Logger),
		Flagged:  NewFlaggedHandler(deps.Repos.FlaggedLinks, deps.Logger),
		Settings: NewSettingsHandler(deps.Sweeper, deps.Logger),
		Alerts:   NewAlertsHandler(deps.Hub, deps.Logger),
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
