package handlers

import (
	"net/http"

	"linkguard/internal/streaming"
	"linkguard/pkg/logger"
)

// AlertsHandler streams alerts to WebSocket clients
type AlertsHandler struct {
	hub    *streaming.WebSocketHub
	logger *logger.Logger
}

// NewAlertsHandler creates a new AlertsHandler. hub may be nil when streaming is off.
func NewAlertsHandler(hub *streaming.WebSocketHub, log *logger.Logger) *AlertsHandler {
	return &AlertsHandler{
		hub:    hub,
		logger: log.WithComponent("alerts-handler"),
	}
}

// HandleWebSocket handles GET /api/v1/alerts/ws
func (h *AlertsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "alert streaming disabled")
		return
	}
	h.hub.ServeWebSocket(w, r)
}

// Stats handles GET /api/v1/alerts/stats
func (h *AlertsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]int{"connected_clients": clients})
}
