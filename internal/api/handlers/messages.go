package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"linkguard/internal/domain/services"
	"linkguard/internal/streaming"
	"linkguard/pkg/logger"
)

// MessagesHandler accepts live message events
type MessagesHandler struct {
	queue  *services.IngestQueue
	logger *logger.Logger
}

// NewMessagesHandler creates a new MessagesHandler
func NewMessagesHandler(queue *services.IngestQueue, log *logger.Logger) *MessagesHandler {
	return &MessagesHandler{
		queue:  queue,
		logger: log.WithComponent("messages-handler"),
	}
}

// Submit handles POST /api/v1/messages - queues one live message for a real-time scan
func (h *MessagesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var event streaming.InboundMessageEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Debug().Err(err).Msg("invalid request body")
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := event.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.queue.TrySubmit(event.RawMessage())
	switch {
	case errors.Is(err, services.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusServiceUnavailable, "ingest queue full")
		return
	case errors.Is(err, services.ErrQueueClosed):
		respondError(w, http.StatusServiceUnavailable, "shutting down")
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to queue message")
		respondError(w, http.StatusInternalServerError, "failed to queue message")
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{
		"queued": true,
	})
}

// QueueStats handles GET /api/v1/messages/queue
func (h *MessagesHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.queue.Stats())
}
