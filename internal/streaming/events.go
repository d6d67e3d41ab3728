package streaming

import (
	"fmt"
	"strings"
	"time"

	"linkguard/internal/domain/models"
	"linkguard/internal/domain/services"
)

// AlertEvent is the wire form of an alert on NATS and WebSocket connections
type AlertEvent struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Timestamp time.Time          `json:"timestamp"`
	ChannelID string             `json:"channel_id"`
	Title     string             `json:"title"`
	Body      string             `json:"body"`
	Priority  string             `json:"priority"`
	Count     int                `json:"count,omitempty"`
	URL       string             `json:"url,omitempty"`
	Sender    string             `json:"sender,omitempty"`
	Level     models.ThreatLevel `json:"level,omitempty"`
}

// NewAlertEvent converts a dispatcher alert into an event
func NewAlertEvent(alert *services.Alert) *AlertEvent {
	return &AlertEvent{
		ID:        alert.ID,
		Kind:      string(alert.Kind),
		Timestamp: alert.CreatedAt,
		ChannelID: alert.ChannelID,
		Title:     alert.Title,
		Body:      alert.Body,
		Priority:  alert.Priority,
		Count:     alert.Count,
		URL:       alert.URL,
		Sender:    alert.Sender,
		Level:     alert.Level,
	}
}

// AlertSubject returns the subject an alert is published on:
// <prefix>.<kind>.<level>, with "summary" standing in for alerts without a level
func AlertSubject(prefix string, event *AlertEvent) string {
	level := "summary"
	if event.Level.Valid() {
		level = strings.ToLower(event.Level.String())
	}
	return fmt.Sprintf("%s.%s.%s", prefix, event.Kind, level)
}

// InboundMessageEvent is a live SMS delivered by the device bridge
type InboundMessageEvent struct {
	Sender           string `json:"sender"`
	Body             string `json:"body"`
	ReceivedAtMillis int64  `json:"received_at_millis"`
}

// Validate rejects events that cannot be ingested
func (e *InboundMessageEvent) Validate() error {
	if e.Sender == "" {
		return fmt.Errorf("sender is required")
	}
	if e.ReceivedAtMillis <= 0 {
		return fmt.Errorf("received_at_millis must be positive, got %d", e.ReceivedAtMillis)
	}
	return nil
}

// RawMessage converts the event to the ingestion input
func (e *InboundMessageEvent) RawMessage() models.RawMessage {
	return models.RawMessage{
		Sender:           e.Sender,
		Body:             e.Body,
		ReceivedAtMillis: e.ReceivedAtMillis,
	}
}

// Subscription represents a WebSocket client's alert preferences
type Subscription struct {
	// Minimum level of per-link alerts (empty = all)
	MinLevel models.ThreatLevel `json:"min_level,omitempty"`

	// Filter by alert kinds (empty = all)
	Kinds []string `json:"kinds,omitempty"`
}

// Matches checks if an event matches the subscription filters
func (s *Subscription) Matches(event *AlertEvent) bool {
	if s.MinLevel.Valid() && event.Level.Valid() && !event.Level.AtLeast(s.MinLevel) {
		return false
	}

	if len(s.Kinds) > 0 {
		found := false
		for _, k := range s.Kinds {
			if k == event.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
