package streaming

import (
	"context"
	"fmt"

	"linkguard/internal/domain/services"
	"linkguard/pkg/logger"
)

// AlertBroadcaster delivers alert events to locally connected clients
type AlertBroadcaster interface {
	BroadcastEvent(event *AlertEvent)
	ClientCount() int
}

// AlertBus is the services.Alerter that fans alerts out to NATS and to
// connected WebSocket clients. When neither channel can take the alert it
// reports services.ErrAlertingUnavailable.
type AlertBus struct {
	nats   *NATSPublisher
	hub    AlertBroadcaster
	logger *logger.Logger
}

// NewAlertBus creates a new alert bus. Both nats and hub may be nil.
func NewAlertBus(nats *NATSPublisher, hub AlertBroadcaster, log *logger.Logger) *AlertBus {
	return &AlertBus{
		nats:   nats,
		hub:    hub,
		logger: log.WithComponent("alert-bus"),
	}
}

// PostAlert implements services.Alerter
func (b *AlertBus) PostAlert(ctx context.Context, alert *services.Alert) error {
	event := NewAlertEvent(alert)
	delivered := false

	if b.nats != nil && b.nats.IsConnected() {
		if err := b.nats.PublishAlert(ctx, event); err != nil {
			b.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("failed to publish alert to NATS")
		} else {
			delivered = true
		}
	}

	if b.hub != nil && b.hub.ClientCount() > 0 {
		b.hub.BroadcastEvent(event)
		delivered = true
	}

	if !delivered {
		return fmt.Errorf("%w: no connected alert channel", services.ErrAlertingUnavailable)
	}
	return nil
}
