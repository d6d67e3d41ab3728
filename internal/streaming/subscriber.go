package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"linkguard/internal/domain/models"
	"linkguard/internal/domain/services"
	"linkguard/pkg/logger"
)

// MessageSubmitter accepts live messages for ingestion
type MessageSubmitter interface {
	Submit(ctx context.Context, msg models.RawMessage) error
}

// inboxQueueGroup spreads inbound messages over every linkguard instance
const inboxQueueGroup = "linkguard-ingest"

// queuedAck is the reply sent to request-style publishers once a message is queued
var queuedAck = []byte(`{"status":"queued"}`)

// InboxSubscriber feeds live SMS events from NATS into the ingest queue
type InboxSubscriber struct {
	conn          *nats.Conn
	subject       string
	queue         MessageSubmitter
	submitTimeout time.Duration
	respond       func(msg *nats.Msg, data []byte) error
	logger        *logger.Logger

	sub *nats.Subscription
}

// NewInboxSubscriber creates a new InboxSubscriber
func NewInboxSubscriber(conn *nats.Conn, subject string, queue MessageSubmitter, log *logger.Logger) *InboxSubscriber {
	return &InboxSubscriber{
		conn:          conn,
		subject:       subject,
		queue:         queue,
		submitTimeout: 5 * time.Second,
		respond:       (*nats.Msg).Respond,
		logger:        log.WithComponent("inbox-subscriber"),
	}
}

// Start subscribes to the inbound subject
func (s *InboxSubscriber) Start() error {
	sub, err := s.conn.QueueSubscribe(s.subject, inboxQueueGroup, s.handle)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}
	s.sub = sub
	s.logger.Info().Str("subject", s.subject).Msg("listening for inbound messages")
	return nil
}

// Stop unsubscribes, letting in-flight handlers finish
func (s *InboxSubscriber) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *InboxSubscriber) handle(msg *nats.Msg) {
	event, err := DecodeInboundMessage(msg.Data)
	if err != nil {
		s.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed inbound message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.submitTimeout)
	defer cancel()

	if err := s.queue.Submit(ctx, event.RawMessage()); err != nil {
		if errors.Is(err, services.ErrQueueClosed) {
			s.logger.Warn().Str("sender", event.Sender).Msg("ingest queue closed, inbound message dropped")
			return
		}
		s.logger.Error().Err(err).Str("sender", event.Sender).Msg("failed to enqueue inbound message")
		return
	}

	if msg.Reply != "" {
		if err := s.respond(msg, queuedAck); err != nil {
			s.logger.Debug().Err(err).Msg("failed to acknowledge inbound message")
		}
	}
}

// DecodeInboundMessage parses and validates an inbound message payload
func DecodeInboundMessage(data []byte) (*InboundMessageEvent, error) {
	var event InboundMessageEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode inbound message: %w", err)
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return &event, nil
}
