package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

var (
	// ErrQueueFull is returned by TrySubmit when the queue has no free slot
	ErrQueueFull = errors.New("ingest queue full")
	// ErrQueueClosed is returned once Close has been called
	ErrQueueClosed = errors.New("ingest queue closed")
)

// MessageHandler processes one live message
type MessageHandler interface {
	Receive(ctx context.Context, msg models.RawMessage) (*models.PassResult, error)
}

// IngestQueue buffers live messages for a single consumer goroutine, so that
// writes are ordered, bounded and drained on shutdown
type IngestQueue struct {
	handler MessageHandler
	logger  *logger.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan models.RawMessage
	done   chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// QueueStats is a snapshot of queue counters
type QueueStats struct {
	Pending   int   `json:"pending"`
	Capacity  int   `json:"capacity"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// NewIngestQueue creates the queue and starts its consumer. ctx is handed to
// the handler for every message; cancelling it does not stop the consumer,
// Close does.
func NewIngestQueue(ctx context.Context, handler MessageHandler, size int, log *logger.Logger) *IngestQueue {
	if size < 1 {
		size = 1
	}
	q := &IngestQueue{
		handler: handler,
		logger:  log.WithComponent("ingest-queue"),
		ch:      make(chan models.RawMessage, size),
		done:    make(chan struct{}),
	}
	go q.consume(context.WithoutCancel(ctx))
	return q
}

// Submit enqueues msg, waiting for a free slot until ctx is done
func (q *IngestQueue) Submit(ctx context.Context, msg models.RawMessage) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit enqueues msg without waiting
func (q *IngestQueue) TrySubmit(msg models.RawMessage) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.ch <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake and blocks until every queued message has been processed
// or ctx is done
func (q *IngestQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
		q.logger.Info().Int("pending", len(q.ch)).Msg("ingest queue closing")
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters
func (q *IngestQueue) Stats() QueueStats {
	return QueueStats{
		Pending:   len(q.ch),
		Capacity:  cap(q.ch),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
	}
}

func (q *IngestQueue) consume(ctx context.Context) {
	defer close(q.done)

	for msg := range q.ch {
		result, err := q.handler.Receive(ctx, msg)
		if err != nil {
			q.failed.Add(1)
			q.logger.Error().Err(err).Str("sender", msg.Sender).Msg("failed to process live message")
			continue
		}
		// insert errors are logged by the coordinator and surface only in the result
		if result != nil && result.Failed > 0 {
			q.failed.Add(1)
			continue
		}
		q.processed.Add(1)
	}

	q.logger.Info().Int64("processed", q.processed.Load()).Msg("ingest queue drained")
}
