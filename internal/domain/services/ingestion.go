package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

// FlaggedLinkStore persists classified threats with insert-if-new semantics
type FlaggedLinkStore interface {
	InsertIfNew(ctx context.Context, link *models.FlaggedLink) (bool, error)
	ListAll(ctx context.Context, filter models.LevelFilter) ([]*models.FlaggedLink, error)
	ClearAll(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// ProgressFunc receives the 1-based index of the message just processed and the pass total
type ProgressFunc func(processed, total int)

// PassOptions customizes a single pass
type PassOptions struct {
	// Producer names the caller in logs
	Producer   string
	OnProgress ProgressFunc
	// OnFlagged is called for every link that was newly inserted
	OnFlagged func(link *models.FlaggedLink)
}

// IngestionCoordinator runs scan passes: extraction, classification and
// insert-if-new for every message of a batch, strictly in order.
// It is shared by all producers and holds no per-pass state.
type IngestionCoordinator struct {
	classifier *ThreatClassifier
	store      FlaggedLinkStore
	logger     *logger.Logger
}

// NewIngestionCoordinator creates a new coordinator
func NewIngestionCoordinator(classifier *ThreatClassifier, store FlaggedLinkStore, log *logger.Logger) *IngestionCoordinator {
	return &IngestionCoordinator{
		classifier: classifier,
		store:      store,
		logger:     log.WithComponent("ingestion"),
	}
}

// RunPass processes messages in order and reports progress after each one
func (c *IngestionCoordinator) RunPass(ctx context.Context, messages []models.RawMessage, onProgress ProgressFunc) (*models.PassResult, error) {
	return c.Run(ctx, messages, PassOptions{OnProgress: onProgress})
}

// Run processes messages with the given options.
//
// A failed insert is logged and counted in Failed; the pass goes on with the
// next link. Cancellation is observed after each progress callback and aborts
// the pass without a result. Rows inserted before that stay in the store.
func (c *IngestionCoordinator) Run(ctx context.Context, messages []models.RawMessage, opts PassOptions) (*models.PassResult, error) {
	producer := opts.Producer
	if producer == "" {
		producer = "unspecified"
	}
	log := c.logger.WithProducer(producer).WithPassID(uuid.NewString())

	total := len(messages)
	result := &models.PassResult{TotalMessages: total}
	start := time.Now()

	log.Debug().Int("messages", total).Msg("scan pass started")

	for i, msg := range messages {
		if !c.processMessage(ctx, log, msg, result, opts.OnFlagged) {
			result.Failed++
		}

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, total)
		}

		if err := ctx.Err(); err != nil {
			log.Warn().
				Err(err).
				Int("processed", i+1).
				Int("total", total).
				Int("flagged", result.FlaggedCount).
				Msg("scan pass cancelled")
			return nil, fmt.Errorf("scan pass cancelled after %d of %d messages: %w", i+1, total, err)
		}
	}

	log.Info().
		Int("messages", total).
		Int("classified", result.Classified).
		Int("flagged", result.FlaggedCount).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("scan pass completed")

	return result, nil
}

// processMessage handles one message and reports whether every insert succeeded
func (c *IngestionCoordinator) processMessage(
	ctx context.Context,
	log *logger.Logger,
	msg models.RawMessage,
	result *models.PassResult,
	onFlagged func(*models.FlaggedLink),
) bool {
	ok := true

	for url := range ExtractLinks(msg.Body) {
		verdict := c.classifier.Classify(url)
		if !verdict.IsThreat {
			continue
		}
		result.Classified++

		link := models.NewFlaggedLink(url, msg, verdict)
		inserted, err := c.store.InsertIfNew(ctx, link)
		if err != nil {
			ok = false
			log.Warn().
				Err(err).
				Str("url", url).
				Str("sender", msg.Sender).
				Int64("timestamp", msg.ReceivedAtMillis).
				Msg("failed to store flagged link")
			continue
		}
		if !inserted {
			log.Debug().Str("url", url).Str("sender", msg.Sender).Msg("flagged link already recorded")
			continue
		}

		result.FlaggedCount++
		log.Info().
			Int64("id", link.ID).
			Str("url", url).
			Str("level", verdict.Level.String()).
			Str("reason", verdict.Reason).
			Msg("flagged suspicious link")

		if onFlagged != nil {
			onFlagged(link)
		}
	}

	return ok
}
