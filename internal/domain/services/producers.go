package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"linkguard/internal/config"
	"linkguard/internal/domain/models"
	"linkguard/pkg/logger"
)

// Producer names used in logs and pass options
const (
	ProducerRealtime = "realtime"
	ProducerBulk     = "bulk"
	ProducerSweep    = "sweep"
)

// ErrSweepInProgress is returned when another sweep holds the sweep lock
var ErrSweepInProgress = errors.New("sweep already in progress")

// ErrInvalidSettings is returned for scan settings that cannot be applied
var ErrInvalidSettings = errors.New("invalid scan settings")

// MessageSource supplies stored messages by date range
type MessageSource interface {
	// ListSince returns every message with ReceivedAtMillis >= fromMillis, newest first
	ListSince(ctx context.Context, fromMillis int64) ([]models.RawMessage, error)
}

// MessageSink records live messages so later sweeps and bulk scans can see them
type MessageSink interface {
	Append(ctx context.Context, msg models.RawMessage) (bool, error)
}

// ScanStateStore persists the sweep watermark and the user's scan settings
type ScanStateStore interface {
	Watermark(ctx context.Context) (int64, error)
	AdvanceWatermark(ctx context.Context, millis int64) error
	// Settings reports found=false when the user never saved settings
	Settings(ctx context.Context) (settings models.ScanSettings, found bool, err error)
	SaveSettings(ctx context.Context, settings models.ScanSettings) error
}

// Locker guards a named critical section, possibly across processes
type Locker interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// RealtimeReceiver handles single live message events
type RealtimeReceiver struct {
	coordinator *IngestionCoordinator
	inbox       MessageSink
	notifier    *NotificationDispatcher
	logger      *logger.Logger
}

// NewRealtimeReceiver creates a new RealtimeReceiver. inbox may be nil.
func NewRealtimeReceiver(coordinator *IngestionCoordinator, inbox MessageSink, notifier *NotificationDispatcher, log *logger.Logger) *RealtimeReceiver {
	return &RealtimeReceiver{
		coordinator: coordinator,
		inbox:       inbox,
		notifier:    notifier,
		logger:      log.WithComponent("realtime-receiver"),
	}
}

// Receive runs a pass of one message and alerts once per newly flagged link
func (r *RealtimeReceiver) Receive(ctx context.Context, msg models.RawMessage) (*models.PassResult, error) {
	if r.inbox != nil {
		if _, err := r.inbox.Append(ctx, msg); err != nil {
			r.logger.Warn().Err(err).Str("sender", msg.Sender).Msg("failed to record message in inbox")
		}
	}

	var flagged []*models.FlaggedLink
	result, err := r.coordinator.Run(ctx, []models.RawMessage{msg}, PassOptions{
		Producer: ProducerRealtime,
		OnFlagged: func(link *models.FlaggedLink) {
			flagged = append(flagged, link)
		},
	})
	if err != nil {
		return nil, err
	}

	if r.notifier != nil {
		for _, link := range flagged {
			r.notifier.NotifyLink(ctx, link)
		}
	}

	return result, nil
}

// BulkScanner runs on-demand scans over stored messages
type BulkScanner struct {
	coordinator *IngestionCoordinator
	source      MessageSource
	logger      *logger.Logger
}

// NewBulkScanner creates a new BulkScanner
func NewBulkScanner(coordinator *IngestionCoordinator, source MessageSource, log *logger.Logger) *BulkScanner {
	return &BulkScanner{
		coordinator: coordinator,
		source:      source,
		logger:      log.WithComponent("bulk-scanner"),
	}
}

// Scan processes every message received at or after fromMillis; 0 scans everything.
// The sweep watermark is left untouched.
func (b *BulkScanner) Scan(ctx context.Context, fromMillis int64, onProgress ProgressFunc) (*models.PassResult, error) {
	if fromMillis < 0 {
		fromMillis = 0
	}

	messages, err := b.source.ListSince(ctx, fromMillis)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages since %d: %w", fromMillis, err)
	}

	b.logger.Info().Int64("from_millis", fromMillis).Int("messages", len(messages)).Msg("bulk scan started")

	return b.coordinator.Run(ctx, messages, PassOptions{
		Producer:   ProducerBulk,
		OnProgress: onProgress,
	})
}

// PeriodicSweeper processes messages that arrived since the last sweep
type PeriodicSweeper struct {
	coordinator *IngestionCoordinator
	source      MessageSource
	state       ScanStateStore
	locker      Locker
	notifier    *NotificationDispatcher
	defaults    models.ScanSettings
	logger      *logger.Logger
	clock       func() time.Time
}

const sweepLockKey = "sweep"

// NewPeriodicSweeper creates a new PeriodicSweeper. cfg seeds the settings
// until the user saves their own.
func NewPeriodicSweeper(
	coordinator *IngestionCoordinator,
	source MessageSource,
	state ScanStateStore,
	locker Locker,
	notifier *NotificationDispatcher,
	cfg config.SweepConfig,
	log *logger.Logger,
) *PeriodicSweeper {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &PeriodicSweeper{
		coordinator: coordinator,
		source:      source,
		state:       state,
		locker:      locker,
		notifier:    notifier,
		defaults:    models.ScanSettings{Enabled: cfg.Enabled, FrequencyDays: cfg.FrequencyDays},
		logger:      log.WithComponent("periodic-sweeper"),
		clock:       time.Now,
	}
}

// WithClock replaces the wall clock used to advance the watermark
func (p *PeriodicSweeper) WithClock(clock func() time.Time) *PeriodicSweeper {
	p.clock = clock
	return p
}

// Settings returns the stored scan settings, or the configured defaults
func (p *PeriodicSweeper) Settings(ctx context.Context) (models.ScanSettings, error) {
	settings, found, err := p.state.Settings(ctx)
	if err != nil {
		return models.ScanSettings{}, fmt.Errorf("failed to load scan settings: %w", err)
	}
	if !found {
		return p.defaults, nil
	}
	return settings, nil
}

// UpdateSettings validates and persists new scan settings
func (p *PeriodicSweeper) UpdateSettings(ctx context.Context, settings models.ScanSettings) error {
	if settings.FrequencyDays < 1 {
		return fmt.Errorf("%w: frequency_days must be at least 1, got %d", ErrInvalidSettings, settings.FrequencyDays)
	}
	if err := p.state.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save scan settings: %w", err)
	}
	p.logger.Info().Bool("enabled", settings.Enabled).Int("frequency_days", settings.FrequencyDays).Msg("scan settings updated")
	return nil
}

// Watermark returns the time up to which sweeps have processed messages
func (p *PeriodicSweeper) Watermark(ctx context.Context) (int64, error) {
	return p.state.Watermark(ctx)
}

// Sweep processes every message at or after the watermark, then advances the
// watermark to the current time. It is a successful no-op while periodic
// scanning is disabled. Once started it ignores cancellation of ctx so that a
// sweep always runs to completion.
func (p *PeriodicSweeper) Sweep(ctx context.Context) (*models.SweepResult, error) {
	ctx = context.WithoutCancel(ctx)

	settings, err := p.Settings(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		p.logger.Debug().Msg("periodic scanning disabled, sweep skipped")
		return &models.SweepResult{Skipped: true}, nil
	}

	acquired, err := p.locker.Acquire(ctx, sweepLockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepInProgress
	}
	defer func() {
		if err := p.locker.Release(ctx, sweepLockKey); err != nil {
			p.logger.Warn().Err(err).Msg("failed to release sweep lock")
		}
	}()

	watermark, err := p.state.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan watermark: %w", err)
	}

	messages, err := p.source.ListSince(ctx, watermark)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages since %d: %w", watermark, err)
	}

	pass, err := p.coordinator.Run(ctx, messages, PassOptions{Producer: ProducerSweep})
	if err != nil {
		return nil, err
	}

	now := p.clock().UnixMilli()
	if err := p.state.AdvanceWatermark(ctx, now); err != nil {
		p.logger.Error().Err(err).Int64("watermark", now).Msg("failed to advance scan watermark")
		return nil, fmt.Errorf("failed to advance scan watermark: %w", err)
	}

	p.logger.Info().
		Int64("from_millis", watermark).
		Int64("watermark", now).
		Int("messages", pass.TotalMessages).
		Int("flagged", pass.FlaggedCount).
		Msg("periodic sweep completed")

	if p.notifier != nil {
		p.notifier.Notify(ctx, pass.FlaggedCount)
	}

	return &models.SweepResult{Pass: pass, FromMillis: watermark, Watermark: now}, nil
}

// LocalLocker is an in-process Locker used when no shared cache is configured
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates a new LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Acquire implements Locker
func (l *LocalLocker) Acquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return false, nil
	}
	l.held[key] = struct{}{}
	return true, nil
}

// Release implements Locker
func (l *LocalLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
	return nil
}
