package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"linkguard/pkg/logger"
)

// SweepScheduler triggers the periodic sweep once the configured frequency has
// elapsed since the watermark
type SweepScheduler struct {
	sweeper       *PeriodicSweeper
	checkInterval time.Duration
	clock         func() time.Time
	logger        *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewSweepScheduler creates a new SweepScheduler that re-evaluates every checkInterval
func NewSweepScheduler(sweeper *PeriodicSweeper, checkInterval time.Duration, log *logger.Logger) *SweepScheduler {
	if checkInterval <= 0 {
		checkInterval = time.Minute
	}
	return &SweepScheduler{
		sweeper:       sweeper,
		checkInterval: checkInterval,
		clock:         time.Now,
		logger:        log.WithComponent("sweep-scheduler"),
		stopCh:        make(chan struct{}),
	}
}

// Start runs the scheduler loop until ctx is done or Stop is called
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.logger.Info().Dur("check_interval", s.checkInterval).Msg("sweep scheduler started")

	s.Tick(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Stop stops the scheduler
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stopCh)
	s.logger.Info().Msg("sweep scheduler stopped")
}

// Tick runs a sweep if one is due and reports whether it ran
func (s *SweepScheduler) Tick(ctx context.Context) bool {
	due, err := s.due(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to evaluate sweep schedule")
		return false
	}
	if !due {
		return false
	}

	result, err := s.sweeper.Sweep(ctx)
	switch {
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Debug().Msg("sweep already running elsewhere")
		return false
	case err != nil:
		s.logger.Error().Err(err).Msg("scheduled sweep failed")
		return false
	}

	return !result.Skipped
}

func (s *SweepScheduler) due(ctx context.Context) (bool, error) {
	settings, err := s.sweeper.Settings(ctx)
	if err != nil {
		return false, err
	}
	if !settings.Enabled {
		return false, nil
	}

	watermark, err := s.sweeper.Watermark(ctx)
	if err != nil {
		return false, err
	}

	elapsed := s.clock().Sub(time.UnixMilli(watermark))
	return elapsed >= settings.Interval(), nil
}
