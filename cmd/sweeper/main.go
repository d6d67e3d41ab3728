// Command sweeper runs one periodic sweep and exits. It is meant for external
// schedulers such as cron; the exit status is non-zero when the sweep fails.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"linkguard/internal/config"
	"linkguard/internal/domain/services"
	"linkguard/internal/infrastructure/cache"
	"linkguard/internal/infrastructure/database/repository"
	"linkguard/internal/streaming"
	"linkguard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	}).WithComponent("sweeper-cmd")

	if err := run(cfg, log); err != nil {
		if errors.Is(err, services.ErrSweepInProgress) {
			log.Warn().Msg("another sweep is running, nothing to do")
			os.Exit(2)
		}
		log.Error().Err(err).Msg("sweep failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	var locker services.Locker
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisCache.Close()
		locker = cache.NewLocker(redisCache, cfg.Sweep.LockTTL)
	}

	var alerter services.Alerter
	if cfg.NATS.Enabled {
		publisher, err := streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, alerts will only be logged")
		} else {
			defer publisher.Close()
			alerter = streaming.NewAlertBus(publisher, nil, log)
		}
	}

	notifier := services.NewNotificationDispatcher(alerter, cfg.Notifications.Enabled, log)
	coordinator := services.NewIngestionCoordinator(services.NewThreatClassifier(cfg.Classifier), store.FlaggedLinks, log)
	sweeper := services.NewPeriodicSweeper(coordinator, store.Messages, store.ScanState, locker, notifier, cfg.Sweep, log)

	result, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}

	if result.Skipped {
		log.Info().Msg("periodic scanning disabled")
		return nil
	}

	log.Info().
		Int64("from_millis", result.FromMillis).
		Int64("watermark", result.Watermark).
		Int("messages", result.Pass.TotalMessages).
		Int("flagged", result.Pass.FlaggedCount).
		Int("failed", result.Pass.Failed).
		Msg("sweep finished")
	return nil
}
