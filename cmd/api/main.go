package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"linkguard/internal/api"
	"linkguard/internal/api/handlers"
	apimiddleware "linkguard/internal/api/middleware"
	"linkguard/internal/config"
	"linkguard/internal/domain/services"
	"linkguard/internal/grpc/healthcheck"
	"linkguard/internal/infrastructure/cache"
	"linkguard/internal/infrastructure/database/repository"
	"linkguard/internal/streaming"
	"linkguard/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		TimeFormat: cfg.Logger.TimeFormat,
	})

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Str("database", cfg.Database.Driver).
		Msg("starting linkguard")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize infrastructure
	store, err := repository.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	checks := map[string]func(context.Context) error{
		store.Driver: store.Ping,
	}

	var (
		redisCache *cache.RedisCache
		locker     services.Locker
		limiter    apimiddleware.RateLimitStore
	)
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedis(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing with in-process locks and no rate limiting")
		} else {
			defer redisCache.Close()
			locker = cache.NewLocker(redisCache, cfg.Sweep.LockTTL)
			limiter = redisCache
			checks["redis"] = redisCache.Ping
		}
	}

	// Initialize streaming infrastructure
	var natsPublisher *streaming.NATSPublisher
	if cfg.NATS.Enabled {
		natsPublisher, err = streaming.NewNATSPublisher(ctx, cfg.NATS, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to NATS, continuing without alert publishing")
			natsPublisher = nil
		} else {
			defer natsPublisher.Close()
			checks["nats"] = func(context.Context) error {
				if !natsPublisher.IsConnected() {
					return streaming.ErrNotConnected
				}
				return nil
			}
		}
	}

	wsHub := streaming.NewWebSocketHub(log)
	go wsHub.Run(ctx)

	alertBus := streaming.NewAlertBus(natsPublisher, wsHub, log)
	notifier := services.NewNotificationDispatcher(alertBus, cfg.Notifications.Enabled, log)

	// Initialize services
	classifier := services.NewThreatClassifier(cfg.Classifier)
	coordinator := services.NewIngestionCoordinator(classifier, store.FlaggedLinks, log)

	receiver := services.NewRealtimeReceiver(coordinator, store.Messages, notifier, log)
	queue := services.NewIngestQueue(ctx, receiver, cfg.Ingest.QueueSize, log)

	bulkJobs := services.NewBulkScanJobs(services.NewBulkScanner(coordinator, store.Messages, log), log)

	sweeper := services.NewPeriodicSweeper(coordinator, store.Messages, store.ScanState, locker, notifier, cfg.Sweep, log)
	scheduler := services.NewSweepScheduler(sweeper, cfg.Sweep.CheckInterval, log)

	var inbox *streaming.InboxSubscriber
	if natsPublisher != nil && cfg.NATS.Subjects.Inbound != "" {
		inbox = streaming.NewInboxSubscriber(natsPublisher.Conn(), cfg.NATS.Subjects.Inbound, queue, log)
		if err := inbox.Start(); err != nil {
			log.Error().Err(err).Msg("failed to start inbox subscriber")
			inbox = nil
		}
	}

	// Create HTTP handlers and router
	h := handlers.NewHandlers(handlers.Dependencies{
		Version: cfg.App.Version,
		Checks:  checks,
		Queue:   queue,
		Jobs:    bulkJobs,
		Sweeper: sweeper,
		Repos:   store.Repositories,
		Hub:     wsHub,
		Logger:  log,
	})
	router := api.NewRouter(*cfg, h, limiter, log)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Start gRPC server
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gRPC listener")
	}

	grpcServer := grpc.NewServer()
	healthMonitor := healthcheck.NewMonitor(checks, 10*time.Second, log)
	healthMonitor.Register(grpcServer)
	go healthMonitor.Run(ctx)

	go func() {
		log.Info().
			Str("addr", grpcListener.Addr().String()).
			Msg("starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil {
			log.Fatal().Err(err).Msg("gRPC server failed")
		}
	}()

	// Start background services
	go func() {
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("sweep scheduler stopped with error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	healthMonitor.Shutdown()
	scheduler.Stop()

	// Stop intake before draining the queue
	if inbox != nil {
		if err := inbox.Stop(); err != nil {
			log.Warn().Err(err).Msg("inbox subscriber drain error")
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	grpcServer.GracefulStop()

	bulkJobs.Shutdown()
	if err := queue.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Int("pending", queue.Stats().Pending).Msg("ingest queue did not drain in time")
	}

	// Cancel context to stop background services
	cancel()

	log.Info().Msg("shutdown complete")
}
