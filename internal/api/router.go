package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"linkguard/internal/api/handlers"
	apimiddleware "linkguard/internal/api/middleware"
	"linkguard/internal/config"
	"linkguard/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limiter  apimiddleware.RateLimitStore
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limiter may be nil, which turns
// rate limiting off.
func NewRouter(cfg config.Config, h *handlers.Handlers, limiter apimiddleware.RateLimitStore, log *logger.Logger) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limiter:  limiter,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger))
	router.Use(middleware.Recoverer)

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)
	})

	// API v1 routes (authenticated)
	router.Route("/api/v1", func(api chi.Router) {
		api.Use(apimiddleware.APIKeyAuth(r.config.Auth.APIKeys))

		if r.config.RateLimit.Enabled && r.limiter != nil {
			api.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
		}

		// WebSocket connections outlive any request timeout
		api.Route("/alerts", func(alerts chi.Router) {
			alerts.Get("/ws", r.handlers.Alerts.HandleWebSocket)
			alerts.Get("/stats", r.handlers.Alerts.Stats)
		})

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(60 * time.Second))

			// Live message events
			timed.Route("/messages", func(messages chi.Router) {
				messages.Post("/", r.handlers.Messages.Submit)
				messages.Get("/queue", r.handlers.Messages.QueueStats)
			})

			// Bulk scans and the periodic sweep
			timed.Route("/scans", func(scans chi.Router) {
				scans.Post("/bulk", r.handlers.Scans.StartBulk)
				scans.Get("/bulk", r.handlers.Scans.ListBulk)
				scans.Get("/bulk/{id}", r.handlers.Scans.GetBulk)
				scans.Delete("/bulk/{id}", r.handlers.Scans.CancelBulk)
				scans.Post("/sweep", r.handlers.Scans.Sweep)
				scans.Get("/watermark", r.handlers.Scans.Watermark)
			})

			// Flagged link history
			timed.Route("/flagged", func(flagged chi.Router) {
				flagged.Get("/", r.handlers.Flagged.List)
				flagged.Get("/count", r.handlers.Flagged.Count)
				flagged.Delete("/", r.handlers.Flagged.Clear)
			})

			// Scan settings
			timed.Get("/settings/scan", r.handlers.Settings.Get)
			timed.Put("/settings/scan", r.handlers.Settings.Update)
		})
	})

	return router
}
