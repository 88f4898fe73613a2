// Package http assembles the chi router and server for the Scholet API.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/prometheus"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/handlers"
	"github.com/ryanyen2/Scholet/internal/interfaces/http/middleware"
)

type RouterConfig struct {
	Explorer *handlers.ExplorerHandler
	Health   *handlers.HealthHandler

	// CORS is skipped when nil or when it allows no origins.
	CORS        *middleware.CORSConfig
	RateLimiter middleware.RateLimiter
	Logging     middleware.LoggingConfig

	Logger  logging.Logger
	Metrics *prometheus.AppMetrics
	// MetricsHandler is mounted at MetricsPath (default /metrics) when set.
	MetricsHandler http.Handler
	MetricsPath    string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogging(log.Named("http"), cfg.Metrics, cfg.Logging))
	if cfg.CORS != nil && len(cfg.CORS.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(*cfg.CORS))
	}
	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(cfg.RateLimiter, middleware.DefaultRateLimitConfig()))
	}

	r.NotFound(handlers.NotFound)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	if cfg.Health != nil {
		cfg.Health.RegisterRoutes(r)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.Explorer != nil {
			cfg.Explorer.RegisterRoutes(api)
		}
	})
	return r
}
