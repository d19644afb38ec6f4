package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/infrastructure"
	customMiddleware "lacphcli/internal/middleware"
)

// RateLimit configures the optional request rate limiter. A zero RPS
// disables it.
type RateLimit struct {
	RPS   float64
	Burst int
}

// RouterConfig collects the handlers' collaborators.
type RouterConfig struct {
	Series    SeriesServiceInterface
	Health    HealthServiceInterface
	Metrics   http.Handler
	Tracer    trace.Tracer
	Pipeline  *infrastructure.PipelineMetrics
	RateLimit RateLimit
	Logger    *slog.Logger
}

// NewRouter builds the API router. Middleware runs in the order
// RequestID, RealIP, OTel, StructuredLogger, Recoverer, SecurityHeaders.
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteError(w, apperrors.NotFoundError("route "+r.URL.Path))
	})

	// Scrapes stay outside the traced group.
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.NewOTelMiddleware(cfg.Tracer, cfg.Pipeline).Handler)
		r.Use(customMiddleware.StructuredLogger(logger))
		r.Use(customMiddleware.Recoverer(logger))
		r.Use(customMiddleware.SecurityHeaders)
		if cfg.RateLimit.RPS > 0 {
			burst := cfg.RateLimit.Burst
			if burst < 1 {
				burst = 1
			}
			r.Use(customMiddleware.NewRateLimiter(cfg.RateLimit.RPS, burst, logger).Handler)
		}

		r.Get("/healthz", NewHealthHandler(cfg.Health, logger).HealthCheck)
		r.Mount("/reports", NewReportHandler(cfg.Series, logger).Routes())
		r.Mount("/series", NewSeriesHandler(cfg.Series, logger).Routes())
	})

	return r
}
