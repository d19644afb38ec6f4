package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/services"
	"lacphcli/pkg/contracts/domain"
)

// SeriesServiceInterface defines the read operations the handlers need
type SeriesServiceInterface interface {
	RuleVersion() string
	Dates(ctx context.Context) ([]domain.Date, error)
	Report(ctx context.Context, date domain.Date) (*domain.DailyReport, error)
	Category(ctx context.Context, c domain.Category, group string) (interface{}, error)
}

// HealthServiceInterface defines the health check operation
type HealthServiceInterface interface {
	HealthCheck(ctx context.Context) services.HealthStatus
}

// renderError maps err to an API error and writes it. Server errors are
// logged with the request context.
func renderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	apiErr := apperrors.FromError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	_ = render.Render(w, r, apperrors.NewErrorResponse(apiErr))
}
