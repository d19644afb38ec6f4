package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

// SeriesHandler serves derived time series
type SeriesHandler struct {
	service SeriesServiceInterface
	logger  *slog.Logger
}

// SeriesResponse wraps one category's points
type SeriesResponse struct {
	RuleVersion string          `json:"rule_version"`
	Category    domain.Category `json:"category"`
	Window      int             `json:"window_days"`
	Group       string          `json:"group,omitempty"`
	Points      interface{}     `json:"points"`
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(service SeriesServiceInterface, logger *slog.Logger) *SeriesHandler {
	return &SeriesHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "series")),
	}
}

// Routes returns the series routes
func (h *SeriesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/{category}", h.GetSeries)
	return r
}

// GetSeries handles GET /series/{category}
func (h *SeriesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	category, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		renderError(w, r, h.logger, apperrors.InvalidParameter("category", err))
		return
	}
	group := r.URL.Query().Get("group")

	points, err := h.service.Category(r.Context(), category, group)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, SeriesResponse{
		RuleVersion: h.service.RuleVersion(),
		Category:    category,
		Window:      category.Window(),
		Group:       group,
		Points:      points,
	})
}
