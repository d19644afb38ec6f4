package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "lacphcli/internal/errors"
	"lacphcli/pkg/contracts/domain"
)

// ReportHandler serves parsed daily reports
type ReportHandler struct {
	service SeriesServiceInterface
	logger  *slog.Logger
}

// ReportListResponse lists the dates with a stored report
type ReportListResponse struct {
	RuleVersion string        `json:"rule_version"`
	Count       int           `json:"count"`
	Dates       []domain.Date `json:"dates"`
}

// NewReportHandler creates a new report handler
func NewReportHandler(service SeriesServiceInterface, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "reports")),
	}
}

// Routes returns the report routes
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.ListReports)
	r.Get("/{date}", h.GetReport)
	return r
}

// ListReports handles GET /reports
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	dates, err := h.service.Dates(r.Context())
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	if dates == nil {
		dates = []domain.Date{}
	}
	render.JSON(w, r, ReportListResponse{
		RuleVersion: h.service.RuleVersion(),
		Count:       len(dates),
		Dates:       dates,
	})
}

// GetReport handles GET /reports/{date}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	date, err := domain.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		renderError(w, r, h.logger, apperrors.InvalidParameter("date", err))
		return
	}

	report, err := h.service.Report(r.Context(), date)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, report)
}
