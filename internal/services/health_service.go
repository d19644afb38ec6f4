package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"lacphcli/internal/store"
)

// HealthService provides health check functionality
type HealthService struct {
	version     string
	ruleVersion string
	store       store.Store
	startTime   time.Time
	logger      *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version"`
	RuleVersion string                 `json:"rule_version"`
	Reports     int                    `json:"reports"`
	Versions    []string               `json:"stored_versions,omitempty"`
	Uptime      string                 `json:"uptime"`
	Message     string                 `json:"message,omitempty"`
	Runtime     map[string]interface{} `json:"runtime,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, ruleVersion string, s store.Store, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:     version,
		ruleVersion: ruleVersion,
		store:       s,
		startTime:   time.Now(),
		logger:      logger.With(slog.String("service", "health")),
	}
}

// HealthCheck reports "healthy" when the store answers and "degraded"
// otherwise.
func (s *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Version:     s.version,
		RuleVersion: s.ruleVersion,
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"go_version": runtime.Version(),
		},
	}

	reports, err := s.store.List(ctx, s.ruleVersion)
	if err != nil {
		s.logger.WarnContext(ctx, "store health check failed", slog.String("error", err.Error()))
		status.Status = "degraded"
		status.Message = err.Error()
		return status
	}
	status.Reports = len(reports)

	versions, err := s.store.Versions(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "listing stored rule versions failed", slog.String("error", err.Error()))
		status.Status = "degraded"
		status.Message = err.Error()
		return status
	}
	status.Versions = versions
	return status
}
