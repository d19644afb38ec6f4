package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/store"
	"lacphcli/pkg/contracts/domain"
)

// BuildFunc derives every series from a date ordered report history.
type BuildFunc func(ctx context.Context, reports []*domain.DailyReport) (*domain.SeriesSet, error)

// SeriesService serves the reports of one rule version and the series
// derived from them.
type SeriesService struct {
	store   store.Store
	version string
	build   BuildFunc
	logger  *slog.Logger

	group singleflight.Group

	mu       sync.RWMutex
	cached   *domain.SeriesSet
	cacheKey string
}

// NewSeriesService creates a service over reports parsed under version.
func NewSeriesService(s store.Store, version string, build BuildFunc, logger *slog.Logger) *SeriesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesService{
		store:   s,
		version: version,
		build:   build,
		logger:  logger.With(slog.String("service", "series")),
	}
}

// RuleVersion returns the rule version the service reads.
func (s *SeriesService) RuleVersion() string {
	return s.version
}

// Dates returns the dates with a stored report, ascending.
func (s *SeriesService) Dates(ctx context.Context) ([]domain.Date, error) {
	reports, err := s.store.List(ctx, s.version)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	dates := make([]domain.Date, len(reports))
	for i, r := range reports {
		dates[i] = r.Date
	}
	return dates, nil
}

// Report returns the stored report of date.
func (s *SeriesService) Report(ctx context.Context, date domain.Date) (*domain.DailyReport, error) {
	report, ok, err := s.store.Get(ctx, date, s.version)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", date, err)
	}
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("report %s", date))
	}
	return report, nil
}

// Series returns every series derived from the stored history. The set is
// rebuilt only when the history changed since the last call.
func (s *SeriesService) Series(ctx context.Context) (*domain.SeriesSet, error) {
	if s.build == nil {
		return nil, ErrNoBuilder
	}

	reports, err := s.store.List(ctx, s.version)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeNotFound,
			fmt.Sprintf("no reports stored for rule version %s", s.version), ErrNoReportsFound)
	}

	key := fmt.Sprintf("%d:%s", len(reports), reports[len(reports)-1].Date)

	s.mu.RLock()
	if s.cached != nil && s.cacheKey == key {
		set := s.cached
		s.mu.RUnlock()
		return set, nil
	}
	s.mu.RUnlock()

	// The build is shared by every waiter, so one caller going away must not
	// cancel it for the others.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		set, err := s.build(buildCtx, reports)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cached = set
		s.cacheKey = key
		s.mu.Unlock()

		s.logger.InfoContext(buildCtx, "series rebuilt",
			slog.Int("reports", len(reports)),
			slog.String("rule_version", s.version),
			slog.Duration("duration", time.Since(start)))
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.SeriesSet), nil
	}
}

// Category returns the series of c, restricted to group when it is not
// empty. The aggregate series has no groups and ignores group.
func (s *SeriesService) Category(ctx context.Context, c domain.Category, group string) (interface{}, error) {
	set, err := s.Series(ctx)
	if err != nil {
		return nil, err
	}

	switch c {
	case domain.CategoryAggregate:
		return set.Aggregate, nil
	case domain.CategoryRace:
		if group == "" {
			return set.Race, nil
		}
		out := []domain.RacePoint{}
		for _, p := range set.Race {
			if p.Race == group {
				out = append(out, p)
			}
		}
		return out, nil
	case domain.CategoryAge:
		return filterGroup(set.Age, group), nil
	case domain.CategoryGender:
		return filterGroup(set.Gender, group), nil
	case domain.CategoryArea:
		return filterGroup(set.Area, group), nil
	case domain.CategoryRegion:
		return filterGroup(set.Region, group), nil
	}
	return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown category %q", c))
}

func filterGroup(points []domain.Point, group string) []domain.Point {
	if group == "" {
		return points
	}
	out := []domain.Point{}
	for _, p := range points {
		if p.Group == group {
			out = append(out, p)
		}
	}
	return out
}
