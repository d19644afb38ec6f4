package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lacphcli/internal/bulletin"
	"lacphcli/internal/dataprocessing"
	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/infrastructure"
	"lacphcli/internal/store"
	"lacphcli/pkg/contracts/domain"
)

// FetchStep downloads the bulletins of the run's dates.
type FetchStep struct {
	BaseStep
	fetcher     bulletin.Fetcher
	concurrency int
	metrics     *infrastructure.PipelineMetrics
	logger      *slog.Logger
}

// NewFetchStep creates the fetch step.
func NewFetchStep(fetcher bulletin.Fetcher, concurrency int, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *FetchStep {
	if concurrency < 1 {
		concurrency = 1
	}
	return &FetchStep{
		BaseStep:    NewBaseStep(StepIDFetch, "Fetch bulletins"),
		fetcher:     fetcher,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Execute fetches every date and waits for all fetches to finish. A date
// whose fetch fails is skipped; the step fails only when the context ends
// or no bulletin at all was fetched.
func (s *FetchStep) Execute(ctx context.Context, state *RunState) error {
	dates := state.Dates
	step := state.GetStep(s.ID())
	fetched := make([]*bulletin.Bulletin, len(dates))
	failed := make([]error, len(dates))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, date := range dates {
		g.Go(func() error {
			start := time.Now()
			b, err := s.fetcher.Fetch(gctx, date)
			source := "none"
			if b != nil {
				source = b.Source
			}
			s.metrics.RecordFetch(gctx, source, time.Since(start), err)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed[i] = err
			} else {
				fetched[i] = b
			}
			if step != nil {
				n := done.Add(1)
				step.UpdateProgress(float64(n)/float64(len(dates))*100, fmt.Sprintf("fetched %d of %d", n, len(dates)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	bulletins := make([]*bulletin.Bulletin, 0, len(dates))
	for i, date := range dates {
		if err := failed[i]; err != nil {
			s.logger.WarnContext(ctx, "bulletin skipped",
				slog.String("date", date.String()),
				slog.String("error", err.Error()))
			state.Skip(date, err.Error())
			continue
		}
		bulletins = append(bulletins, fetched[i])
	}
	if step != nil {
		step.SetMetadata("fetched", len(bulletins))
		step.SetMetadata("skipped", len(dates)-len(bulletins))
	}
	if len(bulletins) == 0 && len(dates) > 0 {
		return NewExecutionError(s.ID(), fmt.Errorf("no bulletin fetched for %d requested dates", len(dates)))
	}
	state.setBulletins(bulletins)
	return nil
}

// ParseStep turns fetched bulletins into reports, memoized in the store
// under the parser's rule version.
type ParseStep struct {
	BaseStep
	parser  *dataprocessing.Parser
	store   store.Store
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewParseStep creates the parse step.
func NewParseStep(parser *dataprocessing.Parser, st store.Store, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *ParseStep {
	return &ParseStep{
		BaseStep: NewBaseStep(StepIDParse, "Parse bulletins"),
		parser:   parser,
		store:    st,
		metrics:  metrics,
		logger:   logger,
	}
}

// Execute parses the bulletins in date order and stops at the first
// failure. The returned error names the date and field that failed.
func (s *ParseStep) Execute(ctx context.Context, state *RunState) error {
	version := s.parser.RuleVersion()
	bulletins := state.Bulletins()
	step := state.GetStep(s.ID())
	reports := make([]*domain.DailyReport, 0, len(bulletins))
	hits := 0

	for i, b := range bulletins {
		if err := ctx.Err(); err != nil {
			return err
		}
		var stats dataprocessing.ParseStats
		report, hit, err := store.GetOrParse(ctx, s.store, b.Date, version, func(ctx context.Context) (*domain.DailyReport, error) {
			r, st, err := s.parser.ParseWithStats(ctx, b.Text, b.Date)
			stats = st
			return r, err
		})
		if err != nil {
			if field, ok := failedField(err); ok {
				s.metrics.RecordParse(ctx, version, 0, field)
			}
			return err
		}
		s.metrics.RecordStoreLookup(ctx, hit)
		if hit {
			hits++
		} else {
			s.metrics.RecordParse(ctx, version, stats.Corrections(), "")
		}
		reports = append(reports, report)
		if step != nil {
			step.UpdateProgress(float64(i+1)/float64(len(bulletins))*100, fmt.Sprintf("parsed %s", b.Date))
		}
	}

	if step != nil {
		step.SetMetadata("reports", len(reports))
		step.SetMetadata("store_hits", hits)
	}
	s.logger.InfoContext(ctx, "bulletins parsed",
		slog.String("rule_version", version),
		slog.Int("reports", len(reports)),
		slog.Int("store_hits", hits))
	state.setReports(reports)
	return nil
}

// failedField returns the bulletin field a parse error names.
func failedField(err error) (string, bool) {
	var pf *apperrors.ParseFailure
	if apperrors.As(err, &pf) {
		return pf.Field, true
	}
	var dm *apperrors.DateMismatch
	if apperrors.As(err, &dm) {
		return dataprocessing.FieldDate, true
	}
	return "", false
}

// BuildStep derives every series from the parsed reports.
type BuildStep struct {
	BaseStep
	build func(ctx context.Context, reports []*domain.DailyReport) (*domain.SeriesSet, error)
}

// NewBuildStep creates the build step over a series build function.
func NewBuildStep(build func(ctx context.Context, reports []*domain.DailyReport) (*domain.SeriesSet, error)) *BuildStep {
	return &BuildStep{
		BaseStep: NewBaseStep(StepIDBuild, "Build series"),
		build:    build,
	}
}

// Execute builds the series set of the run.
func (s *BuildStep) Execute(ctx context.Context, state *RunState) error {
	set, err := s.build(ctx, state.Reports())
	if err != nil {
		return err
	}
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("aggregate_points", len(set.Aggregate))
		step.SetMetadata("area_points", len(set.Area))
		step.SetMetadata("region_points", len(set.Region))
	}
	state.setSeries(set)
	return nil
}
