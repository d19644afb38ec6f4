package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"lacphcli/internal/bulletin"
	"lacphcli/internal/dataprocessing"
	"lacphcli/internal/infrastructure"
	"lacphcli/internal/regions"
	"lacphcli/internal/store"
	"lacphcli/internal/timeseries"
	"lacphcli/pkg/contracts/domain"
)

// Dependencies are the collaborators of a Manager. Metrics, Tracer and
// Logger are optional; Regions may be nil to skip the region series.
type Dependencies struct {
	Fetcher bulletin.Fetcher
	Parser  *dataprocessing.Parser
	Store   store.Store
	Builder *timeseries.Builder
	Regions *regions.Aggregator
	Metrics *infrastructure.PipelineMetrics
	Tracer  trace.Tracer
	Logger  *slog.Logger
}

// Manager runs the pipeline steps in order and keeps the state of every
// run it started.
type Manager struct {
	deps   Dependencies
	config *Config
	steps  []Step
	tracer *runTracer
	logger *slog.Logger

	mu   sync.RWMutex
	runs map[string]*RunState
}

// NewManager creates a manager with the fetch, parse and build steps.
func NewManager(deps Dependencies, config *Config) *Manager {
	if config == nil {
		config = NewConfig()
	}
	logger := infrastructure.WithComponent(deps.Logger, "operations")

	m := &Manager{
		deps:   deps,
		config: config,
		tracer: newRunTracer(deps.Tracer),
		logger: logger,
		runs:   make(map[string]*RunState),
	}
	m.steps = []Step{
		NewFetchStep(deps.Fetcher, config.Concurrency, deps.Metrics, logger),
		NewParseStep(deps.Parser, deps.Store, deps.Metrics, logger),
		NewBuildStep(m.BuildSeries),
	}
	return m
}

// Steps returns the registered steps in execution order.
func (m *Manager) Steps() []Step {
	return m.steps
}

// Run executes the pipeline over dates. The returned state is populated
// even on failure, with the failing step marked and later steps skipped.
func (m *Manager) Run(ctx context.Context, dates []domain.Date) (*RunState, error) {
	state := NewRunState(uuid.NewString(), dates)
	if len(state.Dates) == 0 {
		err := NewValidationError("", "no dates requested")
		state.Fail(err)
		return state, err
	}

	m.mu.Lock()
	m.runs[state.ID] = state
	m.mu.Unlock()

	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := m.tracer.traceRun(ctx, state)
	logger := m.logger.With(slog.String("run_id", state.ID))

	for _, s := range m.steps {
		state.SetStep(s.ID(), NewStepState(s.ID(), s.Name()))
	}

	state.Start()
	logger.InfoContext(ctx, "run started",
		slog.String("from", state.Dates[0].String()),
		slog.String("to", state.Dates[len(state.Dates)-1].String()),
		slog.Int("dates", len(state.Dates)))

	err := m.executeSteps(ctx, state, logger)
	finishSpan(span, err, state.Duration())
	m.deps.Metrics.RecordRun(ctx, err)

	if err != nil {
		switch GetErrorType(err) {
		case ErrorTypeCancellation, ErrorTypeTimeout:
			state.Cancel(err)
		default:
			state.Fail(err)
		}
		logger.ErrorContext(ctx, "run failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", state.Duration()))
		return state, err
	}

	state.Complete()
	logger.InfoContext(ctx, "run completed",
		slog.Int("reports", len(state.Reports())),
		slog.Int("skipped", len(state.Skipped)),
		slog.Duration("duration", state.Duration()))
	return state, nil
}

func (m *Manager) executeSteps(ctx context.Context, state *RunState, logger *slog.Logger) error {
	for i, s := range m.steps {
		if err := ctx.Err(); err != nil {
			m.skipRemaining(state, i, "run cancelled")
			return WrapError(err, s.ID())
		}
		if err := m.executeStep(ctx, s, state, logger); err != nil {
			m.skipRemaining(state, i+1, fmt.Sprintf("step %s failed", s.ID()))
			return err
		}
	}
	return nil
}

func (m *Manager) executeStep(ctx context.Context, s Step, state *RunState, logger *slog.Logger) error {
	stepState := state.GetStep(s.ID())
	stepState.Start()

	ctx, cancel := context.WithTimeout(ctx, m.config.GetStepTimeout(s.ID()))
	defer cancel()
	ctx, span := m.tracer.traceStep(ctx, state.ID, s.ID())

	start := time.Now()
	err := WrapError(s.Execute(ctx, state), s.ID())
	elapsed := time.Since(start)

	finishSpan(span, err, elapsed)
	m.deps.Metrics.RecordStep(ctx, s.ID(), elapsed, err)

	if err != nil {
		stepState.Fail(err)
		return err
	}
	stepState.Complete()
	logger.DebugContext(ctx, "step completed",
		slog.String("step", s.ID()),
		slog.Duration("duration", elapsed))
	return nil
}

func (m *Manager) skipRemaining(state *RunState, from int, reason string) {
	for _, s := range m.steps[from:] {
		if st := state.GetStep(s.ID()); st != nil && st.GetStatus() == StepStatusPending {
			st.Skip(reason)
		}
	}
}

// GetRun returns a snapshot of the run with id.
func (m *Manager) GetRun(id string) (*RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	return state.Snapshot(), true
}

// ParseBulletin parses a single bulletin through the store, as the parse
// step does for each date of a run.
func (m *Manager) ParseBulletin(ctx context.Context, b *bulletin.Bulletin) (*domain.DailyReport, error) {
	state := NewRunState(uuid.NewString(), []domain.Date{b.Date})
	state.setBulletins([]*bulletin.Bulletin{b})
	step := NewParseStep(m.deps.Parser, m.deps.Store, m.deps.Metrics, m.logger)
	if err := step.Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Reports()[0], nil
}

// BuildSeries derives every category from reports. The per-report
// categories are built concurrently; the region series follows from the
// area series.
func (m *Manager) BuildSeries(ctx context.Context, reports []*domain.DailyReport) (*domain.SeriesSet, error) {
	set := &domain.SeriesSet{RuleVersion: m.deps.Parser.RuleVersion()}
	var areas *timeseries.AreaSeries
	b := m.deps.Builder

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		set.Aggregate, err = b.Aggregate(gctx, reports)
		return err
	})
	g.Go(func() (err error) {
		set.Age, err = b.ByAge(gctx, reports)
		return err
	})
	g.Go(func() (err error) {
		set.Gender, err = b.ByGender(gctx, reports)
		return err
	})
	g.Go(func() (err error) {
		set.Race, err = b.ByRace(gctx, reports)
		return err
	})
	g.Go(func() (err error) {
		areas, err = b.ByArea(gctx, reports)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build series: %w", err)
	}

	set.Area = areas.Points
	if m.deps.Regions != nil {
		set.Region = m.deps.Regions.Aggregate(ctx, areas.Points, areas.Populations)
	}

	counts := map[domain.Category]int{
		domain.CategoryAggregate: len(set.Aggregate),
		domain.CategoryAge:       len(set.Age),
		domain.CategoryGender:    len(set.Gender),
		domain.CategoryRace:      len(set.Race),
		domain.CategoryArea:      len(set.Area),
		domain.CategoryRegion:    len(set.Region),
	}
	for c, n := range counts {
		m.deps.Metrics.RecordPoints(ctx, string(c), n)
	}
	return set, nil
}
