package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"lacphcli/internal/bulletin"
	"lacphcli/internal/corrections"
	"lacphcli/internal/dataprocessing"
	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/infrastructure"
	"lacphcli/internal/population"
	"lacphcli/internal/regions"
	"lacphcli/internal/store"
	"lacphcli/internal/timeseries"
	"lacphcli/pkg/contracts/domain"
)

var fixtureDates = []domain.Date{
	domain.MustParseDate("2020-03-28"),
	domain.MustParseDate("2020-04-13"),
	domain.MustParseDate("2020-07-28"),
}

// fakeFetcher serves bulletin texts from memory.
type fakeFetcher struct {
	mu    sync.Mutex
	texts map[domain.Date]string
	calls int
	delay time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, date domain.Date) (*bulletin.Bulletin, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	text, ok := f.texts[date]
	if !ok {
		return nil, apperrors.NewNotFoundError("bulletin for " + date.String())
	}
	return &bulletin.Bulletin{Date: date, Text: text, Source: "fake"}, nil
}

func fixtureTexts(t *testing.T) map[domain.Date]string {
	t.Helper()
	texts := map[domain.Date]string{}
	for _, d := range fixtureDates {
		data, err := os.ReadFile(filepath.Join("..", "dataprocessing", "testdata", "bulletin_"+d.String()+".txt"))
		require.NoError(t, err)
		texts[d] = string(data)
	}
	return texts
}

type fixture struct {
	manager *Manager
	fetcher *fakeFetcher
	store   *store.MemoryStore
	parser  *dataprocessing.Parser
	reader  *sdkmetric.ManualReader
}

func newFixture(t *testing.T, texts map[domain.Date]string, cfg *Config) *fixture {
	t.Helper()
	rules, err := corrections.Default()
	require.NoError(t, err)
	ref, err := population.Default()
	require.NoError(t, err)
	regionMap, err := regions.DefaultMap()
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")
	metrics, err := infrastructure.NewPipelineMetrics(meter)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	builder := timeseries.NewBuilder(ref, rules, timeseries.DefaultOptions(), logger)
	f := &fixture{
		fetcher: &fakeFetcher{texts: texts},
		store:   store.NewMemoryStore(),
		parser:  dataprocessing.NewParser(rules, dataprocessing.DefaultEras(), logger),
		reader:  reader,
	}
	f.manager = NewManager(Dependencies{
		Fetcher: f.fetcher,
		Parser:  f.parser,
		Store:   f.store,
		Builder: builder,
		Regions: regions.NewAggregator(regionMap, builder, rules, nil, logger),
		Metrics: metrics,
		Logger:  logger,
	}, cfg)
	return f
}

// counter sums the data points of an int64 counter named name whose
// attribute key has value.
func (f *fixture) counter(t *testing.T, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRunBuildsSeries(t *testing.T) {
	f := newFixture(t, fixtureTexts(t), nil)
	missing := domain.MustParseDate("2020-04-14")
	dates := append([]domain.Date{missing}, fixtureDates...)

	state, err := f.manager.Run(context.Background(), dates)
	require.NoError(t, err)

	assert.Equal(t, RunStatusCompleted, state.GetStatus())
	assert.NotEmpty(t, state.ID)
	assert.Len(t, state.Dates, 4)
	for _, id := range []string{StepIDFetch, StepIDParse, StepIDBuild} {
		assert.Equal(t, StepStatusCompleted, state.GetStep(id).GetStatus(), id)
	}

	skipped := state.SkippedDates()
	require.Len(t, skipped, 1)
	assert.Equal(t, missing, skipped[0].Date)
	assert.Contains(t, skipped[0].Reason, "not found")

	reports := state.Reports()
	require.Len(t, reports, 3)
	for i, r := range reports {
		assert.Equal(t, fixtureDates[i], r.Date)
		assert.Equal(t, f.parser.RuleVersion(), r.RuleVersion)
	}
	assert.Equal(t, 3, f.store.Len())

	series := state.Series()
	require.NotNil(t, series)
	assert.Equal(t, f.parser.RuleVersion(), series.RuleVersion)
	assert.NotEmpty(t, series.Aggregate)
	assert.NotEmpty(t, series.Age)
	assert.NotEmpty(t, series.Gender)
	assert.NotEmpty(t, series.Race)
	assert.NotEmpty(t, series.Area)

	assert.Equal(t, int64(3), f.counter(t, "lacph_store_lookups_total", "result", "miss"))
	assert.Equal(t, int64(1), f.counter(t, "lacph_runs_total", "status", "success"))
	assert.Equal(t, int64(1), f.counter(t, "lacph_fetch_requests_total", "status", "failure"))
}

func TestRunServesStoredReports(t *testing.T) {
	f := newFixture(t, fixtureTexts(t), nil)
	_, err := f.manager.Run(context.Background(), fixtureDates)
	require.NoError(t, err)

	// Unparseable text proves the second run never reaches the parser.
	for d := range f.fetcher.texts {
		f.fetcher.texts[d] = "garbage"
	}
	state, err := f.manager.Run(context.Background(), fixtureDates)
	require.NoError(t, err)
	assert.Len(t, state.Reports(), 3)
	assert.Equal(t, int64(3), f.counter(t, "lacph_store_lookups_total", "result", "hit"))
}

func TestRunParseFailureAborts(t *testing.T) {
	texts := fixtureTexts(t)
	bad := domain.MustParseDate("2020-04-13")
	texts[bad] = "For Immediate Release: April 13, 2020\n\nNothing to report.\n"
	f := newFixture(t, texts, nil)

	state, err := f.manager.Run(context.Background(), fixtureDates)
	require.Error(t, err)

	var pf *apperrors.ParseFailure
	require.True(t, apperrors.As(err, &pf))
	assert.Equal(t, bad, pf.Date)
	assert.Equal(t, dataprocessing.FieldHeadline, pf.Field)
	assert.Contains(t, err.Error(), "2020-04-13")
	assert.Equal(t, ErrorTypeExecution, GetErrorType(err))

	assert.Equal(t, RunStatusFailed, state.GetStatus())
	assert.Equal(t, StepStatusCompleted, state.GetStep(StepIDFetch).GetStatus())
	assert.Equal(t, StepStatusFailed, state.GetStep(StepIDParse).GetStatus())
	assert.Equal(t, StepStatusSkipped, state.GetStep(StepIDBuild).GetStatus())
	assert.Nil(t, state.Series())
	assert.Equal(t, int64(1), f.counter(t, "lacph_parse_failures_total", "field", dataprocessing.FieldHeadline))
}

func TestRunDateMismatchNamesDateField(t *testing.T) {
	texts := fixtureTexts(t)
	texts[fixtureDates[0]] = texts[fixtureDates[1]]
	f := newFixture(t, texts, nil)

	_, err := f.manager.Run(context.Background(), fixtureDates)
	var dm *apperrors.DateMismatch
	require.True(t, apperrors.As(err, &dm))
	assert.Equal(t, fixtureDates[0], dm.Expected)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name     string
		texts    map[domain.Date]string
		dates    []domain.Date
		cancel   bool
		wantType ErrorType
		wantRun  RunStatus
	}{
		{
			name:     "no dates",
			wantType: ErrorTypeValidation,
			wantRun:  RunStatusFailed,
		},
		{
			name:     "nothing fetched",
			texts:    map[domain.Date]string{},
			dates:    fixtureDates,
			wantType: ErrorTypeExecution,
			wantRun:  RunStatusFailed,
		},
		{
			name:     "cancelled",
			texts:    map[domain.Date]string{},
			dates:    fixtureDates,
			cancel:   true,
			wantType: ErrorTypeCancellation,
			wantRun:  RunStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.texts, nil)
			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			} else {
				defer cancel()
			}

			state, err := f.manager.Run(ctx, tt.dates)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, GetErrorType(err))
			assert.Equal(t, tt.wantRun, state.GetStatus())
			assert.Nil(t, state.Series())
		})
	}
}

func TestRunStepTimeout(t *testing.T) {
	cfg := NewConfig()
	cfg.SetStepTimeout(StepIDFetch, 20*time.Millisecond)
	f := newFixture(t, fixtureTexts(t), cfg)
	f.fetcher.delay = time.Second

	state, err := f.manager.Run(context.Background(), fixtureDates)
	require.Error(t, err)
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(err))
	assert.Equal(t, RunStatusCancelled, state.GetStatus())
	assert.Equal(t, StepStatusFailed, state.GetStep(StepIDFetch).GetStatus())
}

func TestFetchConcurrencyIsBounded(t *testing.T) {
	texts := fixtureTexts(t)
	var dates []domain.Date
	start := domain.MustParseDate("2020-08-01")
	for i := 0; i < 12; i++ {
		dates = append(dates, start.AddDays(i))
	}
	cfg := NewConfig()
	cfg.Concurrency = 2
	f := newFixture(t, texts, cfg)
	f.fetcher.delay = 5 * time.Millisecond

	state := NewRunState("t", append(dates, fixtureDates...))
	state.SetStep(StepIDFetch, NewStepState(StepIDFetch, "fetch"))
	step := NewFetchStep(f.fetcher, cfg.Concurrency, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	require.NoError(t, step.Execute(context.Background(), state))
	assert.LessOrEqual(t, f.fetcher.maxInFlight.Load(), int32(2))
	assert.Equal(t, 15, f.fetcher.calls, "every fetch joins")

	got := state.Bulletins()
	require.Len(t, got, 3)
	for i, b := range got {
		assert.Equal(t, fixtureDates[i], b.Date)
	}
	assert.Len(t, state.SkippedDates(), 12)
	assert.Equal(t, float64(100), state.GetStep(StepIDFetch).Progress)
}

func TestGetRun(t *testing.T) {
	f := newFixture(t, fixtureTexts(t), nil)
	state, err := f.manager.Run(context.Background(), fixtureDates[:1])
	require.NoError(t, err)

	snap, ok := f.manager.GetRun(state.ID)
	require.True(t, ok)
	assert.Equal(t, RunStatusCompleted, snap.Status)
	assert.Len(t, snap.Steps, 3)
	assert.Nil(t, snap.Series(), "snapshots carry no payload")

	_, ok = f.manager.GetRun("missing")
	assert.False(t, ok)
}

func TestParseBulletin(t *testing.T) {
	texts := fixtureTexts(t)
	f := newFixture(t, texts, nil)
	date := fixtureDates[1]

	r, err := f.manager.ParseBulletin(context.Background(), &bulletin.Bulletin{Date: date, Text: texts[date]})
	require.NoError(t, err)
	assert.Equal(t, domain.Known(420), r.NewCases)
	assert.Equal(t, 1, f.store.Len())

	_, err = f.manager.ParseBulletin(context.Background(), &bulletin.Bulletin{Date: date.AddDays(1), Text: "x"})
	assert.Error(t, err)
}

func TestBuildSeriesRejectsUnorderedReports(t *testing.T) {
	f := newFixture(t, nil, nil)
	r1 := domain.NewDailyReport(fixtureDates[1])
	r0 := domain.NewDailyReport(fixtureDates[0])

	_, err := f.manager.BuildSeries(context.Background(), []*domain.DailyReport{r1, r0})
	var oe *apperrors.OrderError
	require.True(t, apperrors.As(err, &oe), fmt.Sprint(err))
	assert.Equal(t, fixtureDates[0], oe.Date)
}
