package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"lacphcli/internal/bulletin"
	"lacphcli/internal/config"
	"lacphcli/internal/corrections"
	"lacphcli/internal/dataprocessing"
	apperrors "lacphcli/internal/errors"
	"lacphcli/internal/exporter"
	"lacphcli/internal/infrastructure"
	"lacphcli/internal/operations"
	"lacphcli/internal/population"
	"lacphcli/internal/regions"
	"lacphcli/internal/services"
	"lacphcli/internal/store"
	"lacphcli/internal/timeseries"
	handlers "lacphcli/internal/transport/http"
	"lacphcli/internal/validation"
	"lacphcli/pkg/contracts"
	"lacphcli/pkg/contracts/domain"
)

// AppName names the application in logs and telemetry.
const AppName = "lacph"

// Options overrides collaborators normally built from the configuration.
type Options struct {
	// Logger replaces the process logger built from cfg.Logging.
	Logger *slog.Logger
	// Fetcher replaces the configured bulletin source.
	Fetcher bulletin.Fetcher
}

// Application represents the main application container
type Application struct {
	Config   *config.Config
	Paths    *config.Paths
	Logger   *slog.Logger
	OTel     *infrastructure.OTelProviders
	Metrics  *infrastructure.PipelineMetrics
	Rules    *corrections.RuleSet
	Store    store.Store
	Fetcher  bulletin.Fetcher
	Parser   *dataprocessing.Parser
	Manager  *operations.Manager
	Series   *services.SeriesService
	Health   *services.HealthService
	Exporter *exporter.SeriesExporter

	closers []func(context.Context) error
}

// New wires every component from cfg. The caller must Close the
// application.
func New(cfg *config.Config, opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version))

	paths := cfg.Layout()
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	a := &Application{
		Config: cfg,
		Paths:  paths,
		Logger: logger,
	}
	if err := a.initialize(opts); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *Application) initialize(opts Options) error {
	cfg := a.Config

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTel = otelProviders
	a.closers = append(a.closers, otelProviders.Shutdown)

	a.Metrics, err = infrastructure.NewPipelineMetrics(otelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	a.Rules, err = loadRules(cfg.Rules.File)
	if err != nil {
		return err
	}
	stats := a.Rules.Stats()
	a.Logger.Info("correction rules loaded",
		slog.String("rule_version", a.Rules.Version()),
		slog.Int("substitutions", stats.Substitutions),
		slog.Int("headlines", stats.Headlines),
		slog.Int("no_reports", stats.NoReports))

	ref, err := loadPopulation(cfg.Population.File)
	if err != nil {
		return err
	}
	regionMap, err := loadRegions(cfg.Regions.File)
	if err != nil {
		return err
	}

	if err := a.openStore(); err != nil {
		return err
	}

	a.Fetcher = opts.Fetcher
	if a.Fetcher == nil {
		if a.Fetcher, err = a.newFetcher(); err != nil {
			return err
		}
	}

	a.Parser = dataprocessing.NewParser(a.Rules, dataprocessing.DefaultEras(), a.Logger)

	seriesOpts := timeseries.DefaultOptions()
	seriesOpts.ActiveWindowDays = cfg.Series.ActiveWindowDays
	seriesOpts.ActiveMinDays = cfg.Series.ActiveMinDays
	builder := timeseries.NewBuilder(ref, a.Rules, seriesOpts, a.Logger)

	opsConfig := operations.NewConfig()
	opsConfig.Concurrency = cfg.Fetch.Concurrency

	a.Manager = operations.NewManager(operations.Dependencies{
		Fetcher: a.Fetcher,
		Parser:  a.Parser,
		Store:   a.Store,
		Builder: builder,
		Regions: regions.NewAggregator(regionMap, builder, a.Rules, ref.For(domain.CategoryRegion), a.Logger),
		Metrics: a.Metrics,
		Tracer:  otelProviders.Tracer,
		Logger:  a.Logger,
	}, opsConfig)

	a.Series = services.NewSeriesService(a.Store, a.Parser.RuleVersion(), a.Manager.BuildSeries, a.Logger)
	a.Health = services.NewHealthService(contracts.Version, a.Parser.RuleVersion(), a.Store, a.Logger)
	a.Exporter = exporter.NewSeriesExporter(a.Paths, a.Logger)
	return nil
}

func loadRules(path string) (*corrections.RuleSet, error) {
	if path == "" {
		return corrections.Default()
	}
	rules, err := corrections.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load correction rules: %w", err)
	}
	return rules, nil
}

func loadPopulation(path string) (*population.Reference, error) {
	if path == "" {
		return population.Default()
	}
	ref, err := population.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load population tables: %w", err)
	}
	return ref, nil
}

func loadRegions(path string) (*regions.Map, error) {
	if path == "" {
		return regions.DefaultMap()
	}
	m, err := regions.LoadMap(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load region map: %w", err)
	}
	return m, nil
}

func (a *Application) openStore() error {
	switch a.Config.Store.Driver {
	case "sqlite":
		s, err := store.OpenSQLite(a.Paths.StoreFile)
		if err != nil {
			return fmt.Errorf("failed to open report store: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
	default:
		a.Store = store.NewMemoryStore()
	}
	a.Logger.Info("report store opened", slog.String("driver", a.Config.Store.Driver))
	return nil
}

// newFetcher builds the configured source. Downloads from the site are
// cached as text under the bulletin cache directory.
func (a *Application) newFetcher() (bulletin.Fetcher, error) {
	cache := bulletin.NewDirFetcher(a.Paths.CacheDir)
	if a.Config.Fetch.Source == "dir" {
		return cache, nil
	}

	if a.Config.Fetch.IndexFile == "" {
		return nil, apperrors.NewConfigError("fetch.index_file is required for the http source", nil)
	}
	index, err := bulletin.LoadIndex(a.Config.Fetch.IndexFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load announcement index: %w", err)
	}
	origin := bulletin.NewHTTPFetcher(index, bulletin.HTTPOptions{
		BaseURL:   a.Config.Fetch.BaseURL,
		Timeout:   a.Config.Fetch.Timeout,
		RPS:       a.Config.Fetch.RPS,
		Burst:     a.Config.Fetch.Burst,
		UserAgent: a.Config.Fetch.UserAgent,
	}, a.Logger)
	return bulletin.NewCachedFetcher(cache, origin, a.Logger), nil
}

// Dates resolves the dates of a run. Zero bounds are taken from the dates
// the fetcher can serve.
func (a *Application) Dates(ctx context.Context, from, to domain.Date) ([]domain.Date, error) {
	if !from.IsZero() && !to.IsZero() {
		if to.Before(from) {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("range end %s precedes start %s", to, from))
		}
		return DateRange(from, to), nil
	}

	lister, ok := a.Fetcher.(bulletin.Lister)
	if !ok {
		return nil, apperrors.NewAppValidationError("both range bounds are required for this source")
	}
	available, err := lister.Dates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available bulletins: %w", err)
	}
	var dates []domain.Date
	for _, d := range available {
		if (!from.IsZero() && d.Before(from)) || (!to.IsZero() && d.After(to)) {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// DateRange returns every date from from through to.
func DateRange(from, to domain.Date) []domain.Date {
	var dates []domain.Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// RunResult is the outcome of RunPipeline.
type RunResult struct {
	Run      *operations.RunState
	Files    []string
	Snapshot string
}

// RunPipeline fetches, parses and builds dates, then exports the series and
// snapshots the stored reports of the rule version in force.
func (a *Application) RunPipeline(ctx context.Context, dates []domain.Date, export exporter.Options) (*RunResult, error) {
	run, err := a.Manager.Run(ctx, dates)
	result := &RunResult{Run: run}
	if err != nil {
		return result, err
	}

	for _, skipped := range run.SkippedDates() {
		a.Logger.WarnContext(ctx, "date skipped",
			slog.String("date", skipped.Date.String()),
			slog.String("reason", skipped.Reason))
	}

	if export.CSV || export.Workbook {
		files, err := a.Exporter.Export(ctx, run.Series(), export)
		result.Files = files
		if err != nil {
			return result, fmt.Errorf("export series: %w", err)
		}
	}

	version := a.Parser.RuleVersion()
	path := a.Paths.SnapshotPath(version)
	if err := store.WriteSnapshot(ctx, a.Store, version, path); err != nil {
		return result, fmt.Errorf("write snapshot: %w", err)
	}
	result.Snapshot = path
	return result, nil
}

// ParseFile parses one bulletin file as the bulletin of date. HTML files
// are converted to text first.
func (a *Application) ParseFile(ctx context.Context, date domain.Date, path string) (*domain.DailyReport, error) {
	if err := validation.NewFileValidator(a.Logger).ValidateBulletinFile(path); err != nil {
		return nil, apperrors.NewAppValidationError(err.Error()).WithContext("path", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("read bulletin file", err).WithContext("path", path)
	}

	text := string(data)
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".html" || ext == ".htm" {
		if text, err = bulletin.HTMLToText(strings.NewReader(text)); err != nil {
			return nil, apperrors.NewParsingError("converting bulletin HTML", err).WithContext("path", path)
		}
	}

	return a.Manager.ParseBulletin(ctx, &bulletin.Bulletin{
		Date:     date,
		Text:     text,
		Source:   "file",
		Location: path,
	})
}

// LoadSnapshot fills the store from the snapshot of the rule version in
// force. A missing snapshot loads nothing.
func (a *Application) LoadSnapshot(ctx context.Context) (int, error) {
	path := a.Paths.SnapshotPath(a.Parser.RuleVersion())
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	snap, err := store.ReadSnapshot(ctx, a.Store, path)
	if err != nil {
		return 0, err
	}
	a.Logger.InfoContext(ctx, "snapshot loaded",
		slog.String("path", path),
		slog.Int("reports", len(snap.Reports)))
	return len(snap.Reports), nil
}

// Handler returns the HTTP API over the stored reports.
func (a *Application) Handler() http.Handler {
	return handlers.NewRouter(handlers.RouterConfig{
		Series:   a.Series,
		Health:   a.Health,
		Metrics:  a.OTel.PrometheusHTTP,
		Tracer:   a.OTel.Tracer,
		Pipeline: a.Metrics,
		Logger:   a.Logger,
	})
}

// Serve runs the HTTP API on addr until ctx is done. An empty addr uses
// the configured one. The in-memory store is first filled from the last
// snapshot.
func (a *Application) Serve(ctx context.Context, addr string) error {
	if _, ok := a.Store.(*store.MemoryStore); ok {
		if _, err := a.LoadSnapshot(ctx); err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}
	serverCfg := a.Config.Server
	if addr != "" {
		serverCfg.Addr = addr
	}
	return handlers.NewServer(serverCfg, a.Handler(), a.Logger).Run(ctx)
}

// Close releases the store and flushes telemetry.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
