package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"lacphcli/internal/config"
)

const (
	ServiceName    = "lacph"
	ServiceVersion = "1.0.0"
	MeterName      = "lacphcli"
)

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics per cfg and installs the
// providers globally. Disabled exporters leave the global no-op providers
// in place.
func InitializeOTel(cfg config.TelemetryConfig, logger *slog.Logger) (*OTelProviders, error) {
	if logger == nil {
		logger = GetLogger()
	}
	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{Logger: logger}

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		)
		providers.TracerProvider = tp
		otel.SetTracerProvider(tp)
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}
	providers.Tracer = otel.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))

	switch cfg.MetricExporter {
	case "prometheus":
		registry := prom.NewRegistry()
		exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		otel.SetMeterProvider(mp)
	case "none", "":
	default:
		return nil, fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}
	providers.Meter = otel.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("environment", cfg.Environment),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))
	return providers, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

// PipelineMetrics holds the application counters and histograms. A nil
// *PipelineMetrics records nothing.
type PipelineMetrics struct {
	ReportsParsed      metric.Int64Counter
	ParseFailures      metric.Int64Counter
	StoreLookups       metric.Int64Counter
	CorrectionsApplied metric.Int64Counter
	PointsBuilt        metric.Int64Counter
	FetchRequests      metric.Int64Counter
	FetchDuration      metric.Float64Histogram
	StepDuration       metric.Float64Histogram
	RunsTotal          metric.Int64Counter
	HTTPRequestsTotal  metric.Int64Counter
	HTTPDuration       metric.Float64Histogram
}

// NewPipelineMetrics creates the application instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.ReportsParsed, "lacph_reports_parsed_total", "Bulletins parsed into daily reports"},
		{&m.ParseFailures, "lacph_parse_failures_total", "Bulletins that failed to parse"},
		{&m.StoreLookups, "lacph_store_lookups_total", "Report store lookups by result"},
		{&m.CorrectionsApplied, "lacph_corrections_applied_total", "Correction rules applied while parsing"},
		{&m.PointsBuilt, "lacph_points_built_total", "Series points derived per category"},
		{&m.FetchRequests, "lacph_fetch_requests_total", "Bulletin fetches by status"},
		{&m.RunsTotal, "lacph_runs_total", "Pipeline runs by status"},
		{&m.HTTPRequestsTotal, "lacph_http_requests_total", "HTTP requests served"},
	}
	for _, c := range counters {
		inst, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = inst
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.FetchDuration, "lacph_fetch_duration_seconds", "Bulletin fetch duration"},
		{&m.StepDuration, "lacph_step_duration_seconds", "Pipeline step duration"},
		{&m.HTTPDuration, "lacph_http_request_duration_seconds", "HTTP request duration"},
	}
	for _, h := range histograms {
		inst, err := meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s"))
		if err != nil {
			return nil, fmt.Errorf("create histogram %s: %w", h.name, err)
		}
		*h.dst = inst
	}
	return m, nil
}

// RecordParse counts one parse outcome. field is the failing field path, or
// empty on success.
func (m *PipelineMetrics) RecordParse(ctx context.Context, ruleVersion string, corrections int, field string) {
	if m == nil {
		return
	}
	if field != "" {
		m.ParseFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("field", field)))
		return
	}
	attrs := metric.WithAttributes(attribute.String("rule_version", ruleVersion))
	m.ReportsParsed.Add(ctx, 1, attrs)
	if corrections > 0 {
		m.CorrectionsApplied.Add(ctx, int64(corrections), attrs)
	}
}

// RecordStoreLookup counts a memoized store lookup.
func (m *PipelineMetrics) RecordStoreLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.StoreLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordPoints counts derived points of a category.
func (m *PipelineMetrics) RecordPoints(ctx context.Context, category string, n int) {
	if m == nil {
		return
	}
	m.PointsBuilt.Add(ctx, int64(n), metric.WithAttributes(attribute.String("category", category)))
}

// RecordFetch counts one bulletin fetch.
func (m *PipelineMetrics) RecordFetch(ctx context.Context, source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("status", statusOf(err)),
	)
	m.FetchRequests.Add(ctx, 1, attrs)
	m.FetchDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStep records the duration of a pipeline step.
func (m *PipelineMetrics) RecordStep(ctx context.Context, step string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("step", step),
		attribute.String("status", statusOf(err)),
	))
}

// RecordRun counts a finished pipeline run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.RunsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", statusOf(err))))
}

// RecordHTTP counts one served request.
func (m *PipelineMetrics) RecordHTTP(ctx context.Context, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPDuration.Record(ctx, d.Seconds(), attrs)
}

func statusOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from context
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
