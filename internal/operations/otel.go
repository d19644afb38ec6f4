package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "lacphcli.operations"
)

// runTracer creates the spans of a run.
type runTracer struct {
	tracer trace.Tracer
}

func newRunTracer(tracer trace.Tracer) *runTracer {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return &runTracer{tracer: tracer}
}

// traceRun creates a span for the entire run
func (t *runTracer) traceRun(ctx context.Context, state *RunState) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("run.id", state.ID),
		attribute.Int("run.dates", len(state.Dates)),
	}
	if n := len(state.Dates); n > 0 {
		attrs = append(attrs,
			attribute.String("run.from_date", state.Dates[0].String()),
			attribute.String("run.to_date", state.Dates[n-1].String()))
	}
	return t.tracer.Start(ctx, "run.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// traceStep creates a span for one step of a run
func (t *runTracer) traceStep(ctx context.Context, runID, stepID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "run.step."+stepID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("step.id", stepID),
		),
	)
}

// finishSpan records the outcome on span and ends it.
func finishSpan(span trace.Span, err error, d time.Duration) {
	span.SetAttributes(attribute.Float64("duration_seconds", d.Seconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
