package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentSubQuery wraps the resolution of one sub-query with a span
func (t *Telemetry) InstrumentSubQuery(ctx context.Context, subQuery string, fn func(context.Context) error) error {
	ctx, span := t.StartSpan(ctx, "research.subquery",
		trace.WithAttributes(
			attribute.String("subquery", subQuery),
		),
	)
	defer span.End()

	startTime := time.Now()

	err := fn(ctx)

	duration := time.Since(startTime)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentRetrieverSearch wraps a retriever backend search with a span
func (t *Telemetry) InstrumentRetrieverSearch(ctx context.Context, backend, query string, fn func(context.Context) (urls int, err error)) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("retriever.%s", backend),
		trace.WithAttributes(
			attribute.String("retriever.backend", backend),
			attribute.String("query", query),
		),
	)
	defer span.End()

	startTime := time.Now()

	urls, err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("retriever.result_count", urls),
		)
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// StartResearchRun starts the root span for a research run
func (t *Telemetry) StartResearchRun(ctx context.Context, taskID, reportSource, query string) (context.Context, trace.Span) {
	ctx, span := t.StartSpan(ctx, "research.run",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("report_source", reportSource),
			attribute.Int("query.length", len(query)),
		),
	)

	span.SetAttributes(
		attribute.String("query.complexity", estimateComplexity(query)),
	)

	return ctx, span
}

// estimateComplexity gives a coarse query size classification for span attributes
func estimateComplexity(query string) string {
	if len(query) < 50 {
		return "low"
	} else if len(query) < 200 {
		return "medium"
	}
	return "high"
}
