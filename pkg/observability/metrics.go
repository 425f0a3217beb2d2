package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Counters
	researchRunsTotal      metric.Int64Counter
	subQueriesTotal        metric.Int64Counter
	subQueriesFailedTotal  metric.Int64Counter
	urlsDiscoveredTotal    metric.Int64Counter
	documentsScrapedTotal  metric.Int64Counter
	retrieverErrorsTotal   metric.Int64Counter
	llmRequestsTotal       metric.Int64Counter
	llmTokensUsedTotal     metric.Int64Counter
	researchCostTotal      metric.Float64Counter

	// Histograms
	researchDuration   metric.Float64Histogram
	subQueryDuration   metric.Float64Histogram
	retrieverDuration  metric.Float64Histogram
	llmRequestDuration metric.Float64Histogram

	// Gauges (using async instruments)
	activeRuns       metric.Int64ObservableGauge
	activeSubQueries metric.Int64ObservableGauge

	// Values for gauges (updated atomically by the pipeline)
	activeRunCount      atomic.Int64
	activeSubQueryCount atomic.Int64
}

// NewMetrics creates and initializes all metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{
		meter: meter,
	}

	var err error

	// Initialize counters
	m.researchRunsTotal, err = meter.Int64Counter(
		"research_runs_total",
		metric.WithDescription("Total number of research runs started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.subQueriesTotal, err = meter.Int64Counter(
		"subqueries_total",
		metric.WithDescription("Total number of sub-queries resolved"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.subQueriesFailedTotal, err = meter.Int64Counter(
		"subqueries_failed_total",
		metric.WithDescription("Total number of sub-queries that failed and were contained"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.urlsDiscoveredTotal, err = meter.Int64Counter(
		"urls_discovered_total",
		metric.WithDescription("Total number of new URLs admitted by the ledger"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.documentsScrapedTotal, err = meter.Int64Counter(
		"documents_scraped_total",
		metric.WithDescription("Total number of documents returned by scraping"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.retrieverErrorsTotal, err = meter.Int64Counter(
		"retriever_errors_total",
		metric.WithDescription("Total number of isolated retriever backend failures"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmTokensUsedTotal, err = meter.Int64Counter(
		"llm_tokens_used_total",
		metric.WithDescription("Total number of LLM tokens used"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.researchCostTotal, err = meter.Float64Counter(
		"research_cost_total",
		metric.WithDescription("Accumulated research cost in dollars"),
		metric.WithUnit("{dollar}"),
	)
	if err != nil {
		return nil, err
	}

	// Initialize histograms
	m.researchDuration, err = meter.Float64Histogram(
		"research_duration_seconds",
		metric.WithDescription("Duration of research runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.subQueryDuration, err = meter.Float64Histogram(
		"subquery_duration_seconds",
		metric.WithDescription("Duration of sub-query resolution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.retrieverDuration, err = meter.Float64Histogram(
		"retriever_search_duration_seconds",
		metric.WithDescription("Duration of retriever backend searches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("Duration of LLM requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	// Initialize gauges
	m.activeRuns, err = meter.Int64ObservableGauge(
		"active_research_runs",
		metric.WithDescription("Number of research runs in flight"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeRunCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	m.activeSubQueries, err = meter.Int64ObservableGauge(
		"active_subqueries",
		metric.WithDescription("Number of sub-queries currently resolving"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeSubQueryCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRunStarted records the start of a research run
func (m *Metrics) RecordRunStarted(ctx context.Context, reportSource string) {
	m.researchRunsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("report_source", reportSource),
		),
	)
	m.activeRunCount.Add(1)
}

// RecordRunComplete records completion of a research run
func (m *Metrics) RecordRunComplete(ctx context.Context, duration time.Duration, status string, cost float64) {
	m.researchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	if cost > 0 {
		m.researchCostTotal.Add(ctx, cost)
	}
	m.activeRunCount.Add(-1)
}

// RecordSubQueryStarted records the start of a sub-query resolution
func (m *Metrics) RecordSubQueryStarted(ctx context.Context) {
	m.activeSubQueryCount.Add(1)
}

// RecordSubQueryComplete records the outcome of a sub-query resolution
func (m *Metrics) RecordSubQueryComplete(ctx context.Context, duration time.Duration, status string) {
	m.subQueriesTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	if status != "success" {
		m.subQueriesFailedTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("reason", status),
			),
		)
	}
	m.subQueryDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
	m.activeSubQueryCount.Add(-1)
}

// RecordURLsDiscovered records new URLs admitted by the ledger
func (m *Metrics) RecordURLsDiscovered(ctx context.Context, count int) {
	if count > 0 {
		m.urlsDiscoveredTotal.Add(ctx, int64(count))
	}
}

// RecordDocumentsScraped records documents returned by a scrape pass
func (m *Metrics) RecordDocumentsScraped(ctx context.Context, count int) {
	if count > 0 {
		m.documentsScrapedTotal.Add(ctx, int64(count))
	}
}

// RecordRetrieverSearch records a retriever backend search
func (m *Metrics) RecordRetrieverSearch(ctx context.Context, backend string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		m.retrieverErrorsTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("backend", backend),
			),
		)
	}
	m.retrieverDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("status", status),
		),
	)
}

// RecordLLMRequest records an LLM request
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration) {
	m.llmRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)

	m.llmTokensUsedTotal.Add(ctx, promptTokens+completionTokens,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("type", "total"),
		),
	)

	m.llmRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)
}

// GetActiveRunCount returns the current number of in-flight research runs
func (m *Metrics) GetActiveRunCount() int64 {
	return m.activeRunCount.Load()
}

// GetActiveSubQueryCount returns the current number of resolving sub-queries
func (m *Metrics) GetActiveSubQueryCount() int64 {
	return m.activeSubQueryCount.Load()
}
