package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
	"github.com/openresearch/conductor/pkg/state"
)

// Orchestrator resolves a primary query into research context: it obtains
// the sub-query plan, resolves every sub-query concurrently through
// discovery, scraping and relevance filtering (or directly against a
// scraped hint or the vector store), and joins the surviving fragments.
//
// Failure containment follows the pipeline's taxonomy: a planning failure
// aborts the whole pass, while a failing sub-query only contributes an
// empty fragment.
type Orchestrator struct {
	planner     domain.Planner
	fanout      *RetrieverFanout
	scraper     domain.Scraper
	filter      domain.ContextFilter
	vectorStore domain.VectorStore
	sink        domain.NotificationSink

	maxConcurrency int64

	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	logger    *observability.StructuredLogger
}

// OrchestratorOptions configures an Orchestrator
type OrchestratorOptions struct {
	Planner        domain.Planner
	Fanout         *RetrieverFanout
	Scraper        domain.Scraper
	Filter         domain.ContextFilter
	VectorStore    domain.VectorStore // optional
	Sink           domain.NotificationSink
	MaxConcurrency int
	Telemetry      *observability.Telemetry
	Metrics        *observability.Metrics
}

// NewOrchestrator creates a sub-query orchestrator
func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if opts.Fanout == nil {
		return nil, fmt.Errorf("retriever fanout is required")
	}
	if opts.Scraper == nil {
		return nil, fmt.Errorf("scraper is required")
	}
	if opts.Filter == nil {
		return nil, fmt.Errorf("context filter is required")
	}
	if opts.Sink == nil {
		opts.Sink = domain.NopSink{}
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 5
	}

	return &Orchestrator{
		planner:        opts.Planner,
		fanout:         opts.Fanout,
		scraper:        opts.Scraper,
		filter:         opts.Filter,
		vectorStore:    opts.VectorStore,
		sink:           opts.Sink,
		maxConcurrency: int64(opts.MaxConcurrency),
		telemetry:      opts.Telemetry,
		metrics:        opts.Metrics,
		logger:         observability.NewStructuredLogger("orchestrator"),
	}, nil
}

// Resolve produces the research context for query. When scrapedHint is
// non-empty, discovery and scraping are bypassed and every sub-query is
// filtered directly against the hint. documentContext optionally steers
// planning with a preview of loaded documents.
func (o *Orchestrator) Resolve(ctx context.Context, run *state.RunState, query string, scrapedHint []domain.Document, queryDomains []string, documentContext string) (string, error) {
	subQueries, err := o.planSubQueries(ctx, run, query, queryDomains, documentContext)
	if err != nil {
		return "", err
	}

	fragments := o.resolveAll(ctx, run, subQueries, func(ctx context.Context, subQuery string) (string, error) {
		return o.resolveSubQuery(ctx, run, subQuery, scrapedHint, queryDomains)
	})

	return joinFragments(fragments), nil
}

// ResolveWithVectorStore produces the research context for query by
// resolving each planned sub-query against the vector store instead of
// scraping the web.
func (o *Orchestrator) ResolveWithVectorStore(ctx context.Context, run *state.RunState, query string, filter []string) (string, error) {
	if o.vectorStore == nil {
		return "", fmt.Errorf("no vector store configured")
	}

	subQueries, err := o.planSubQueries(ctx, run, query, nil, "")
	if err != nil {
		return "", err
	}

	fragments := o.resolveAll(ctx, run, subQueries, func(ctx context.Context, subQuery string) (string, error) {
		if run.Task.Verbose {
			o.sink.Notify(ctx, domain.EventRunningSubQuery,
				fmt.Sprintf("🔍 Running research for '%s'...", subQuery), nil)
		}
		return o.vectorStore.Query(ctx, subQuery, filter)
	})

	return joinFragments(fragments), nil
}

// planSubQueries obtains the sub-query plan and appends the primary query
// unless this run is a subtopic pass, so the literal query is always
// represented alongside its decomposition.
func (o *Orchestrator) planSubQueries(ctx context.Context, run *state.RunState, query string, queryDomains []string, documentContext string) ([]string, error) {
	if run.Task.Verbose {
		o.sink.Notify(ctx, domain.EventPlanningResearch,
			fmt.Sprintf("🌐 Browsing the web to learn more about the task: %s...", query), nil)
	}

	var subQueries []string
	var err error
	if costAware, ok := o.planner.(domain.CostAwarePlanner); ok {
		subQueries, err = costAware.PlanWithCosts(ctx, query, queryDomains, documentContext, run.Costs)
	} else {
		subQueries, err = o.planner.Plan(ctx, query, queryDomains, documentContext)
	}
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	if run.Task.ReportType != domain.ReportTypeSubtopic {
		subQueries = append(subQueries, query)
	}

	o.logger.Info(ctx, "Research plan ready",
		map[string]interface{}{
			"query":       query,
			"sub_queries": subQueries,
		},
	)
	if run.Task.Verbose {
		o.sink.Notify(ctx, domain.EventSubQueries,
			fmt.Sprintf("🗂️ I will conduct my research based on the following queries: %v...", subQueries),
			subQueries)
	}

	return subQueries, nil
}

// resolveAll resolves every sub-query concurrently, bounded by the
// configured concurrency, and gathers results positionally so the fragment
// order follows submission order regardless of completion order. A
// sub-query whose resolution fails contributes an empty fragment.
func (o *Orchestrator) resolveAll(ctx context.Context, run *state.RunState, subQueries []string, resolve func(context.Context, string) (string, error)) []string {
	fragments := make([]string, len(subQueries))
	sem := semaphore.NewWeighted(o.maxConcurrency)

	var wg sync.WaitGroup
	for i, subQuery := range subQueries {
		wg.Add(1)
		go func(idx int, sq string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				o.logger.Warn(ctx, "Sub-query skipped, context done",
					map[string]interface{}{"sub_query": sq})
				return
			}
			defer sem.Release(1)

			if o.metrics != nil {
				o.metrics.RecordSubQueryStarted(ctx)
			}
			startTime := time.Now()

			var content string
			work := func(ctx context.Context) error {
				var err error
				content, err = resolve(ctx, sq)
				return err
			}

			var err error
			if o.telemetry != nil {
				err = o.telemetry.InstrumentSubQuery(ctx, sq, work)
			} else {
				err = work(ctx)
			}

			status := "success"
			if err != nil {
				// Contained: one bad sub-query must not fail the batch.
				status = "error"
				o.logger.Error(ctx, "Sub-query resolution failed", err,
					map[string]interface{}{"sub_query": sq})
				content = ""
			}
			if o.metrics != nil {
				o.metrics.RecordSubQueryComplete(ctx, time.Since(startTime), status)
			}

			fragments[idx] = content
		}(i, subQuery)
	}
	wg.Wait()

	return fragments
}

// resolveSubQuery runs the discovery → scrape → filter chain for one
// sub-query, or filters directly against the hint when one was supplied.
func (o *Orchestrator) resolveSubQuery(ctx context.Context, run *state.RunState, subQuery string, scrapedHint []domain.Document, queryDomains []string) (string, error) {
	if run.Task.Verbose {
		o.sink.Notify(ctx, domain.EventRunningSubQuery,
			fmt.Sprintf("🔍 Running research for '%s'...", subQuery), nil)
	}

	documents := scrapedHint
	if len(documents) == 0 {
		var err error
		documents, err = o.scrapeByQuery(ctx, run, subQuery, queryDomains)
		if err != nil {
			return "", err
		}
	}

	content, err := o.filter.Filter(ctx, subQuery, documents)
	if err != nil {
		return "", fmt.Errorf("context filtering failed: %w", err)
	}

	if content == "" && run.Task.Verbose {
		o.sink.Notify(ctx, domain.EventSubQueryNoContent,
			fmt.Sprintf("🤷 No content found for '%s'...", subQuery), nil)
	}

	return content, nil
}

// scrapeByQuery discovers fresh URLs for the sub-query and hands them to
// the scraper. Scraped content is also loaded into the vector store when
// one is configured.
func (o *Orchestrator) scrapeByQuery(ctx context.Context, run *state.RunState, subQuery string, queryDomains []string) ([]domain.Document, error) {
	urls := o.fanout.Discover(ctx, run, subQuery, queryDomains)

	documents, err := o.scraper.Browse(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("scraping failed: %w", err)
	}
	if o.metrics != nil {
		o.metrics.RecordDocumentsScraped(ctx, len(documents))
	}

	if o.vectorStore != nil && len(documents) > 0 {
		if err := o.vectorStore.Load(ctx, documents); err != nil {
			// Indexing is best-effort; the scrape results still flow on.
			o.logger.Warn(ctx, "Vector store load failed",
				map[string]interface{}{"error": err.Error()})
		}
	}

	return documents, nil
}

// joinFragments drops empty fragments and joins the rest with a single
// space, preserving submission order.
func joinFragments(fragments []string) string {
	var nonEmpty []string
	for _, fragment := range fragments {
		if fragment != "" {
			nonEmpty = append(nonEmpty, fragment)
		}
	}
	return strings.Join(nonEmpty, " ")
}
