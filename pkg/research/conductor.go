package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
	"github.com/openresearch/conductor/pkg/state"
)

// Conductor runs the research conduction pipeline end to end. It owns the
// dispatch on the task's report source, the explicit-URL path, optional
// source curation, and the run bookkeeping (visited URLs, cost, telemetry).
// Every run gets fresh state; nothing carries over between runs.
type Conductor struct {
	orchestrator *Orchestrator
	scraper      domain.Scraper
	filter       domain.ContextFilter
	localLoader  domain.DocumentLoader
	onlineLoader func(urls []string) domain.DocumentLoader
	vectorStore  domain.VectorStore
	curator      domain.SourceCurator
	joinPolicy   domain.JoinPolicy
	sink         domain.NotificationSink

	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	logger    *observability.StructuredLogger
}

// ConductorOptions configures a Conductor. Orchestrator, Scraper and Filter
// are required; the rest depend on which report sources the caller uses.
type ConductorOptions struct {
	Orchestrator *Orchestrator
	Scraper      domain.Scraper
	Filter       domain.ContextFilter
	LocalLoader  domain.DocumentLoader
	OnlineLoader func(urls []string) domain.DocumentLoader
	VectorStore  domain.VectorStore
	Curator      domain.SourceCurator
	JoinPolicy   domain.JoinPolicy
	Sink         domain.NotificationSink
	Telemetry    *observability.Telemetry
	Metrics      *observability.Metrics
}

// NewConductor creates a research conductor
func NewConductor(opts ConductorOptions) (*Conductor, error) {
	if opts.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
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
	if opts.JoinPolicy == nil {
		opts.JoinPolicy = defaultJoinPolicy{}
	}

	return &Conductor{
		orchestrator: opts.Orchestrator,
		scraper:      opts.Scraper,
		filter:       opts.Filter,
		localLoader:  opts.LocalLoader,
		onlineLoader: opts.OnlineLoader,
		vectorStore:  opts.VectorStore,
		curator:      opts.Curator,
		joinPolicy:   opts.JoinPolicy,
		sink:         opts.Sink,
		telemetry:    opts.Telemetry,
		metrics:      opts.Metrics,
		logger:       observability.NewStructuredLogger("conductor"),
	}, nil
}

// RunResult is the outcome of one research run
type RunResult struct {
	TaskID      string
	Context     string
	Cost        float64
	VisitedURLs []string
	Duration    time.Duration
}

// ConductResearch runs the full pipeline for a task and returns the
// assembled research context. Strategy selection: explicit source URLs take
// precedence; otherwise the task's report source decides.
func (c *Conductor) ConductResearch(ctx context.Context, task *domain.ResearchTask) (*RunResult, error) {
	run := state.NewRunState(task)
	startTime := time.Now()

	var runSpan trace.Span
	if c.telemetry != nil {
		ctx, runSpan = c.telemetry.StartResearchRun(ctx, task.ID, string(task.ReportSource), task.Query)
		defer runSpan.End()
	}
	if c.metrics != nil {
		c.metrics.RecordRunStarted(ctx, string(task.ReportSource))
	}

	c.logger.Info(ctx, "Starting research run",
		map[string]interface{}{
			"task_id":       task.ID,
			"query":         task.Query,
			"report_source": string(task.ReportSource),
		},
	)
	if task.Verbose {
		c.sink.Notify(ctx, domain.EventStartingResearch,
			fmt.Sprintf("🔎 Starting the research task for '%s'...", task.Query), nil)
	}

	researchContext, err := c.conduct(ctx, run)

	duration := time.Since(startTime)
	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRunComplete(ctx, duration, status, run.Costs.Total())
	}
	if runSpan != nil {
		runSpan.SetAttributes(
			attribute.Float64("research.cost", run.Costs.Total()),
			attribute.Int("research.visited_urls", run.Ledger.Len()),
		)
		if err != nil {
			runSpan.RecordError(err)
			runSpan.SetStatus(codes.Error, err.Error())
		} else {
			runSpan.SetStatus(codes.Ok, "")
		}
	}

	if err != nil {
		c.logger.Error(ctx, "Research run failed", err,
			map[string]interface{}{"task_id": task.ID})
		return nil, err
	}

	researchContext = c.curate(ctx, run, researchContext)
	run.SetContext([]string{researchContext})

	c.logger.Info(ctx, "Research run complete",
		map[string]interface{}{
			"task_id":        task.ID,
			"context_length": len(researchContext),
			"visited_urls":   run.Ledger.Len(),
			"cost":           run.Costs.Total(),
			"duration_ms":    duration.Milliseconds(),
		},
	)
	if task.Verbose {
		c.sink.Notify(ctx, domain.EventResearchStepFinished,
			fmt.Sprintf("Finalized research step.\n💸 Total Research Costs: $%.6f", run.Costs.Total()),
			run.Costs.Total())
	}

	return &RunResult{
		TaskID:      task.ID,
		Context:     researchContext,
		Cost:        run.Costs.Total(),
		VisitedURLs: run.Ledger.Snapshot(),
		Duration:    duration,
	}, nil
}

// conduct selects and runs the retrieval strategy
func (c *Conductor) conduct(ctx context.Context, run *state.RunState) (string, error) {
	task := run.Task

	if len(task.SourceURLs) > 0 {
		return c.contextByProvidedURLs(ctx, run)
	}

	switch task.ReportSource {
	case domain.ReportSourceWeb, "":
		return c.orchestrator.Resolve(ctx, run, task.Query, nil, task.QueryDomains, "")

	case domain.ReportSourceLocal:
		return c.contextFromLocalDocuments(ctx, run)

	case domain.ReportSourceHybrid:
		return c.contextByHybrid(ctx, run)

	case domain.ReportSourceOnlineDocs:
		return c.contextFromOnlineDocuments(ctx, run)

	case domain.ReportSourceProvided:
		return c.contextFromProvidedDocuments(ctx, run)

	case domain.ReportSourceVectorStore:
		if task.Verbose {
			c.sink.Notify(ctx, domain.EventAnsweringFromMemory,
				"📚 Answering from the configured vector store...", nil)
		}
		return c.orchestrator.ResolveWithVectorStore(ctx, run, task.Query, task.VectorStoreFilter)

	default:
		return "", fmt.Errorf("unknown report source: %q", task.ReportSource)
	}
}

// contextByProvidedURLs scrapes the caller's URLs and filters the result
// against the primary query, without planning sub-queries. With
// complement_source_urls set, a regular web-search pass is appended.
func (c *Conductor) contextByProvidedURLs(ctx context.Context, run *state.RunState) (string, error) {
	task := run.Task

	c.logger.Info(ctx, "Using provided source URLs",
		map[string]interface{}{"url_count": len(task.SourceURLs)})

	fresh := run.Ledger.Register(task.SourceURLs)
	if task.Verbose {
		for _, url := range fresh {
			c.sink.Notify(ctx, domain.EventAddedSourceURL,
				fmt.Sprintf("✅ Added source url to research: %s", url), url)
		}
	}

	documents, err := c.scraper.Browse(ctx, fresh)
	if err != nil {
		return "", fmt.Errorf("scraping source urls failed: %w", err)
	}
	if c.metrics != nil {
		c.metrics.RecordDocumentsScraped(ctx, len(documents))
	}
	c.ingest(ctx, documents)

	urlContext, err := c.filter.Filter(ctx, task.Query, documents)
	if err != nil {
		return "", fmt.Errorf("context filtering failed: %w", err)
	}

	if !task.ComplementSourceURLs {
		return urlContext, nil
	}

	webContext, err := c.orchestrator.Resolve(ctx, run, task.Query, nil, task.QueryDomains, "")
	if err != nil {
		return "", err
	}

	return joinFragments([]string{urlContext, webContext}), nil
}

// contextFromLocalDocuments loads the configured document path and returns
// every document verbatim. No relevance filtering applies here: the caller
// asked for their own documents, so they get all of them.
func (c *Conductor) contextFromLocalDocuments(ctx context.Context, run *state.RunState) (string, error) {
	if c.localLoader == nil {
		return "", fmt.Errorf("no document loader configured")
	}

	documents, err := c.localLoader.Load(ctx)
	if err != nil {
		if run.Task.Verbose && errors.Is(err, domain.ErrNoDocuments) {
			c.sink.Notify(ctx, domain.EventNoLocalContent,
				"No local documents were found to research against.", nil)
		}
		return "", fmt.Errorf("loading local documents failed: %w", err)
	}
	c.ingest(ctx, documents)

	formatted := make([]string, 0, len(documents))
	for _, doc := range documents {
		formatted = append(formatted,
			fmt.Sprintf("Source: %s\nTitle: %s\nContent: %s\n", doc.Source, doc.Source, doc.RawContent))
	}
	return strings.Join(formatted, "\n"), nil
}

// contextByHybrid runs the document leg and the web leg against the same
// sub-query plan context and combines them through the join policy.
func (c *Conductor) contextByHybrid(ctx context.Context, run *state.RunState) (string, error) {
	task := run.Task

	documents, err := c.loadHybridDocuments(ctx, task)
	if err != nil {
		return "", err
	}
	c.ingest(ctx, documents)

	preview := documentPreview(documents)

	docsContext, err := c.orchestrator.Resolve(ctx, run, task.Query, documents, task.QueryDomains, preview)
	if err != nil {
		return "", err
	}
	webContext, err := c.orchestrator.Resolve(ctx, run, task.Query, nil, task.QueryDomains, preview)
	if err != nil {
		return "", err
	}

	return c.joinPolicy.JoinLocalWeb(docsContext, webContext), nil
}

// loadHybridDocuments prefers the task's document URLs over the local path
func (c *Conductor) loadHybridDocuments(ctx context.Context, task *domain.ResearchTask) ([]domain.Document, error) {
	if len(task.DocumentURLs) > 0 {
		if c.onlineLoader == nil {
			return nil, fmt.Errorf("no online document loader configured")
		}
		documents, err := c.onlineLoader(task.DocumentURLs).Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading online documents failed: %w", err)
		}
		return documents, nil
	}

	if c.localLoader == nil {
		return nil, fmt.Errorf("no document loader configured")
	}
	documents, err := c.localLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading local documents failed: %w", err)
	}
	return documents, nil
}

// contextFromOnlineDocuments researches against documents fetched from the
// task's document URLs.
func (c *Conductor) contextFromOnlineDocuments(ctx context.Context, run *state.RunState) (string, error) {
	task := run.Task

	if c.onlineLoader == nil {
		return "", fmt.Errorf("no online document loader configured")
	}
	documents, err := c.onlineLoader(task.DocumentURLs).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("loading online documents failed: %w", err)
	}
	c.ingest(ctx, documents)

	return c.orchestrator.Resolve(ctx, run, task.Query, documents, task.QueryDomains, documentPreview(documents))
}

// contextFromProvidedDocuments researches against documents supplied inline
// on the task.
func (c *Conductor) contextFromProvidedDocuments(ctx context.Context, run *state.RunState) (string, error) {
	task := run.Task

	if len(task.Documents) == 0 {
		return "", domain.ErrNoDocuments
	}
	c.ingest(ctx, task.Documents)

	return c.orchestrator.Resolve(ctx, run, task.Query, task.Documents, task.QueryDomains, documentPreview(task.Documents))
}

// curate runs the optional source curator over the assembled context. A
// curator failure never loses the raw context.
func (c *Conductor) curate(ctx context.Context, run *state.RunState, researchContext string) string {
	if c.curator == nil || researchContext == "" {
		return researchContext
	}

	curated, err := c.curator.Curate(ctx, []string{researchContext})
	if err != nil {
		c.logger.Warn(ctx, "Source curation failed, keeping raw context",
			map[string]interface{}{"error": err.Error()})
		return researchContext
	}
	return joinFragments(curated)
}

// ingest loads documents into the vector store when one is configured
func (c *Conductor) ingest(ctx context.Context, documents []domain.Document) {
	if c.vectorStore == nil || len(documents) == 0 {
		return
	}
	if err := c.vectorStore.Load(ctx, documents); err != nil {
		c.logger.Warn(ctx, "Vector store load failed",
			map[string]interface{}{"error": err.Error()})
	}
}

// documentPreview builds the planning preview: the first 3 documents,
// truncated to 1000 characters each, separated by blank lines.
func documentPreview(documents []domain.Document) string {
	const maxDocs = 3
	const maxChars = 1000

	var parts []string
	for i, doc := range documents {
		if i >= maxDocs {
			break
		}
		parts = append(parts, truncateRunes(doc.RawContent, maxChars))
	}
	return strings.Join(parts, "\n\n")
}

// truncateRunes cuts s to at most max bytes without splitting a rune
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// defaultJoinPolicy labels and concatenates the two hybrid legs
type defaultJoinPolicy struct{}

func (defaultJoinPolicy) JoinLocalWeb(docsContext, webContext string) string {
	return fmt.Sprintf("Context from local documents: %s\n\nContext from web sources: %s", docsContext, webContext)
}
