package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openresearch/conductor/pkg/config"
	"github.com/openresearch/conductor/pkg/document"
	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/llm"
	"github.com/openresearch/conductor/pkg/observability"
	"github.com/openresearch/conductor/pkg/planner"
	"github.com/openresearch/conductor/pkg/relevance"
	"github.com/openresearch/conductor/pkg/research"
	"github.com/openresearch/conductor/pkg/retriever"
	"github.com/openresearch/conductor/pkg/scraper"
	"github.com/openresearch/conductor/pkg/stream"
	"github.com/openresearch/conductor/pkg/vectorstore"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"

	// Global telemetry instance
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	tracer    trace.Tracer
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Path to configuration file")
		version    = flag.Bool("version", false, "Show version information")
		query      = flag.String("query", "", "Research query")
		source     = flag.String("source", "web", "Report source: web, local, hybrid, online_documents, vector_store")
		sourceURLs = flag.String("source-urls", "", "Comma-separated source URLs to research directly")
		complement = flag.Bool("complement", false, "Complement explicit source URLs with a web search")
		docPath    = flag.String("doc-path", "", "Path to local documents (overrides config)")
		verbose    = flag.Bool("verbose", false, "Emit progress notifications")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Research Conductor\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg := config.LoadOrDefault(*configPath)
	if *docPath != "" {
		cfg.Documents.Path = *docPath
	}

	ctx := context.Background()
	if err := initObservability(ctx, cfg); err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	defer shutdownObservability(ctx)

	ctx, span := tracer.Start(ctx, "main",
		trace.WithAttributes(
			attribute.String("version", Version),
			attribute.String("report_source", *source),
		),
	)
	defer span.End()

	log.Printf("Starting Research Conductor v%s (built: %s)", Version, BuildTime)

	if err := run(ctx, cfg, *query, *source, *sourceURLs, *complement, *verbose); err != nil {
		span.RecordError(err)
		log.Fatalf("Research failed: %v", err)
	}
}

func initObservability(ctx context.Context, cfg *config.Config) error {
	telConfig := &observability.TelemetryConfig{
		ServiceName:    "research-conductor",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		PrometheusPort: cfg.Observability.Metrics.Port,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableTracing:  cfg.Observability.Tracing.Enabled,
		EnableMetrics:  cfg.Observability.Metrics.Enabled,
		EnableLogging:  true,
	}

	var err error
	telemetry, err = observability.NewTelemetry(telConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	tracer = telemetry.Tracer()

	if cfg.Observability.Metrics.Enabled {
		metrics, err = observability.NewMetrics(telemetry.Meter())
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	return nil
}

func shutdownObservability(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}
}

func run(ctx context.Context, cfg *config.Config, query, source, sourceURLs string, complement, verbose bool) error {
	ctx, span := tracer.Start(ctx, "initialize_components")

	scrapeTimeout, err := cfg.GetDuration(cfg.Scraper.Timeout)
	if err != nil {
		span.End()
		return fmt.Errorf("invalid scraper timeout: %w", err)
	}

	ollamaClient := llm.NewOllamaClient(
		cfg.Ollama.BaseURL,
		cfg.Ollama.Model,
		&llm.OllamaOptions{
			Temperature: cfg.Ollama.Temperature,
			MaxTokens:   cfg.Ollama.MaxTokens,
			TopP:        cfg.Ollama.TopP,
			TopK:        cfg.Ollama.TopK,
		},
	)

	var llmClient domain.LLMClient = ollamaClient
	if telemetry != nil {
		instrumented, err := llm.NewInstrumentedLLMClient(ollamaClient, telemetry, cfg.Ollama.Model)
		if err != nil {
			span.End()
			return fmt.Errorf("failed to instrument llm client: %w", err)
		}
		llmClient = instrumented
	}

	registry, err := retriever.FromConfig(cfg.Retrievers, scrapeTimeout)
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build retrievers: %w", err)
	}
	backends := registry.List()

	var sink domain.NotificationSink = domain.NopSink{}
	if verbose {
		sink = stream.NewLogSink()
	}

	fanout, err := research.NewRetrieverFanout(backends, cfg.Research.MaxSearchResultsPerQuery, sink, telemetry, metrics)
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build retriever fanout: %w", err)
	}

	aggregator := scraper.NewAggregator(scraper.Options{
		Timeout:        scrapeTimeout,
		UserAgent:      cfg.Scraper.UserAgent,
		MaxConcurrency: cfg.Scraper.MaxConcurrency,
		MaxBodyBytes:   cfg.Scraper.MaxBodyBytes,
	})

	queryPlanner, err := planner.NewLLMPlanner(planner.PlannerOptions{
		LLM:           llmClient,
		Retriever:     backends[0],
		MaxSubQueries: cfg.Research.MaxSubQueries,
		MaxSnippets:   cfg.Research.MaxSearchResultsPerQuery,
	})
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build planner: %w", err)
	}

	store, err := vectorstore.NewMemoryStore(vectorstore.MemoryStoreOptions{LLM: llmClient})
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build vector store: %w", err)
	}

	orchestrator, err := research.NewOrchestrator(research.OrchestratorOptions{
		Planner:        queryPlanner,
		Fanout:         fanout,
		Scraper:        aggregator,
		Filter:         relevance.NewLexicalFilter(0),
		VectorStore:    store,
		Sink:           sink,
		MaxConcurrency: cfg.Research.MaxConcurrency,
		Telemetry:      telemetry,
		Metrics:        metrics,
	})
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build orchestrator: %w", err)
	}

	var curator domain.SourceCurator
	if cfg.Research.CurateSources {
		curator, err = relevance.NewLLMCurator(llmClient)
		if err != nil {
			span.End()
			return fmt.Errorf("failed to build curator: %w", err)
		}
	}

	conductor, err := research.NewConductor(research.ConductorOptions{
		Orchestrator: orchestrator,
		Scraper:      aggregator,
		Filter:       relevance.NewLexicalFilter(0),
		LocalLoader:  document.NewLoader(cfg.Documents.Path),
		OnlineLoader: func(urls []string) domain.DocumentLoader {
			return document.NewOnlineLoader(urls, scrapeTimeout)
		},
		VectorStore: store,
		Curator:     curator,
		Sink:        sink,
		Telemetry:   telemetry,
		Metrics:     metrics,
	})
	if err != nil {
		span.End()
		return fmt.Errorf("failed to build conductor: %w", err)
	}

	span.End()

	return runResearch(ctx, cfg, conductor, query, source, sourceURLs, complement, verbose)
}

func runResearch(ctx context.Context, cfg *config.Config, conductor *research.Conductor, query, source, sourceURLs string, complement, verbose bool) error {
	// If no query provided, read from stdin
	if query == "" {
		fmt.Print("Enter your research query: ")
		if _, err := fmt.Scanln(&query); err != nil {
			return fmt.Errorf("failed to read query from stdin: %w", err)
		}
	}
	if query == "" {
		return fmt.Errorf("no research query provided")
	}

	task := &domain.ResearchTask{
		Query:        query,
		ReportSource: domain.ReportSource(source),
		ReportType:   domain.ReportTypeResearch,
		Verbose:      verbose || cfg.Research.Verbose,
		CreatedAt:    time.Now(),
	}
	if sourceURLs != "" {
		for _, url := range strings.Split(sourceURLs, ",") {
			if url = strings.TrimSpace(url); url != "" {
				task.SourceURLs = append(task.SourceURLs, url)
			}
		}
		task.ComplementSourceURLs = complement
	}

	researchTimeout, err := cfg.GetDuration(cfg.Research.Timeout)
	if err != nil {
		return fmt.Errorf("invalid research timeout: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, researchTimeout)
	defer cancel()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	startTime := time.Now()
	log.Printf("Starting research for: %s", query)

	result, err := conductor.ConductResearch(ctx, task)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	fmt.Println("\n=== Research Context ===")
	fmt.Printf("Task ID: %s\n", result.TaskID)
	fmt.Printf("Sources visited: %d\n", len(result.VisitedURLs))
	fmt.Printf("\n%s\n", result.Context)
	fmt.Printf("\nTotal Research Costs: $%.6f\n", result.Cost)
	fmt.Printf("Duration: %s\n", time.Since(startTime))

	return nil
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
