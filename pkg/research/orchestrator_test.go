package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/openresearch/conductor/internal/testutil"
	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/state"
)

// orchestratorFixture wires an orchestrator around mocks with sane defaults
type orchestratorFixture struct {
	planner     *testutil.MockPlanner
	retriever   *testutil.MockRetriever
	scraper     *testutil.MockScraper
	filter      *testutil.MockContextFilter
	vectorStore *testutil.MockVectorStore
	sink        *testutil.RecordingSink
}

func newOrchestratorFixture() *orchestratorFixture {
	return &orchestratorFixture{
		planner: &testutil.MockPlanner{SubQueries: []string{"sub one", "sub two"}},
		retriever: &testutil.MockRetriever{
			Results: []domain.SearchResult{{Href: "https://example.com/hit"}},
		},
		scraper: &testutil.MockScraper{
			Documents: []domain.Document{
				{Source: "https://example.com/hit", RawContent: "scraped content"},
			},
		},
		filter: &testutil.MockContextFilter{Content: "relevant content"},
		sink:   &testutil.RecordingSink{},
	}
}

func (f *orchestratorFixture) build(t *testing.T) *Orchestrator {
	t.Helper()

	fanout, err := NewRetrieverFanout([]domain.Retriever{f.retriever}, 5, f.sink, nil, nil)
	testutil.AssertNoError(t, err, "creating fanout")

	// Assign the interface only for a live mock; a typed-nil pointer would
	// defeat the orchestrator's nil check.
	var vectorStore domain.VectorStore
	if f.vectorStore != nil {
		vectorStore = f.vectorStore
	}

	orchestrator, err := NewOrchestrator(OrchestratorOptions{
		Planner:        f.planner,
		Fanout:         fanout,
		Scraper:        f.scraper,
		Filter:         f.filter,
		VectorStore:    vectorStore,
		Sink:           f.sink,
		MaxConcurrency: 3,
	})
	testutil.AssertNoError(t, err, "creating orchestrator")
	return orchestrator
}

func TestOrchestrator_PlanningFailureIsFatal(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.ShouldError = true
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("doomed query"))
	_, err := orchestrator.Resolve(ctx, run, "doomed query", nil, nil, "")

	testutil.AssertError(t, err, "planning failure propagates")
}

func TestOrchestrator_JoinsFragmentsInPlanOrder(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"alpha", "beta"}
	fixture.filter.FilterFunc = func(ctx context.Context, query string, docs []domain.Document) (string, error) {
		return "ctx:" + query, nil
	}
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	result, err := orchestrator.Resolve(ctx, run, "primary", nil, nil, "")

	testutil.AssertNoError(t, err, "resolve")
	testutil.AssertEqual(t, "ctx:alpha ctx:beta ctx:primary", result, "ordered space join")
}

func TestOrchestrator_FailedSubQueryContributesNothing(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"good one", "bad one"}
	fixture.filter.FilterFunc = func(ctx context.Context, query string, docs []domain.Document) (string, error) {
		if query == "bad one" {
			return "", fmt.Errorf("filter blew up")
		}
		return strings.Fields(query)[0], nil
	}
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	result, err := orchestrator.Resolve(ctx, run, "primary", nil, nil, "")

	testutil.AssertNoError(t, err, "batch survives one failure")
	testutil.AssertEqual(t, "good primary", result, "failed fragment dropped")
}

func TestOrchestrator_AllFailuresYieldEmptyContext(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.filter.ShouldError = true
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	result, err := orchestrator.Resolve(ctx, run, "primary", nil, nil, "")

	testutil.AssertNoError(t, err, "no error for all-empty batch")
	testutil.AssertEqual(t, "", result, "empty context")
}

func TestOrchestrator_HintBypassesDiscoveryAndScraping(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	orchestrator := fixture.build(t)

	hint := []domain.Document{
		{Source: "doc.txt", RawContent: "already loaded"},
	}
	run := state.NewRunState(testutil.NewTestTask("primary"))
	_, err := orchestrator.Resolve(ctx, run, "primary", hint, nil, "")

	testutil.AssertNoError(t, err, "resolve with hint")
	testutil.AssertEqual(t, 0, fixture.retriever.GetCallCount(), "no retriever searches")
	testutil.AssertEqual(t, 0, fixture.scraper.GetCallCount(), "no scraping")
}

func TestOrchestrator_SubtopicSkipsPrimaryQuery(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	var mu sync.Mutex
	var filtered []string

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"only sub"}
	fixture.filter.FilterFunc = func(ctx context.Context, query string, docs []domain.Document) (string, error) {
		mu.Lock()
		filtered = append(filtered, query)
		mu.Unlock()
		return "x", nil
	}
	orchestrator := fixture.build(t)

	task := testutil.NewTestTask("subtopic primary")
	task.ReportType = domain.ReportTypeSubtopic
	run := state.NewRunState(task)

	_, err := orchestrator.Resolve(ctx, run, "subtopic primary", nil, nil, "")

	testutil.AssertNoError(t, err, "resolve")
	testutil.AssertEqual(t, 1, len(filtered), "only the planned sub-query resolved")
	testutil.AssertEqual(t, "only sub", filtered[0], "primary query not appended")
}

func TestOrchestrator_LoadsScrapedDocumentsIntoVectorStore(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"sub one"}
	fixture.vectorStore = &testutil.MockVectorStore{}
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	_, err := orchestrator.Resolve(ctx, run, "primary", nil, nil, "")

	testutil.AssertNoError(t, err, "resolve")
	if fixture.vectorStore.LoadedCount() == 0 {
		t.Error("expected scraped documents to be loaded into the vector store")
	}
}

func TestOrchestrator_ScrapesWithoutVectorStore(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"sub one"}
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	result, err := orchestrator.Resolve(ctx, run, "primary", nil, nil, "")

	testutil.AssertNoError(t, err, "resolve without a vector store")
	testutil.AssertEqual(t, "relevant content relevant content", result, "scrape path unaffected")
	if fixture.scraper.GetCallCount() == 0 {
		t.Error("expected the scrape path to run")
	}
}

func TestOrchestrator_ResolveWithVectorStore(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"sub one", "sub two"}
	fixture.vectorStore = &testutil.MockVectorStore{QueryResult: "stored"}
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	result, err := orchestrator.ResolveWithVectorStore(ctx, run, "primary", nil)

	testutil.AssertNoError(t, err, "resolve against vector store")
	testutil.AssertEqual(t, "stored stored stored", result, "one fragment per sub-query")
	testutil.AssertEqual(t, 0, fixture.retriever.GetCallCount(), "no web discovery")
	testutil.AssertEqual(t, 3, fixture.vectorStore.QueryCount, "primary query included")
}

func TestOrchestrator_ResolveWithVectorStoreRequiresStore(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	orchestrator := fixture.build(t)

	run := state.NewRunState(testutil.NewTestTask("primary"))
	_, err := orchestrator.ResolveWithVectorStore(ctx, run, "primary", nil)

	testutil.AssertError(t, err, "missing vector store")
}

func TestOrchestrator_NotifiesNoContent(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	fixture := newOrchestratorFixture()
	fixture.planner.SubQueries = []string{"dry sub"}
	fixture.filter.Content = ""
	orchestrator := fixture.build(t)

	task := testutil.NewTestTask("primary")
	task.Verbose = true
	run := state.NewRunState(task)

	result, err := orchestrator.Resolve(ctx, run, "primary", nil, nil, "")

	testutil.AssertNoError(t, err, "resolve")
	testutil.AssertEqual(t, "", result, "no content assembled")
	events := fixture.sink.EventsOfType(domain.EventSubQueryNoContent)
	testutil.AssertEqual(t, 2, len(events), "one warning per empty sub-query")
}
