package planner

import (
	"strings"
	"testing"

	"github.com/openresearch/conductor/internal/testutil"
	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/state"
)

func newPlanner(t *testing.T, llm domain.LLMClient, retriever domain.Retriever) *LLMPlanner {
	t.Helper()
	planner, err := NewLLMPlanner(PlannerOptions{
		LLM:            llm,
		Retriever:      retriever,
		MaxSubQueries:  3,
		TokenCostPer1K: 0.001,
	})
	testutil.AssertNoError(t, err, "creating planner")
	return planner
}

func TestLLMPlanner_ParsesJSONArray(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `["go scheduler internals", "goroutine preemption"]`

	planner := newPlanner(t, llm, nil)
	subQueries, err := planner.Plan(ctx, "how does the go scheduler work", nil, "")

	testutil.AssertNoError(t, err, "plan")
	testutil.AssertEqual(t, 2, len(subQueries), "two sub-queries")
	testutil.AssertEqual(t, "go scheduler internals", subQueries[0], "first sub-query")
}

func TestLLMPlanner_ParsesFencedArray(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = "Here is the plan:\n```json\n[\"one\", \"two\"]\n```"

	planner := newPlanner(t, llm, nil)
	subQueries, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertNoError(t, err, "plan")
	testutil.AssertEqual(t, 2, len(subQueries), "array extracted from fences")
	testutil.AssertEqual(t, "one", subQueries[0], "first sub-query")
}

func TestLLMPlanner_LineFallback(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = "1. first query\n2. second query"

	planner := newPlanner(t, llm, nil)
	subQueries, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertNoError(t, err, "plan")
	testutil.AssertEqual(t, 2, len(subQueries), "one query per line")
	testutil.AssertEqual(t, "first query", subQueries[0], "bullet stripped")
}

func TestLLMPlanner_CapsSubQueries(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `["a", "b", "c", "d", "e"]`

	planner := newPlanner(t, llm, nil)
	subQueries, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertNoError(t, err, "plan")
	testutil.AssertEqual(t, 3, len(subQueries), "capped at max")
}

func TestLLMPlanner_ChatFailureIsFatal(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.ShouldError = true
	llm.ErrorMessage = "model offline"

	planner := newPlanner(t, llm, nil)
	_, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertError(t, err, "chat failure propagates")
}

func TestLLMPlanner_SnapshotFailureIsAbsorbed(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `["still planned"]`
	retriever := &testutil.MockRetriever{ShouldError: true}

	planner := newPlanner(t, llm, retriever)
	subQueries, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertNoError(t, err, "snapshot failure does not abort planning")
	testutil.AssertEqual(t, 1, len(subQueries), "plan still produced")
	testutil.AssertEqual(t, 1, retriever.GetCallCount(), "snapshot attempted")
}

func TestLLMPlanner_SnapshotFeedsPrompt(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `["planned"]`
	retriever := &testutil.MockRetriever{
		Results: []domain.SearchResult{
			{Href: "https://x", Title: "Known Result", Snippet: "a useful snippet"},
		},
	}

	planner := newPlanner(t, llm, retriever)
	_, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertNoError(t, err, "plan")
	prompt := llm.LastMessages[len(llm.LastMessages)-1].Content
	if !strings.Contains(prompt, "Known Result: a useful snippet") {
		t.Errorf("expected snapshot in prompt, got %q", prompt)
	}
}

func TestLLMPlanner_ReportsCosts(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `["planned"]`

	planner := newPlanner(t, llm, nil)
	costs := state.NewCostTracker()
	_, err := planner.PlanWithCosts(ctx, "task", nil, "", costs)

	testutil.AssertNoError(t, err, "plan")
	// mock usage is 100 tokens at 0.001 per 1k
	got := costs.Total()
	if got < 0.00009 || got > 0.00011 {
		t.Errorf("expected roughly 0.0001 cost, got %v", got)
	}
}

func TestLLMPlanner_RejectsEmptyPlan(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = "   "

	planner := newPlanner(t, llm, nil)
	_, err := planner.Plan(ctx, "task", nil, "")

	testutil.AssertError(t, err, "empty planner output")
}
