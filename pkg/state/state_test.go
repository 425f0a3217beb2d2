package state_test

import (
	"sync"
	"testing"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/state"
)

func TestNewRunState_AssignsID(t *testing.T) {
	run := state.NewRunState(&domain.ResearchTask{
		Query:        "test query",
		ReportSource: domain.ReportSourceWeb,
	})

	if run.Task.ID == "" {
		t.Error("Expected generated task ID")
	}
	if run.Ledger == nil || run.Costs == nil {
		t.Fatal("Expected ledger and cost tracker to be initialized")
	}
	if run.Ledger.Len() != 0 {
		t.Errorf("New run ledger should be empty, has %d entries", run.Ledger.Len())
	}
}

func TestRunState_IsolatedAcrossRuns(t *testing.T) {
	first := state.NewRunState(&domain.ResearchTask{Query: "q1"})
	second := state.NewRunState(&domain.ResearchTask{Query: "q2"})

	first.Ledger.Register([]string{"http://a"})
	first.Costs.AddCost(0.5)

	if second.Ledger.Seen("http://a") {
		t.Error("Ledger state leaked between runs")
	}
	if second.Costs.Total() != 0 {
		t.Errorf("Cost state leaked between runs: %f", second.Costs.Total())
	}
}

func TestRunState_ContextCopy(t *testing.T) {
	run := state.NewRunState(&domain.ResearchTask{Query: "q"})
	run.SetContext([]string{"A", "B"})

	got := run.Context()
	got[0] = "mutated"

	if run.Context()[0] != "A" {
		t.Error("Context() must return a copy, not the backing slice")
	}
}

func TestCostTracker_ConcurrentAdds(t *testing.T) {
	costs := state.NewCostTracker()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			costs.AddCost(0.01)
		}()
	}
	wg.Wait()

	total := costs.Total()
	if total < 0.999 || total > 1.001 {
		t.Errorf("Total = %f, want ~1.0", total)
	}
}

func TestCostTracker_IgnoresNegative(t *testing.T) {
	costs := state.NewCostTracker()
	costs.AddCost(1.0)
	costs.AddCost(-0.5)

	if costs.Total() != 1.0 {
		t.Errorf("Total = %f, want 1.0 (negative amounts ignored)", costs.Total())
	}
}
