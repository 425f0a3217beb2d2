package state

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openresearch/conductor/pkg/domain"
)

// RunState is the mutable state of one research run. It is created by the
// conductor when a run starts, shared by reference with every concurrent
// sub-task, and discarded when the run ends. The ledger and cost tracker
// are the only fields mutated from concurrent goroutines; the context
// fragments are appended under the state's own lock.
type RunState struct {
	mu sync.RWMutex

	Task    *domain.ResearchTask
	Ledger  *URLLedger
	Costs   *CostTracker
	context []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRunState creates fresh state for a task. Each run gets its own ledger
// and cost tracker; nothing is shared across runs.
func NewRunState(task *domain.ResearchTask) *RunState {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	now := time.Now()
	return &RunState{
		Task:      task,
		Ledger:    NewURLLedger(),
		Costs:     NewCostTracker(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetContext replaces the assembled context fragments
func (s *RunState) SetContext(fragments []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.context = make([]string, len(fragments))
	copy(s.context, fragments)
	s.UpdatedAt = time.Now()
}

// Context returns a copy of the current context fragments
func (s *RunState) Context() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fragments := make([]string, len(s.context))
	copy(fragments, s.context)
	return fragments
}
