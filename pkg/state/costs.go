package state

import (
	"sync"
)

// CostTracker accumulates the monetary cost of a research run. Mutations
// arrive from concurrently running sub-query resolutions, so each update is
// a single critical section.
type CostTracker struct {
	mu    sync.Mutex
	total float64
}

// NewCostTracker creates a tracker starting at zero
func NewCostTracker() *CostTracker {
	return &CostTracker{}
}

// AddCost adds an amount to the running total. Negative amounts are
// ignored; cost never decreases.
func (c *CostTracker) AddCost(amount float64) {
	if amount <= 0 {
		return
	}
	c.mu.Lock()
	c.total += amount
	c.mu.Unlock()
}

// Total returns the accumulated cost
func (c *CostTracker) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
