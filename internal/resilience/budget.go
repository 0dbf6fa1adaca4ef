package resilience

import "sync"

// Budget caps the total number of retries across a whole batch so a
// handful of misbehaving targets cannot stretch a run indefinitely.
// Safe for concurrent use.
type Budget struct {
	mu        sync.Mutex
	remaining int
}

// NewBudget returns a budget allowing maxRetries retries in total.
func NewBudget(maxRetries int) *Budget {
	return &Budget{remaining: maxRetries}
}

// Take consumes one retry from the budget. It returns false when the
// budget is exhausted, in which case nothing is consumed.
func (b *Budget) Take() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining returns the number of retries left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Exhausted reports whether no retries remain.
func (b *Budget) Exhausted() bool {
	return b.Remaining() <= 0
}
