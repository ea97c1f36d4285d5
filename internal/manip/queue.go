// Package manip owns the manipulation lifecycle: layout-affecting
// instructions recorded by the session reducer wait here until the
// rendering layer applies them to the live grid, exactly once, in order.
package manip

import (
	"sync"
	"time"

	"github.com/genie-dash/genie/pkg/dashboard"
)

// executedHistorySize bounds the executed-ID ring. The history exists for
// idempotence checks against out-of-band re-execution from a stale render
// pass, and for debugging; entries are never replayed.
const executedHistorySize = 10

// Entry is one queued manipulation. The state machine per entry is
// pending -> executed; insertion state is always pending.
type Entry struct {
	ID           string
	Manipulation dashboard.Manipulation
	InsertedAt   time.Time
	Executed     bool
}

// Queue holds manipulations not yet applied to the live view.
//
// The queue alone is not sufficient to prevent double-apply: the consumer
// runs asynchronously with respect to the grid's layout-change callback and
// may re-render between Next and Execute. Consumers must track the IDs they
// have already triggered on their own side (see view.Applier) before
// triggering again.
type Queue struct {
	mu       sync.Mutex
	pending  []Entry
	executed []string
}

// NewQueue creates an empty manipulation queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add inserts a manipulation keyed by its derived identity. Set-like:
// re-adding an identity that is already pending, or that was recently
// executed, is a no-op. Returns true when the entry was inserted.
func (q *Queue) Add(m dashboard.Manipulation) bool {
	id := m.Identity()

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.pending {
		if e.ID == id {
			return false
		}
	}
	for _, executedID := range q.executed {
		if executedID == id {
			return false
		}
	}

	q.pending = append(q.pending, Entry{
		ID:           id,
		Manipulation: m,
		InsertedAt:   time.Now(),
		Executed:     false,
	})
	return true
}

// Next returns the first entry still pending, strict FIFO. Single-consumer
// semantics: the view applies at most one manipulation per render cycle and
// must not call Next again for the same ID before calling Execute.
func (q *Queue) Next() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.pending {
		if !e.Executed {
			return e, true
		}
	}
	return Entry{}, false
}

// Get returns the pending entry with the given ID.
func (q *Queue) Get(id string) (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.pending {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Execute removes the entry from the pending collection and records its ID
// in the bounded executed-history ring. Returns false when no pending entry
// with that ID exists (already executed or never added).
func (q *Queue) Execute(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx := -1
	for i, e := range q.pending {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	q.executed = append(q.executed, id)
	if len(q.executed) > executedHistorySize {
		q.executed = q.executed[len(q.executed)-executedHistorySize:]
	}
	return true
}

// WasExecuted reports whether the ID is in the recent executed history.
func (q *Queue) WasExecuted(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, executedID := range q.executed {
		if executedID == id {
			return true
		}
	}
	return false
}

// PendingCount returns the number of manipulations awaiting execution.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ExecutedCount returns the number of IDs in the executed history ring.
func (q *Queue) ExecutedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.executed)
}
