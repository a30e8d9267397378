package wayline

import (
	"context"
	"sync"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
)

// TaskStore persists flight tasks. The controller writes through it on
// every transition so process restart can rebuild live state; terminal
// tasks stay in the store as history after eviction from memory.
type TaskStore interface {
	// Save inserts or replaces the persisted task.
	Save(ctx context.Context, task *FlightTask) error

	// Get retrieves a task by flight id, live or historical.
	// Returns ErrTaskNotFound if it was never created.
	Get(ctx context.Context, flightID types.FlightID) (*FlightTask, error)

	// ListLive returns all non-terminal tasks. Used to rebuild the
	// in-memory table after restart.
	ListLive(ctx context.Context) ([]*FlightTask, error)
}

// TransitionRecord is one durable state-transition entry for audit and
// replay.
type TransitionRecord struct {
	ID       types.ID
	FlightID types.FlightID
	DeviceSN string
	From     TaskStatus
	To       TaskStatus
	Step     ExecutionStep
	Reason   string
	At       time.Time
}

// TransitionLog durably appends task-state transitions.
type TransitionLog interface {
	// Append persists one transition. Synchronous and durable: the
	// record is on disk before Append returns.
	Append(ctx context.Context, rec TransitionRecord) error

	// History returns all transitions for a task in append order.
	History(ctx context.Context, flightID types.FlightID) ([]TransitionRecord, error)
}

// taskEntry is the in-memory state of one live task. The entry mutex
// is the per-task single-writer discipline: every mutation of the task
// and every lifecycle command holds it. inFlight marks one outstanding
// device command; a second command while one is outstanding is
// rejected, never queued.
type taskEntry struct {
	mu       sync.Mutex
	task     *FlightTask
	inFlight bool
}

// taskTable is the set of live tasks, keyed by flight id. Cross-task
// operations are fully parallel, there is no global lock beyond the
// map access itself.
type taskTable struct {
	mu      sync.RWMutex
	entries map[types.FlightID]*taskEntry
}

func newTaskTable() *taskTable {
	return &taskTable{entries: make(map[types.FlightID]*taskEntry)}
}

// get returns the entry for a task, or nil.
func (t *taskTable) get(flightID types.FlightID) *taskEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[flightID]
}

// putIfAbsent inserts a new entry and reports whether it was inserted.
func (t *taskTable) putIfAbsent(flightID types.FlightID, entry *taskEntry) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[flightID]; exists {
		return false
	}
	t.entries[flightID] = entry
	return true
}

// replace force-inserts an entry (restart restore path).
func (t *taskTable) replace(flightID types.FlightID, entry *taskEntry) {
	t.mu.Lock()
	t.entries[flightID] = entry
	t.mu.Unlock()
}

// remove deletes an entry.
func (t *taskTable) remove(flightID types.FlightID) {
	t.mu.Lock()
	delete(t.entries, flightID)
	t.mu.Unlock()
}

// snapshot returns the current entries. Callers must still lock each
// entry before touching its task.
func (t *taskTable) snapshot() map[types.FlightID]*taskEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[types.FlightID]*taskEntry, len(t.entries))
	for id, e := range t.entries {
		out[id] = e
	}
	return out
}

// len returns the number of live entries.
func (t *taskTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
