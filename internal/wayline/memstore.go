package wayline

import (
	"context"
	"sync"

	"github.com/leebs0521/wayline-core/internal/types"
)

// MemoryTaskStore is an in-memory TaskStore for tests and ephemeral
// deployments.
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[types.FlightID]*FlightTask
}

// NewMemoryTaskStore creates an empty in-memory store.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[types.FlightID]*FlightTask)}
}

// Save inserts or replaces the task.
func (s *MemoryTaskStore) Save(_ context.Context, task *FlightTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.FlightID] = task.Clone()
	return nil
}

// Get retrieves a task by flight id.
func (s *MemoryTaskStore) Get(_ context.Context, flightID types.FlightID) (*FlightTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[flightID]
	if !ok {
		return nil, NewNotFoundError(flightID)
	}
	return task.Clone(), nil
}

// ListLive returns all non-terminal tasks.
func (s *MemoryTaskStore) ListLive(_ context.Context) ([]*FlightTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*FlightTask
	for _, task := range s.tasks {
		if !task.Status.IsTerminal() {
			out = append(out, task.Clone())
		}
	}
	return out, nil
}

// MemoryTransitionLog is an in-memory TransitionLog for tests.
type MemoryTransitionLog struct {
	mu      sync.Mutex
	records map[types.FlightID][]TransitionRecord
}

// NewMemoryTransitionLog creates an empty in-memory log.
func NewMemoryTransitionLog() *MemoryTransitionLog {
	return &MemoryTransitionLog{records: make(map[types.FlightID][]TransitionRecord)}
}

// Append stores one transition record.
func (l *MemoryTransitionLog) Append(_ context.Context, rec TransitionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.FlightID] = append(l.records[rec.FlightID], rec)
	return nil
}

// History returns all transitions for a task in append order.
func (l *MemoryTransitionLog) History(_ context.Context, flightID types.FlightID) ([]TransitionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := l.records[flightID]
	out := make([]TransitionRecord, len(recs))
	copy(out, recs)
	return out, nil
}

var (
	_ TaskStore     = (*MemoryTaskStore)(nil)
	_ TransitionLog = (*MemoryTransitionLog)(nil)
)
