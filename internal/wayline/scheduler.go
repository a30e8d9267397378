package wayline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
)

// DefaultScheduleGrace is how far past a timed task's execute time the
// scheduler keeps trying before declaring the window missed.
const DefaultScheduleGrace = 2 * time.Minute

// Scheduler drives timed and conditional tasks that are still sent:
// timed tasks fire once the schedule arrives, conditional tasks fire
// when their readiness window and device resources line up, and tasks
// whose window passes unexecuted move to timeout.
type Scheduler struct {
	controller *Controller
	interval   time.Duration
	grace      time.Duration
	logger     *slog.Logger
}

// SchedulerOption is a functional option for configuring the scheduler.
type SchedulerOption func(*Scheduler)

// WithScheduleInterval sets the scan interval. Default 5s.
func WithScheduleInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithScheduleGrace sets the missed-window grace for timed tasks.
func WithScheduleGrace(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.grace = d
		}
	}
}

// NewScheduler creates a scheduler over the controller.
func NewScheduler(controller *Controller, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		controller: controller,
		interval:   5 * time.Second,
		grace:      DefaultScheduleGrace,
		logger:     controller.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick runs one scheduling pass. Exported so tests and operators can
// drive it without the ticker.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	for flightID, entry := range s.controller.table.snapshot() {
		entry.mu.Lock()
		task := entry.task
		if task.Status != TaskStatusSent || task.Config == nil || entry.inFlight {
			entry.mu.Unlock()
			continue
		}
		cfg := *task.Config
		snapshot := task.Clone()
		entry.mu.Unlock()

		switch cfg.TaskType {
		case TaskTypeTimed:
			if cfg.ExecuteTime == nil {
				continue
			}
			if now.Sub(*cfg.ExecuteTime) > s.grace {
				s.expire(ctx, entry, "execute window missed")
				continue
			}
			if !now.Before(*cfg.ExecuteTime) {
				s.fire(ctx, flightID)
			}

		case TaskTypeConditional:
			if s.controller.readiness.WindowExpired(snapshot, now, 0) {
				s.expire(ctx, entry, "readiness window closed")
				continue
			}
			s.fire(ctx, flightID)
		}
	}
}

// fire attempts execution; precondition failures are normal while a
// conditional task waits and are retried on the next pass.
func (s *Scheduler) fire(ctx context.Context, flightID types.FlightID) {
	err := s.controller.Execute(ctx, flightID)
	switch {
	case err == nil:
	case errors.Is(err, NewTaskError(ErrTaskPreconditionNotMet, "")):
		s.logger.Debug("scheduled task not ready", "flight_id", flightID, "reason", err)
	case errors.Is(err, NewTaskError(ErrTaskCommandInFlight, "")):
		// Another intent holds the task; retry next pass.
	default:
		s.logger.Warn("scheduled execution failed", "flight_id", flightID, "error", err)
	}
}

// expire moves an unexecuted task to timeout under its entry lock.
func (s *Scheduler) expire(ctx context.Context, entry *taskEntry, reason string) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.task.Status != TaskStatusSent {
		return
	}
	s.controller.commitLocked(ctx, entry, TaskStatusTimeout, reason)
	s.logger.Info("scheduled task timed out",
		"flight_id", entry.task.FlightID, "reason", reason)
}
