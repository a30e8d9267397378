package wayline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
)

// ProgressEvent is one device-sourced progress/status/error event.
// The stream is unordered and at-least-once; Apply makes illegal or
// stale deliveries no-ops rather than corruptions.
type ProgressEvent struct {
	FlightID types.FlightID `json:"flight_id"`
	DeviceSN string         `json:"device_sn,omitempty"`
	Status   TaskStatus     `json:"status"`

	// Step is the current execution step, if the event carries one.
	Step *ExecutionStep `json:"step,omitempty"`

	// Percent is the wayline completion percentage, if carried.
	Percent *int `json:"percent,omitempty"`

	// Breakpoint is the resumable snapshot, if carried.
	Breakpoint *Breakpoint `json:"breakpoint,omitempty"`

	// ErrorCode is the device error code, if the event reports one.
	ErrorCode *int `json:"error_code,omitempty"`
}

// ParseProgressEvent decodes one wire event payload.
func ParseProgressEvent(payload []byte) (ProgressEvent, error) {
	var ev ProgressEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ProgressEvent{}, err
	}
	return ev, nil
}

// transitionSink receives every committed state transition. The
// controller implements it: persistence, audit append, bus publish and
// OnStatusChange callbacks all happen behind it.
type transitionSink interface {
	committed(ctx context.Context, task *FlightTask, from TaskStatus, reason string)
	progressed(ctx context.Context, task *FlightTask)
}

// Reconciler consumes the progress event stream for all tasks and
// folds it into the authoritative state. It shares the per-task
// single-writer lock with the controller.
type Reconciler struct {
	table       *taskTable
	breakpoints *BreakpointStore
	sink        transitionSink
	logger      *slog.Logger
}

// NewReconciler creates a reconciler over the shared task table.
func NewReconciler(table *taskTable, breakpoints *BreakpointStore, sink transitionSink, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		table:       table,
		breakpoints: breakpoints,
		sink:        sink,
		logger:      logger,
	}
}

// Apply folds one event into task state. It never blocks on anything
// but the per-task lock; unknown tasks and illegal moves are discarded.
// Applying the same event twice yields the same resulting state.
func (r *Reconciler) Apply(ctx context.Context, ev ProgressEvent) {
	entry := r.table.get(ev.FlightID)
	if entry == nil {
		r.logger.Debug("discarding event for unknown task", "flight_id", ev.FlightID)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	task := entry.task

	// Terminal is sticky: late or duplicate deliveries after the end
	// of the task are dropped.
	if task.Status.IsTerminal() {
		r.logger.Debug("discarding event for terminal task",
			"flight_id", ev.FlightID, "status", task.Status)
		return
	}

	// A carried breakpoint is stored regardless of the event's target
	// status, so a later pause or interruption always has the most
	// recent resumable snapshot. Invalid ones are dropped, not coerced.
	if ev.Breakpoint != nil {
		if err := r.breakpoints.Put(ev.FlightID, ev.Breakpoint); err != nil {
			r.logger.Warn("discarding invalid breakpoint",
				"flight_id", ev.FlightID, "error", err)
			ev.Breakpoint = nil
		}
	}

	// A terminal error code overrides the event's own status field.
	// Device firmware occasionally reports an error together with a
	// non-terminal status; the classifier's verdict wins.
	if ev.ErrorCode != nil {
		class := Classify(*ev.ErrorCode)
		if forced, ok := class.TerminalStatus(); ok {
			r.commitStatus(ctx, entry, forced, class.Message)
			return
		}
		if class.Verdict == VerdictUserAction && task.Reason == "" {
			task.Reason = class.Message
		}
	}

	if ev.Status == task.Status {
		// A pause acknowledged before the device sent its breakpoint
		// leaves the task paused but bare; the late snapshot still
		// has to land on it.
		if task.Status == TaskStatusPaused && ev.Breakpoint != nil {
			task.Breakpoint = r.breakpoints.Get(ev.FlightID)
			if task.Reason == "" && task.Breakpoint != nil && task.Breakpoint.BreakReason != BreakReasonNone {
				task.Reason = string(task.Breakpoint.BreakReason)
			}
			task.UpdatedAt = time.Now()
			r.sink.progressed(ctx, task)
			return
		}
		r.applyProgress(ctx, entry, ev)
		return
	}

	if !ev.Status.IsValid() || !task.Status.CanTransitionTo(ev.Status) {
		r.logger.Debug("discarding stale or illegal status move",
			"flight_id", ev.FlightID, "from", task.Status, "to", ev.Status)
		return
	}

	switch ev.Status {
	case TaskStatusInProgress:
		// Execute ack path normally sets in_progress through the
		// controller; seeing it here means the device reported first
		// (or a resume restart). Enter at the step the event carries,
		// falling back to the attempt's entry step.
		if ev.Step != nil && ev.Step.IsKnown() {
			task.Step = *ev.Step
		} else if task.Status == TaskStatusPaused {
			task.Step = ResumeEntryStep(r.breakpoints.Get(ev.FlightID))
		} else {
			task.Step = StepInitial
		}
		if ev.Percent != nil {
			task.Percent = clampPercent(*ev.Percent)
		}
		r.commitStatus(ctx, entry, TaskStatusInProgress, "")

	case TaskStatusPaused:
		// Attach the latest validated snapshot so PAUSED always
		// carries enough breakpoint detail to inform a resume.
		task.Breakpoint = r.breakpoints.Get(ev.FlightID)
		reason := ""
		if task.Breakpoint != nil && task.Breakpoint.BreakReason != BreakReasonNone {
			reason = string(task.Breakpoint.BreakReason)
		}
		r.commitStatus(ctx, entry, TaskStatusPaused, reason)

	default:
		reason := task.Reason
		r.commitStatus(ctx, entry, ev.Status, reason)
	}
}

// applyProgress updates step/percent under an unchanged status. Steps
// only move forward within one attempt; regressions are stale
// deliveries and are dropped.
func (r *Reconciler) applyProgress(ctx context.Context, entry *taskEntry, ev ProgressEvent) {
	task := entry.task
	if task.Status != TaskStatusInProgress {
		return
	}

	changed := false
	if ev.Step != nil && ev.Step.IsKnown() && ev.Step.ComesAfter(task.Step) {
		if task.Step != *ev.Step {
			changed = true
		}
		task.Step = *ev.Step
	}
	if ev.Percent != nil {
		p := clampPercent(*ev.Percent)
		if p != task.Percent {
			task.Percent = p
			changed = true
		}
	}

	if changed {
		task.UpdatedAt = time.Now()
		r.sink.progressed(ctx, task)
	}
}

// commitStatus performs the status move under the held entry lock and
// hands the committed transition to the sink.
func (r *Reconciler) commitStatus(ctx context.Context, entry *taskEntry, to TaskStatus, reason string) {
	task := entry.task
	from := task.Status

	if from == to {
		return
	}
	if !from.CanTransitionTo(to) {
		r.logger.Debug("dropping forced move with no legal path",
			"flight_id", task.FlightID, "from", from, "to", to)
		return
	}

	now := time.Now()
	task.Status = to
	task.UpdatedAt = now
	if reason != "" {
		task.Reason = reason
	}

	if to.IsTerminal() {
		task.CompletedAt = &now
		// A completed or canceled task is no longer resumable.
		if to == TaskStatusOK || to == TaskStatusCanceled {
			task.Breakpoint = nil
			r.breakpoints.Clear(task.FlightID)
		}
	}

	r.sink.committed(ctx, task, from, reason)
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
