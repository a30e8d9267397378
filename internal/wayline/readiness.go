package wayline

import (
	"fmt"
	"time"
)

// DeviceFacts are the externally supplied device measurements the
// readiness evaluator consumes. They come from the device registry,
// which decodes telemetry; this core never decodes telemetry itself.
type DeviceFacts struct {
	BatteryPercent int
	FreeStorageMB  int64
}

// ReadinessEvaluator decides whether a conditional task's
// preconditions are currently satisfied. It is pure and stateless.
type ReadinessEvaluator struct{}

// NewReadinessEvaluator creates a readiness evaluator.
func NewReadinessEvaluator() *ReadinessEvaluator {
	return &ReadinessEvaluator{}
}

// IsReady reports whether the task may execute now, with the reason it
// may not. Immediate tasks are always ready. Timed tasks are gated
// purely by the scheduler on execute time, not here. Conditional tasks
// require the time window, the battery floor, and (if configured) the
// storage floor.
func (e *ReadinessEvaluator) IsReady(task *FlightTask, now time.Time, facts DeviceFacts) (bool, string) {
	if task.Config == nil {
		return false, "task has no configuration"
	}

	switch task.Config.TaskType {
	case TaskTypeImmediate:
		return true, ""
	case TaskTypeTimed:
		// The scheduler compares now against execute time; once it
		// fires the task is ready by definition.
		return true, ""
	case TaskTypeConditional:
		return e.conditionalReady(task, now, facts)
	default:
		return false, fmt.Sprintf("unknown task type %q", task.Config.TaskType)
	}
}

func (e *ReadinessEvaluator) conditionalReady(task *FlightTask, now time.Time, facts DeviceFacts) (bool, string) {
	rc := task.Config.ReadyConditions
	if rc == nil {
		return false, "conditional task has no ready conditions"
	}

	if now.Before(rc.BeginTime) {
		return false, fmt.Sprintf("window opens at %s", rc.BeginTime.Format(time.RFC3339))
	}
	if now.After(rc.EndTime) {
		return false, fmt.Sprintf("window closed at %s", rc.EndTime.Format(time.RFC3339))
	}

	if facts.BatteryPercent <= rc.BatteryCapacity {
		return false, fmt.Sprintf("battery %d%% at or below floor %d%%", facts.BatteryPercent, rc.BatteryCapacity)
	}

	if ec := task.Config.ExecutableConditions; ec != nil {
		if facts.FreeStorageMB < ec.StorageCapacityMB {
			return false, fmt.Sprintf("free storage %dMB below required %dMB", facts.FreeStorageMB, ec.StorageCapacityMB)
		}
	}

	return true, ""
}

// WindowExpired reports whether a scheduled task can no longer execute:
// a conditional task past its end time, or a timed task well past its
// execute time. The grace period absorbs clock skew between cloud and
// dock.
func (e *ReadinessEvaluator) WindowExpired(task *FlightTask, now time.Time, grace time.Duration) bool {
	if task.Config == nil {
		return false
	}
	switch task.Config.TaskType {
	case TaskTypeConditional:
		rc := task.Config.ReadyConditions
		return rc != nil && now.After(rc.EndTime.Add(grace))
	case TaskTypeTimed:
		et := task.Config.ExecuteTime
		return et != nil && now.After(et.Add(grace))
	default:
		return false
	}
}
