package wayline

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
)

// TaskType determines how a flight task is triggered.
type TaskType string

const (
	// TaskTypeImmediate executes as soon as the task is accepted.
	TaskTypeImmediate TaskType = "immediate"

	// TaskTypeTimed executes at the configured execute time.
	TaskTypeTimed TaskType = "timed"

	// TaskTypeConditional executes once its ready conditions hold
	// within the configured time window.
	TaskTypeConditional TaskType = "conditional"
)

// IsValid checks if the TaskType is a valid value.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeImmediate, TaskTypeTimed, TaskTypeConditional:
		return true
	default:
		return false
	}
}

// WaylineType describes the mission template kind. It is informational
// and does not change lifecycle behavior.
type WaylineType string

const (
	WaylineTypeWaypoint     WaylineType = "waypoint"
	WaylineTypeMapping2D    WaylineType = "mapping_2d"
	WaylineTypeMapping3D    WaylineType = "mapping_3d"
	WaylineTypeMappingStrip WaylineType = "mapping_strip"
)

// IsValid checks if the WaylineType is a valid value.
func (t WaylineType) IsValid() bool {
	switch t {
	case WaylineTypeWaypoint, WaylineTypeMapping2D, WaylineTypeMapping3D, WaylineTypeMappingStrip:
		return true
	default:
		return false
	}
}

// RthMode selects how the return-home altitude is chosen.
type RthMode string

const (
	RthModeOptimalHeight RthMode = "optimal_height"
	RthModePresetHeight  RthMode = "preset_height"
)

// OutOfControlAction is the behavior on loss of the control link.
type OutOfControlAction string

const (
	OutOfControlReturnHome OutOfControlAction = "return_to_home"
	OutOfControlHovering   OutOfControlAction = "hovering"
	OutOfControlLanding    OutOfControlAction = "landing"
)

// ExitWaylineOnLinkLost selects whether the wayline continues
// autonomously when the link drops mid-mission.
type ExitWaylineOnLinkLost string

const (
	LinkLostContinue          ExitWaylineOnLinkLost = "continue"
	LinkLostExecuteLostAction ExitWaylineOnLinkLost = "execute_lost_action"
)

// TaskStatus represents the lifecycle state of a flight task.
type TaskStatus string

const (
	// TaskStatusSent indicates the task was accepted but execution has
	// not been issued to the device yet.
	TaskStatusSent TaskStatus = "sent"

	// TaskStatusInProgress indicates the device acknowledged execution
	// and the wayline is running.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusOK indicates the wayline completed successfully.
	TaskStatusOK TaskStatus = "ok"

	// TaskStatusPaused indicates the wayline was interrupted and a
	// breakpoint has been (or is about to be) captured.
	TaskStatusPaused TaskStatus = "paused"

	// TaskStatusRejected indicates the device refused the task.
	TaskStatusRejected TaskStatus = "rejected"

	// TaskStatusFailed indicates the wayline failed during execution.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusCanceled indicates the task was canceled by an operator.
	TaskStatusCanceled TaskStatus = "canceled"

	// TaskStatusTimeout indicates a timed or conditional task expired
	// before it could execute.
	TaskStatusTimeout TaskStatus = "timeout"

	// TaskStatusPartiallyDone indicates the wayline ended early but
	// some of the route was flown.
	TaskStatusPartiallyDone TaskStatus = "partially_done"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsValid checks if the TaskStatus is a valid value.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusSent, TaskStatusInProgress, TaskStatusOK, TaskStatusPaused,
		TaskStatusRejected, TaskStatusFailed, TaskStatusCanceled,
		TaskStatusTimeout, TaskStatusPartiallyDone:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if the status represents a terminal state.
// Terminal states are sticky: no lifecycle command or event may move a
// task out of one.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusOK, TaskStatusRejected, TaskStatusFailed,
		TaskStatusCanceled, TaskStatusTimeout, TaskStatusPartiallyDone:
		return true
	default:
		return false
	}
}

// CanTransitionTo validates whether a state transition is allowed.
// Undefined transitions are rejected, never silently ignored.
func (s TaskStatus) CanTransitionTo(target TaskStatus) bool {
	if s.IsTerminal() {
		return false
	}

	switch s {
	case TaskStatusSent:
		// Failed is reachable without ever running: the classifier can
		// force it from an execute nack or a terminal error event.
		return target == TaskStatusInProgress ||
			target == TaskStatusRejected ||
			target == TaskStatusFailed ||
			target == TaskStatusCanceled ||
			target == TaskStatusTimeout
	case TaskStatusInProgress:
		return target == TaskStatusPaused ||
			target == TaskStatusOK ||
			target == TaskStatusFailed ||
			target == TaskStatusCanceled ||
			target == TaskStatusPartiallyDone
	case TaskStatusPaused:
		return target == TaskStatusInProgress ||
			target == TaskStatusFailed ||
			target == TaskStatusCanceled ||
			target == TaskStatusPartiallyDone
	default:
		return false
	}
}

// FileRef identifies the mission file. The content is opaque to this
// core; only identity (checksum) and location matter.
type FileRef struct {
	// URL locates the wayline file (typically object storage).
	URL string `json:"url" yaml:"url"`

	// Fingerprint is the integrity checksum in "algo:hex" form,
	// e.g. "md5:0a1b..." or "sha256:...".
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// checksumHexLen maps supported checksum algorithms to their hex length.
var checksumHexLen = map[string]int{
	"md5":    32,
	"sha1":   40,
	"sha256": 64,
}

// Validate checks the file reference for a usable URL and a
// well-formed fingerprint.
func (f FileRef) Validate() error {
	if f.URL == "" {
		return fmt.Errorf("file url is required")
	}

	algo, sum, found := strings.Cut(f.Fingerprint, ":")
	if !found {
		return fmt.Errorf("fingerprint must be in algo:hex form, got %q", f.Fingerprint)
	}

	wantLen, ok := checksumHexLen[algo]
	if !ok {
		return fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
	if len(sum) != wantLen {
		return fmt.Errorf("%s checksum must be %d hex characters, got %d", algo, wantLen, len(sum))
	}
	if _, err := hex.DecodeString(sum); err != nil {
		return fmt.Errorf("checksum is not valid hex: %w", err)
	}

	return nil
}

// ReadyConditions gate a conditional task's execution.
type ReadyConditions struct {
	// BatteryCapacity is the battery percentage floor the drone must
	// exceed before the task may start.
	BatteryCapacity int `json:"battery_capacity" yaml:"battery_capacity"`

	// BeginTime is the start of the execution window.
	BeginTime time.Time `json:"begin_time" yaml:"begin_time"`

	// EndTime is the end of the execution window.
	EndTime time.Time `json:"end_time" yaml:"end_time"`
}

// Validate checks the ready conditions for internal consistency.
func (c ReadyConditions) Validate() error {
	if c.BatteryCapacity < 0 || c.BatteryCapacity > 100 {
		return fmt.Errorf("battery capacity must be in [0,100], got %d", c.BatteryCapacity)
	}
	if c.BeginTime.IsZero() || c.EndTime.IsZero() {
		return fmt.Errorf("ready conditions require both begin and end time")
	}
	if !c.EndTime.After(c.BeginTime) {
		return fmt.Errorf("end time must be after begin time")
	}
	return nil
}

// ExecutableConditions gate execution on device-local resources.
type ExecutableConditions struct {
	// StorageCapacityMB is the minimum free storage required on the
	// executing device.
	StorageCapacityMB int64 `json:"storage_capacity_mb" yaml:"storage_capacity_mb"`
}

// Validate checks the executable conditions.
func (c ExecutableConditions) Validate() error {
	if c.StorageCapacityMB < 0 {
		return fmt.Errorf("storage capacity cannot be negative")
	}
	return nil
}

// TaskConfig is the prepare-time configuration of a flight task.
// Safety fields are carried through to the device and are otherwise
// inert to the state machine.
type TaskConfig struct {
	TaskType    TaskType    `json:"task_type" yaml:"task_type"`
	WaylineType WaylineType `json:"wayline_type" yaml:"wayline_type"`

	// ExecuteTime is required for timed tasks.
	ExecuteTime *time.Time `json:"execute_time,omitempty" yaml:"execute_time,omitempty"`

	// ReadyConditions are required for conditional tasks.
	ReadyConditions *ReadyConditions `json:"ready_conditions,omitempty" yaml:"ready_conditions,omitempty"`

	// ExecutableConditions are optional device-resource gates.
	ExecutableConditions *ExecutableConditions `json:"executable_conditions,omitempty" yaml:"executable_conditions,omitempty"`

	RthAltitude           int                   `json:"rth_altitude" yaml:"rth_altitude"`
	RthMode               RthMode               `json:"rth_mode" yaml:"rth_mode"`
	OutOfControlAction    OutOfControlAction    `json:"out_of_control_action" yaml:"out_of_control_action"`
	ExitWaylineOnLinkLost ExitWaylineOnLinkLost `json:"exit_wayline_when_lost" yaml:"exit_wayline_when_lost"`
}

// Validate checks task-type-specific requirements: timed tasks must
// carry a schedule, conditional tasks must carry ready conditions.
func (c *TaskConfig) Validate() error {
	if !c.TaskType.IsValid() {
		return fmt.Errorf("invalid task type %q", c.TaskType)
	}
	if !c.WaylineType.IsValid() {
		return fmt.Errorf("invalid wayline type %q", c.WaylineType)
	}

	switch c.TaskType {
	case TaskTypeTimed:
		if c.ExecuteTime == nil {
			return fmt.Errorf("timed task requires execute_time")
		}
	case TaskTypeConditional:
		if c.ReadyConditions == nil {
			return fmt.Errorf("conditional task requires ready_conditions")
		}
		if err := c.ReadyConditions.Validate(); err != nil {
			return fmt.Errorf("ready_conditions: %w", err)
		}
	}

	if c.ExecutableConditions != nil {
		if err := c.ExecutableConditions.Validate(); err != nil {
			return fmt.Errorf("executable_conditions: %w", err)
		}
	}

	if c.RthAltitude < 0 {
		return fmt.Errorf("rth altitude cannot be negative")
	}

	return nil
}

// FlightTask is the unit of work: one wayline mission issued to one
// docked drone.
//
// Status, Step and Breakpoint together form the tagged state of the
// machine; CheckInvariants enforces the combinations the type system
// cannot. All mutation goes through the controller/reconciler pair,
// callers only ever see copies.
type FlightTask struct {
	// FlightID is the caller-chosen task identity, unique per device.
	FlightID types.FlightID `json:"flight_id"`

	// DeviceSN is the serial of the dock executing this task.
	DeviceSN string `json:"device_sn"`

	// File is the opaque mission content reference.
	File FileRef `json:"file"`

	// Config is set by Prepare and nil before it.
	Config *TaskConfig `json:"config,omitempty"`

	// Status is the single live lifecycle state.
	Status TaskStatus `json:"status"`

	// Step is the fine-grained execution step. Meaningful only while
	// Status is in_progress; frozen at its last value for display on
	// any transition away.
	Step ExecutionStep `json:"step"`

	// Percent is the wayline completion percentage [0,100].
	Percent int `json:"percent"`

	// Breakpoint is non-nil iff the task has been interrupted while
	// in progress and has not since completed or been canceled.
	Breakpoint *Breakpoint `json:"breakpoint,omitempty"`

	// Reason carries the human-readable cause of a terminal status
	// or interruption.
	Reason string `json:"reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepValid reports whether Step currently carries live execution
// information rather than a frozen display value.
func (t *FlightTask) StepValid() bool {
	return t.Status == TaskStatusInProgress
}

// CheckInvariants verifies the status/step/breakpoint combinations
// that must hold at all times.
func (t *FlightTask) CheckInvariants() error {
	if t.FlightID.IsZero() {
		return fmt.Errorf("flight id is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status %q", t.Status)
	}
	if t.Status == TaskStatusSent && t.Breakpoint != nil {
		return fmt.Errorf("a sent task cannot carry a breakpoint")
	}
	if t.Status == TaskStatusPaused && t.Breakpoint != nil {
		if err := t.Breakpoint.Validate(); err != nil {
			return fmt.Errorf("paused task carries invalid breakpoint: %w", err)
		}
	}
	if t.Percent < 0 || t.Percent > 100 {
		return fmt.Errorf("percent out of range: %d", t.Percent)
	}
	if t.Status.IsTerminal() && t.CompletedAt == nil {
		return fmt.Errorf("terminal task missing completion time")
	}
	return nil
}

// Clone returns a deep copy. The controller hands copies to callers so
// task state is never mutated outside the per-task writer.
func (t *FlightTask) Clone() *FlightTask {
	cp := *t
	if t.Config != nil {
		cfg := *t.Config
		if t.Config.ExecuteTime != nil {
			et := *t.Config.ExecuteTime
			cfg.ExecuteTime = &et
		}
		if t.Config.ReadyConditions != nil {
			rc := *t.Config.ReadyConditions
			cfg.ReadyConditions = &rc
		}
		if t.Config.ExecutableConditions != nil {
			ec := *t.Config.ExecutableConditions
			cfg.ExecutableConditions = &ec
		}
		cp.Config = &cfg
	}
	if t.Breakpoint != nil {
		bp := *t.Breakpoint
		cp.Breakpoint = &bp
	}
	if t.StartedAt != nil {
		st := *t.StartedAt
		cp.StartedAt = &st
	}
	if t.CompletedAt != nil {
		ct := *t.CompletedAt
		cp.CompletedAt = &ct
	}
	return &cp
}

// GetDuration returns the task execution duration, or 0 if the task
// has not started.
func (t *FlightTask) GetDuration() time.Duration {
	if t.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if t.CompletedAt != nil {
		end = *t.CompletedAt
	}
	return end.Sub(*t.StartedAt)
}
