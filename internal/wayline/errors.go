package wayline

import (
	"errors"
	"fmt"

	"github.com/leebs0521/wayline-core/internal/types"
)

// TaskErrorCode identifies the caller-facing failure classes of the
// lifecycle operations.
type TaskErrorCode string

const (
	// ErrTaskNotFound indicates no live task exists for the flight id.
	ErrTaskNotFound TaskErrorCode = "task_not_found"

	// ErrTaskDuplicate indicates a live, non-terminal task already
	// exists for the flight id.
	ErrTaskDuplicate TaskErrorCode = "duplicate_task"

	// ErrTaskInvalidFile indicates the mission file reference is
	// malformed (bad URL or checksum).
	ErrTaskInvalidFile TaskErrorCode = "invalid_file"

	// ErrTaskInvalidState indicates the lifecycle intent is not legal
	// from the task's current status.
	ErrTaskInvalidState TaskErrorCode = "invalid_state"

	// ErrTaskPreconditionNotMet indicates execution conditions
	// (time window, battery, storage) are not currently satisfied.
	ErrTaskPreconditionNotMet TaskErrorCode = "precondition_not_met"

	// ErrTaskDeviceBusy indicates the device reports another task
	// already running.
	ErrTaskDeviceBusy TaskErrorCode = "device_busy"

	// ErrTaskMissingBreakpoint indicates resume was requested with no
	// stored breakpoint.
	ErrTaskMissingBreakpoint TaskErrorCode = "missing_breakpoint"

	// ErrTaskInvalidBreakpoint indicates the stored breakpoint failed
	// validation at resume.
	ErrTaskInvalidBreakpoint TaskErrorCode = "invalid_breakpoint"

	// ErrTaskCommandInFlight indicates another lifecycle command for
	// this task is still awaiting its device response. Retrying
	// immediately is not useful; wait for the outstanding command.
	ErrTaskCommandInFlight TaskErrorCode = "command_in_flight"

	// ErrTaskDeviceUnreachable indicates the dispatched command timed
	// out. The outcome is unknown, not failed; the next progress event
	// is authoritative.
	ErrTaskDeviceUnreachable TaskErrorCode = "device_unreachable"

	// ErrTaskRejectedByDevice indicates the device nacked the command
	// with a terminal error code.
	ErrTaskRejectedByDevice TaskErrorCode = "rejected_by_device"

	// ErrTaskInternal indicates an internal engine error.
	ErrTaskInternal TaskErrorCode = "internal_error"
)

// TaskError represents a task-specific error with code and context.
// It implements the error interface and supports errors.Is/As.
type TaskError struct {
	// Code identifies the specific error type.
	Code TaskErrorCode

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error (optional).
	Cause error

	// Context provides additional contextual information.
	Context map[string]any
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap enables errors.Is and errors.As over the cause chain.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a TaskError with the same code.
func (e *TaskError) Is(target error) bool {
	var taskErr *TaskError
	if errors.As(target, &taskErr) {
		return e.Code == taskErr.Code
	}
	return false
}

// WithContext adds contextual information to the error.
func (e *TaskError) WithContext(key string, value any) *TaskError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewTaskError creates a new TaskError with the given code and message.
func NewTaskError(code TaskErrorCode, message string) *TaskError {
	return &TaskError{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WrapTaskError wraps an existing error with task error context.
func WrapTaskError(code TaskErrorCode, message string, cause error) *TaskError {
	return &TaskError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// Helper constructors for the common lifecycle errors.

// NewNotFoundError creates a task not found error.
func NewNotFoundError(flightID types.FlightID) *TaskError {
	return NewTaskError(ErrTaskNotFound, fmt.Sprintf("flight task not found: %s", flightID)).
		WithContext("flight_id", flightID.String())
}

// NewDuplicateError creates a duplicate task error.
func NewDuplicateError(flightID types.FlightID) *TaskError {
	return NewTaskError(ErrTaskDuplicate, fmt.Sprintf("flight task already live: %s", flightID)).
		WithContext("flight_id", flightID.String())
}

// NewInvalidFileError creates an invalid mission file error.
func NewInvalidFileError(cause error) *TaskError {
	return WrapTaskError(ErrTaskInvalidFile, "invalid mission file reference", cause)
}

// NewInvalidStateError creates an invalid state transition error.
func NewInvalidStateError(current TaskStatus, intent string) *TaskError {
	return NewTaskError(
		ErrTaskInvalidState,
		fmt.Sprintf("%s is not legal from status %s", intent, current),
	).WithContext("current_status", current.String()).
		WithContext("intent", intent)
}

// NewPreconditionError creates a precondition not met error.
func NewPreconditionError(reason string) *TaskError {
	return NewTaskError(ErrTaskPreconditionNotMet, fmt.Sprintf("precondition not met: %s", reason))
}

// NewDeviceBusyError creates a device busy error.
func NewDeviceBusyError(deviceSN string) *TaskError {
	return NewTaskError(ErrTaskDeviceBusy, fmt.Sprintf("device %s is already running a task", deviceSN)).
		WithContext("device_sn", deviceSN)
}

// NewMissingBreakpointError creates a missing breakpoint error.
func NewMissingBreakpointError(flightID types.FlightID) *TaskError {
	return NewTaskError(ErrTaskMissingBreakpoint,
		fmt.Sprintf("no breakpoint stored for task %s", flightID)).
		WithContext("flight_id", flightID.String())
}

// NewInvalidBreakpointError creates an invalid breakpoint error.
func NewInvalidBreakpointError(cause error) *TaskError {
	return WrapTaskError(ErrTaskInvalidBreakpoint, "stored breakpoint failed validation", cause)
}

// NewCommandInFlightError creates a command in flight error.
func NewCommandInFlightError(flightID types.FlightID) *TaskError {
	return NewTaskError(ErrTaskCommandInFlight,
		fmt.Sprintf("another command for task %s is awaiting its device response", flightID)).
		WithContext("flight_id", flightID.String())
}

// NewDeviceUnreachableError creates a device unreachable (command
// timeout) error. The command may still have taken effect on the
// device; the outcome is unknown until the next progress event.
func NewDeviceUnreachableError(deviceSN string, cause error) *TaskError {
	return WrapTaskError(ErrTaskDeviceUnreachable,
		fmt.Sprintf("no response from device %s", deviceSN), cause).
		WithContext("device_sn", deviceSN)
}

// NewRejectedByDeviceError creates an error for a device nack.
func NewRejectedByDeviceError(code int, message string) *TaskError {
	return NewTaskError(ErrTaskRejectedByDevice,
		fmt.Sprintf("device rejected command: %s (code %d)", message, code)).
		WithContext("device_code", code)
}

// IsNotFoundError checks if an error is a task not found error.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrTaskNotFound)
}

// IsDuplicateError checks if an error is a duplicate task error.
func IsDuplicateError(err error) bool {
	return hasCode(err, ErrTaskDuplicate)
}

// IsInvalidFileError checks if an error is an invalid file error.
func IsInvalidFileError(err error) bool {
	return hasCode(err, ErrTaskInvalidFile)
}

// IsPreconditionError checks if an error is a precondition not met error.
func IsPreconditionError(err error) bool {
	return hasCode(err, ErrTaskPreconditionNotMet)
}

// IsMissingBreakpointError checks if an error is a missing breakpoint error.
func IsMissingBreakpointError(err error) bool {
	return hasCode(err, ErrTaskMissingBreakpoint)
}

// IsInvalidBreakpointError checks if an error is an invalid breakpoint error.
func IsInvalidBreakpointError(err error) bool {
	return hasCode(err, ErrTaskInvalidBreakpoint)
}

// IsRejectedByDeviceError checks if an error is a device nack error.
func IsRejectedByDeviceError(err error) bool {
	return hasCode(err, ErrTaskRejectedByDevice)
}

// IsInvalidStateError checks if an error is an invalid state error.
func IsInvalidStateError(err error) bool {
	return hasCode(err, ErrTaskInvalidState)
}

// IsCommandInFlightError checks if an error is a command in flight error.
func IsCommandInFlightError(err error) bool {
	return hasCode(err, ErrTaskCommandInFlight)
}

// IsDeviceUnreachableError checks if an error is a device unreachable error.
func IsDeviceUnreachableError(err error) bool {
	return hasCode(err, ErrTaskDeviceUnreachable)
}

// IsDeviceBusyError checks if an error is a device busy error.
func IsDeviceBusyError(err error) bool {
	return hasCode(err, ErrTaskDeviceBusy)
}

func hasCode(err error, code TaskErrorCode) bool {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Code == code
	}
	return false
}
