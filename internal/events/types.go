package events

import (
	"time"
)

// EventType identifies the category and nature of an event.
type EventType string

// Task lifecycle events.
const (
	EventTaskCreated   EventType = "task.created"
	EventTaskPrepared  EventType = "task.prepared"
	EventTaskStarted   EventType = "task.started"
	EventTaskProgress  EventType = "task.progress"
	EventTaskPaused    EventType = "task.paused"
	EventTaskResumed   EventType = "task.resumed"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"
	EventTaskCanceled  EventType = "task.canceled"
	EventTaskTimeout   EventType = "task.timeout"
	EventTaskEvicted   EventType = "task.evicted"
)

// Breakpoint and return-home events.
const (
	EventBreakpointStored EventType = "breakpoint.stored"
	EventReturnHome       EventType = "rth.triggered"
	EventReturnHomeCancel EventType = "rth.canceled"
)

// System events.
const (
	EventSystemStarted EventType = "system.started"
	EventDeviceOnline  EventType = "device.online"
	EventDeviceOffline EventType = "device.offline"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// Event is one bus message. It is JSON-serializable so notification
// layers can forward it unchanged.
type Event struct {
	// Type identifies the category and nature of the event.
	Type EventType `json:"type"`

	// Timestamp records when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// FlightID associates the event with a flight task (empty for
	// system events).
	FlightID string `json:"flight_id,omitempty"`

	// DeviceSN identifies the device involved, if any.
	DeviceSN string `json:"device_sn,omitempty"`

	// Payload contains event-specific typed data.
	Payload any `json:"payload,omitempty"`

	// Attrs contains additional key-value metadata.
	Attrs map[string]any `json:"attrs,omitempty"`
}

// StatusChangePayload is the payload of every status-bearing task
// event: the old and new lifecycle status plus the human reason.
type StatusChangePayload struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
}

// ProgressPayload is the payload of task.progress events.
type ProgressPayload struct {
	Step    string `json:"step"`
	Percent int    `json:"percent"`
}

// Filter defines criteria for filtering events in subscriptions.
// All fields use AND logic; empty fields act as wildcards.
type Filter struct {
	// Types filters by event types (empty = all types).
	Types []EventType `json:"types,omitempty"`

	// FlightID filters by flight task (empty = all tasks).
	FlightID string `json:"flight_id,omitempty"`

	// DeviceSN filters by device (empty = all devices).
	DeviceSN string `json:"device_sn,omitempty"`
}

// Matches determines if the given event matches this filter.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) > 0 {
		matched := false
		for _, t := range f.Types {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.FlightID != "" && event.FlightID != f.FlightID {
		return false
	}

	if f.DeviceSN != "" && event.DeviceSN != f.DeviceSN {
		return false
	}

	return true
}
