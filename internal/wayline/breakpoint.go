package wayline

import (
	"fmt"
	"sync"

	"github.com/leebs0521/wayline-core/internal/types"
)

// BreakpointState says where on the route execution was interrupted.
type BreakpointState string

const (
	// BreakpointOnSegment means the drone stopped partway along a
	// segment between two waypoints.
	BreakpointOnSegment BreakpointState = "on_segment"

	// BreakpointOnWaypoint means the drone stopped exactly on a
	// waypoint. Waypoint breakpoints do not carry partial-segment
	// progress.
	BreakpointOnWaypoint BreakpointState = "on_waypoint"
)

// IsValid checks if the BreakpointState is a valid value.
func (s BreakpointState) IsValid() bool {
	return s == BreakpointOnSegment || s == BreakpointOnWaypoint
}

// BreakReason is the closed taxonomy of interruption causes reported
// with a breakpoint.
type BreakReason string

const (
	BreakReasonNone                BreakReason = ""
	BreakReasonUserPause           BreakReason = "user_pause"
	BreakReasonUserReturnHome      BreakReason = "user_return_home"
	BreakReasonProtocolError       BreakReason = "protocol_error"
	BreakReasonLinkLost            BreakReason = "link_lost"
	BreakReasonLowBattery          BreakReason = "low_battery"
	BreakReasonHeightLimit         BreakReason = "height_limit"
	BreakReasonDistanceLimit       BreakReason = "distance_limit"
	BreakReasonGeofence            BreakReason = "geofence"
	BreakReasonObstacleAvoidance   BreakReason = "obstacle_avoidance"
	BreakReasonPoorPositioning     BreakReason = "poor_positioning"
	BreakReasonRtkDegraded         BreakReason = "rtk_degraded"
	BreakReasonStrongWind          BreakReason = "strong_wind"
	BreakReasonAmbientLight        BreakReason = "ambient_light"
	BreakReasonFileError           BreakReason = "file_error"
	BreakReasonFileChecksum        BreakReason = "file_checksum_mismatch"
	BreakReasonInvalidMissionIndex BreakReason = "invalid_mission_index"
	BreakReasonInvalidBreakpoint   BreakReason = "invalid_breakpoint"
	BreakReasonFirmware            BreakReason = "firmware_error"
)

// IsValid checks if the BreakReason belongs to the taxonomy. The empty
// reason is valid: devices omit it on plain user pauses.
func (r BreakReason) IsValid() bool {
	switch r {
	case BreakReasonNone, BreakReasonUserPause, BreakReasonUserReturnHome,
		BreakReasonProtocolError, BreakReasonLinkLost, BreakReasonLowBattery,
		BreakReasonHeightLimit, BreakReasonDistanceLimit, BreakReasonGeofence,
		BreakReasonObstacleAvoidance, BreakReasonPoorPositioning,
		BreakReasonRtkDegraded, BreakReasonStrongWind, BreakReasonAmbientLight,
		BreakReasonFileError, BreakReasonFileChecksum,
		BreakReasonInvalidMissionIndex, BreakReasonInvalidBreakpoint,
		BreakReasonFirmware:
		return true
	default:
		return false
	}
}

// Breakpoint is the resumable snapshot of an interrupted task.
// The position fields are advisory: they are used for display and
// sanity-checking resume requests, never for re-planning.
type Breakpoint struct {
	// WaylineID is the sub-route index within the mission, 0 for the
	// first.
	WaylineID int `json:"wayline_id"`

	// Index is the waypoint/segment ordinal, >= 0.
	Index int `json:"index"`

	// State says whether the interruption happened on a segment or
	// exactly on a waypoint.
	State BreakpointState `json:"state"`

	// Progress is the fraction [0,1] of the current segment flown.
	Progress float64 `json:"progress"`

	// BreakReason is the cause of the interruption.
	BreakReason BreakReason `json:"break_reason,omitempty"`

	// Position at interruption.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Height    float64 `json:"height"`
	Heading   float64 `json:"heading"`
}

// Validate checks the breakpoint for internal consistency. A waypoint
// breakpoint must sit exactly on a segment boundary (progress 0 or 1);
// partial-segment progress is only meaningful on a segment.
func (b *Breakpoint) Validate() error {
	if b == nil {
		return fmt.Errorf("breakpoint is nil")
	}
	if b.WaylineID < 0 {
		return fmt.Errorf("wayline id cannot be negative: %d", b.WaylineID)
	}
	if b.Index < 0 {
		return fmt.Errorf("breakpoint index cannot be negative: %d", b.Index)
	}
	if !b.State.IsValid() {
		return fmt.Errorf("invalid breakpoint state %q", b.State)
	}
	if b.Progress < 0 || b.Progress > 1 {
		return fmt.Errorf("breakpoint progress must be in [0,1], got %v", b.Progress)
	}
	if b.State == BreakpointOnWaypoint && b.Progress != 0 && b.Progress != 1 {
		return fmt.Errorf("waypoint breakpoint must be on a segment boundary, got progress %v", b.Progress)
	}
	if !b.BreakReason.IsValid() {
		return fmt.Errorf("unknown break reason %q", b.BreakReason)
	}
	return nil
}

// BreakpointStore holds the last captured resume point per task.
// Every breakpoint that passes validation is stored, regardless of the
// carrying event's target status, so a subsequent pause or interruption
// always has the most recent resumable snapshot.
type BreakpointStore struct {
	mu   sync.RWMutex
	byID map[types.FlightID]*Breakpoint
}

// NewBreakpointStore creates an empty breakpoint store.
func NewBreakpointStore() *BreakpointStore {
	return &BreakpointStore{
		byID: make(map[types.FlightID]*Breakpoint),
	}
}

// Put validates and stores the breakpoint for a task, replacing any
// previous snapshot. Invalid breakpoints are rejected, not coerced.
func (s *BreakpointStore) Put(flightID types.FlightID, bp *Breakpoint) error {
	if err := bp.Validate(); err != nil {
		return err
	}

	cp := *bp
	s.mu.Lock()
	s.byID[flightID] = &cp
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the stored breakpoint, or nil if none exists.
func (s *BreakpointStore) Get(flightID types.FlightID) *Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bp, ok := s.byID[flightID]
	if !ok {
		return nil
	}
	cp := *bp
	return &cp
}

// Clear removes the stored breakpoint for a task. Called when the task
// completes, is canceled, or is evicted.
func (s *BreakpointStore) Clear(flightID types.FlightID) {
	s.mu.Lock()
	delete(s.byID, flightID)
	s.mu.Unlock()
}

// Len returns the number of stored breakpoints. Useful for tests and
// retention accounting.
func (s *BreakpointStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
