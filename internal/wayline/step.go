package wayline

import "fmt"

// ExecutionStep is the fine-grained step a running task is in.
// Steps only ever move forward within one execution attempt; a resume
// restarts the sequence from a step appropriate to the stored
// breakpoint, not necessarily from StepInitial.
type ExecutionStep int

const (
	// StepInitial is the step a task enters in on device acknowledgment.
	StepInitial ExecutionStep = 0

	// Pre-flight checks.
	StepPreCheckBegin           ExecutionStep = 1
	StepPreCheckDroneState      ExecutionStep = 2
	StepPreCheckBattery         ExecutionStep = 3
	StepPreCheckStorage         ExecutionStep = 4
	StepPreCheckPropellers      ExecutionStep = 5
	StepPreCheckObstacleSensing ExecutionStep = 6
	StepPreCheckPositioning     ExecutionStep = 7
	StepPreCheckFlightControl   ExecutionStep = 8

	// Dock preparation.
	StepPrepareBegin         ExecutionStep = 9
	StepPrepareStopCharging  ExecutionStep = 10
	StepPrepareCoverOpen     ExecutionStep = 11
	StepPreparePushRodOpen   ExecutionStep = 12
	StepPrepareDroneWake     ExecutionStep = 13
	StepPrepareRtkSourceSet  ExecutionStep = 14
	StepPrepareRtkConverge   ExecutionStep = 15
	StepPrepareGetControl    ExecutionStep = 16
	StepPrepareFlightClear   ExecutionStep = 17

	// Mission file transfer to the drone.
	StepFileTransferBegin    ExecutionStep = 18
	StepFileTransferUpload   ExecutionStep = 19
	StepFileTransferVerify   ExecutionStep = 20
	StepFileTransferLoad     ExecutionStep = 21

	// Takeoff.
	StepTakeoffRequest ExecutionStep = 22
	StepTakeoffAscend  ExecutionStep = 23
	StepTakeoffTransit ExecutionStep = 24

	// Wayline execution proper.
	StepWaylineEnter     ExecutionStep = 25
	StepWaylineExecution ExecutionStep = 26
	StepWaylineExit      ExecutionStep = 27

	// Return and landing.
	StepReturnRequest  ExecutionStep = 28
	StepReturnTransit  ExecutionStep = 29
	StepReturnApproach ExecutionStep = 30
	StepLandingAlign   ExecutionStep = 31
	StepLandingDescend ExecutionStep = 32
	StepLandingDone    ExecutionStep = 33

	// Dock stow and post-flight.
	StepPostPushRodClose ExecutionStep = 34
	StepPostCoverClose   ExecutionStep = 35
	StepPostStartCharge  ExecutionStep = 36

	// Log and media retrieval.
	StepLogListRequest  ExecutionStep = 37
	StepLogUpload       ExecutionStep = 38
	StepMediaUpload     ExecutionStep = 39

	// StepFinished is reported together with the terminal status.
	StepFinished ExecutionStep = 40
)

// StepUnknown marks a step value this core does not recognize.
// Device firmware occasionally reports vendor-specific steps; they are
// carried through for display but never advance the catalog.
const StepUnknown ExecutionStep = -1

var stepNames = map[ExecutionStep]string{
	StepInitial:                 "initial",
	StepPreCheckBegin:           "pre_check_begin",
	StepPreCheckDroneState:      "pre_check_drone_state",
	StepPreCheckBattery:         "pre_check_battery",
	StepPreCheckStorage:         "pre_check_storage",
	StepPreCheckPropellers:      "pre_check_propellers",
	StepPreCheckObstacleSensing: "pre_check_obstacle_sensing",
	StepPreCheckPositioning:     "pre_check_positioning",
	StepPreCheckFlightControl:   "pre_check_flight_control",
	StepPrepareBegin:            "prepare_begin",
	StepPrepareStopCharging:     "prepare_stop_charging",
	StepPrepareCoverOpen:        "prepare_cover_open",
	StepPreparePushRodOpen:      "prepare_push_rod_open",
	StepPrepareDroneWake:        "prepare_drone_wake",
	StepPrepareRtkSourceSet:     "prepare_rtk_source_set",
	StepPrepareRtkConverge:      "prepare_rtk_converge",
	StepPrepareGetControl:       "prepare_get_control",
	StepPrepareFlightClear:      "prepare_flight_clearance",
	StepFileTransferBegin:       "file_transfer_begin",
	StepFileTransferUpload:      "file_transfer_upload",
	StepFileTransferVerify:      "file_transfer_verify",
	StepFileTransferLoad:        "file_transfer_load",
	StepTakeoffRequest:          "takeoff_request",
	StepTakeoffAscend:           "takeoff_ascend",
	StepTakeoffTransit:          "takeoff_transit",
	StepWaylineEnter:            "wayline_enter",
	StepWaylineExecution:        "wayline_execution",
	StepWaylineExit:             "wayline_exit",
	StepReturnRequest:           "return_request",
	StepReturnTransit:           "return_transit",
	StepReturnApproach:          "return_approach",
	StepLandingAlign:            "landing_align",
	StepLandingDescend:          "landing_descend",
	StepLandingDone:             "landing_done",
	StepPostPushRodClose:        "post_push_rod_close",
	StepPostCoverClose:          "post_cover_close",
	StepPostStartCharge:         "post_start_charge",
	StepLogListRequest:          "log_list_request",
	StepLogUpload:               "log_upload",
	StepMediaUpload:             "media_upload",
	StepFinished:                "finished",
}

// String returns the step name, or "unknown(n)" for unrecognized values.
func (s ExecutionStep) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// IsKnown reports whether the step belongs to the catalog.
func (s ExecutionStep) IsKnown() bool {
	_, ok := stepNames[s]
	return ok
}

// ComesAfter reports whether s is a forward move from prev within one
// execution attempt. Equal steps are forward (progress-only updates
// re-report the current step).
func (s ExecutionStep) ComesAfter(prev ExecutionStep) bool {
	if !s.IsKnown() || !prev.IsKnown() {
		return false
	}
	return s >= prev
}

// ResumeEntryStep is the step a resumed task restarts in. The dock
// re-acquires drone control and re-enters the wayline at the stored
// breakpoint, skipping pre-flight and file transfer.
func ResumeEntryStep(bp *Breakpoint) ExecutionStep {
	if bp == nil {
		return StepInitial
	}
	return StepPrepareGetControl
}
