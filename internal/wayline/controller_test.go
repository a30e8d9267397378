package wayline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leebs0521/wayline-core/internal/registry"
	"github.com/leebs0521/wayline-core/internal/transport"
	"github.com/leebs0521/wayline-core/internal/types"
)

const testDeviceSN = "1581F5BKD228Q00A826F"

type testRig struct {
	controller *Controller
	reconciler *Reconciler
	transport  *transport.MemoryTransport
	registry   *registry.StaticRegistry
	store      *MemoryTaskStore
	audit      *MemoryTransitionLog
}

func setupTestRig(t *testing.T) *testRig {
	t.Helper()

	tr := transport.NewMemoryTransport()
	reg := registry.NewStaticRegistry(map[string]registry.StaticDevice{
		testDeviceSN: {Online: true, HasControl: true, BatteryPercent: 90, FreeStorageMB: 4096},
	})
	store := NewMemoryTaskStore()
	audit := NewMemoryTransitionLog()

	// Short timeout keeps scripted-silence tests fast.
	dispatcher := NewDispatcher(tr, 100*time.Millisecond, nil)
	controller := NewController(dispatcher, reg, store, audit, nil)

	return &testRig{
		controller: controller,
		reconciler: controller.Reconciler(),
		transport:  tr,
		registry:   reg,
		store:      store,
		audit:      audit,
	}
}

func validFile() FileRef {
	return FileRef{
		URL:         "s3://waylines/survey-a.kmz",
		Fingerprint: "md5:0a1b2c3d4e5f60718293a4b5c6d7e8f9",
	}
}

func immediateConfig() *TaskConfig {
	return &TaskConfig{
		TaskType:           TaskTypeImmediate,
		WaylineType:        WaylineTypeWaypoint,
		RthAltitude:        100,
		OutOfControlAction: OutOfControlReturnHome,
	}
}

// startTask creates, prepares and executes an immediate task with a
// scripted device ack, leaving it in progress.
func startTask(t *testing.T, rig *testRig, flightID string) types.FlightID {
	t.Helper()
	ctx := context.Background()

	_, err := rig.controller.Create(ctx, flightID, testDeviceSN, validFile())
	require.NoError(t, err)

	fid := types.FlightID(flightID)
	require.NoError(t, rig.controller.Prepare(ctx, fid, immediateConfig()))

	rig.transport.ScriptAck(testDeviceSN, MethodTaskExecute)
	require.NoError(t, rig.controller.Execute(ctx, fid))
	return fid
}

func mustGet(t *testing.T, rig *testRig, fid types.FlightID) *FlightTask {
	t.Helper()
	task, err := rig.controller.GetTask(context.Background(), fid)
	require.NoError(t, err)
	return task
}

func TestControllerCreate(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	t.Run("creates in sent", func(t *testing.T) {
		task, err := rig.controller.Create(ctx, "f-create", testDeviceSN, validFile())
		require.NoError(t, err)
		assert.Equal(t, TaskStatusSent, task.Status)
		assert.Equal(t, StepInitial, task.Step)
		assert.Nil(t, task.Breakpoint)
	})

	t.Run("re-delivered create is a no-op", func(t *testing.T) {
		task, err := rig.controller.Create(ctx, "f-create", testDeviceSN, validFile())
		require.NoError(t, err)
		assert.Equal(t, TaskStatusSent, task.Status)
	})

	t.Run("duplicate flight id with different file", func(t *testing.T) {
		other := validFile()
		other.Fingerprint = "md5:ffffffffffffffffffffffffffffffff"
		_, err := rig.controller.Create(ctx, "f-create", testDeviceSN, other)
		require.Error(t, err)
		assert.True(t, IsDuplicateError(err))
	})

	t.Run("malformed fingerprint", func(t *testing.T) {
		bad := validFile()
		bad.Fingerprint = "md5-no-colon"
		_, err := rig.controller.Create(ctx, "f-badfile", testDeviceSN, bad)
		require.Error(t, err)
		assert.True(t, IsInvalidFileError(err))
	})

	t.Run("terminal task still blocks id reuse", func(t *testing.T) {
		fid := startTask(t, rig, "f-reuse")
		rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusOK})
		require.Equal(t, TaskStatusOK, mustGet(t, rig, fid).Status)

		_, err := rig.controller.Create(ctx, "f-reuse", testDeviceSN, validFile())
		require.Error(t, err)
		assert.True(t, IsDuplicateError(err))
	})
}

func TestControllerPrepare(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	_, err := rig.controller.Create(ctx, "f-prep", testDeviceSN, validFile())
	require.NoError(t, err)
	fid := types.FlightID("f-prep")

	t.Run("timed task requires schedule", func(t *testing.T) {
		err := rig.controller.Prepare(ctx, fid, &TaskConfig{
			TaskType:    TaskTypeTimed,
			WaylineType: WaylineTypeWaypoint,
		})
		require.Error(t, err)
	})

	t.Run("valid config sticks", func(t *testing.T) {
		require.NoError(t, rig.controller.Prepare(ctx, fid, immediateConfig()))
		task := mustGet(t, rig, fid)
		assert.Equal(t, TaskStatusSent, task.Status)
		require.NotNil(t, task.Config)
		assert.Equal(t, TaskTypeImmediate, task.Config.TaskType)
	})

	t.Run("unknown task", func(t *testing.T) {
		err := rig.controller.Prepare(ctx, "f-missing", immediateConfig())
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("not legal once running", func(t *testing.T) {
		running := startTask(t, rig, "f-prep-running")
		err := rig.controller.Prepare(ctx, running, immediateConfig())
		assert.True(t, IsInvalidStateError(err))
	})
}

func TestControllerExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("ack moves to in_progress at initial step", func(t *testing.T) {
		rig := setupTestRig(t)
		fid := startTask(t, rig, "f-exec")

		task := mustGet(t, rig, fid)
		assert.Equal(t, TaskStatusInProgress, task.Status)
		assert.Equal(t, StepInitial, task.Step)
		require.NotNil(t, task.StartedAt)
	})

	t.Run("timeout leaves task sent", func(t *testing.T) {
		rig := setupTestRig(t)
		_, err := rig.controller.Create(ctx, "f-silent", testDeviceSN, validFile())
		require.NoError(t, err)
		require.NoError(t, rig.controller.Prepare(ctx, "f-silent", immediateConfig()))

		rig.transport.ScriptSilence(testDeviceSN, MethodTaskExecute)
		err = rig.controller.Execute(ctx, "f-silent")
		require.Error(t, err)
		assert.True(t, IsDeviceUnreachableError(err))
		assert.Equal(t, TaskStatusSent, mustGet(t, rig, "f-silent").Status)
	})

	t.Run("device busy nack", func(t *testing.T) {
		rig := setupTestRig(t)
		_, err := rig.controller.Create(ctx, "f-busy", testDeviceSN, validFile())
		require.NoError(t, err)
		require.NoError(t, rig.controller.Prepare(ctx, "f-busy", immediateConfig()))

		rig.transport.ScriptNack(testDeviceSN, MethodTaskExecute, 319001, "another task running")
		err = rig.controller.Execute(ctx, "f-busy")
		require.Error(t, err)
		assert.True(t, IsDeviceBusyError(err))
	})

	t.Run("offline device fails precondition", func(t *testing.T) {
		rig := setupTestRig(t)
		rig.registry.Set(testDeviceSN, registry.StaticDevice{Online: false})
		_, err := rig.controller.Create(ctx, "f-offline", testDeviceSN, validFile())
		require.NoError(t, err)
		require.NoError(t, rig.controller.Prepare(ctx, "f-offline", immediateConfig()))

		err = rig.controller.Execute(ctx, "f-offline")
		assert.True(t, IsPreconditionError(err))
		assert.Equal(t, TaskStatusSent, mustGet(t, rig, "f-offline").Status)
	})

	t.Run("unprepared task cannot execute", func(t *testing.T) {
		rig := setupTestRig(t)
		_, err := rig.controller.Create(ctx, "f-raw", testDeviceSN, validFile())
		require.NoError(t, err)
		err = rig.controller.Execute(ctx, "f-raw")
		assert.True(t, IsInvalidStateError(err))
	})

	t.Run("re-delivered execute while running is a no-op", func(t *testing.T) {
		rig := setupTestRig(t)
		fid := startTask(t, rig, "f-again")
		require.NoError(t, rig.controller.Execute(ctx, fid))
		assert.Equal(t, TaskStatusInProgress, mustGet(t, rig, fid).Status)
	})
}

// Scenario: create, execute with ack, mid-flight progress, pause with
// a breakpoint-carrying event.
func TestLifecycleExecutePauseWithBreakpoint(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f1")
	assert.Equal(t, TaskStatusInProgress, mustGet(t, rig, fid).Status)

	step := StepWaylineExecution
	percent := 40
	rig.reconciler.Apply(ctx, ProgressEvent{
		FlightID: fid,
		Status:   TaskStatusInProgress,
		Step:     &step,
		Percent:  &percent,
	})

	task := mustGet(t, rig, fid)
	assert.Equal(t, TaskStatusInProgress, task.Status)
	assert.Equal(t, StepWaylineExecution, task.Step)
	assert.Equal(t, 40, task.Percent)

	rig.transport.ScriptAck(testDeviceSN, MethodTaskPause)
	require.NoError(t, rig.controller.Pause(ctx, fid))

	rig.reconciler.Apply(ctx, ProgressEvent{
		FlightID: fid,
		Status:   TaskStatusPaused,
		Breakpoint: &Breakpoint{
			WaylineID: 0,
			Index:     12,
			State:     BreakpointOnWaypoint,
			Progress:  0,
		},
	})

	task = mustGet(t, rig, fid)
	assert.Equal(t, TaskStatusPaused, task.Status)
	require.NotNil(t, task.Breakpoint)
	assert.Equal(t, 0, task.Breakpoint.WaylineID)
	assert.Equal(t, 12, task.Breakpoint.Index)
	assert.Equal(t, BreakpointOnWaypoint, task.Breakpoint.State)
}

// Scenario: resume from the paused state re-enters in_progress from
// the stored breakpoint.
func TestLifecycleResumeFromBreakpoint(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f1")
	rig.transport.ScriptAck(testDeviceSN, MethodTaskPause)
	require.NoError(t, rig.controller.Pause(ctx, fid))
	rig.reconciler.Apply(ctx, ProgressEvent{
		FlightID: fid,
		Status:   TaskStatusPaused,
		Breakpoint: &Breakpoint{
			WaylineID: 0,
			Index:     12,
			State:     BreakpointOnWaypoint,
			Progress:  0,
		},
	})

	rig.transport.ScriptAck(testDeviceSN, MethodTaskResume)
	require.NoError(t, rig.controller.Resume(ctx, fid))

	task := mustGet(t, rig, fid)
	assert.Equal(t, TaskStatusInProgress, task.Status)
	assert.Equal(t, StepPrepareGetControl, task.Step)

	// The resume request carried the stored breakpoint.
	var resumeReq *transport.RecordedRequest
	for i, req := range rig.transport.Requests() {
		if req.Request.Method == MethodTaskResume {
			resumeReq = &rig.transport.Requests()[i]
		}
	}
	require.NotNil(t, resumeReq)
	data, ok := resumeReq.Request.Data.(map[string]any)
	require.True(t, ok)
	bp, ok := data["breakpoint"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, bp["wayline_id"])
	assert.Equal(t, 12, bp["index"])
}

// Scenario: cancel from in_progress, device confirmation event, then a
// late duplicate in_progress event is discarded.
func TestLifecycleCancelThenLateEventDiscarded(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f1")

	rig.transport.ScriptAck(testDeviceSN, MethodTaskCancel)
	require.NoError(t, rig.controller.Cancel(ctx, fid))
	assert.Equal(t, TaskStatusCanceled, mustGet(t, rig, fid).Status)

	// Device confirmation is a duplicate of what the ack already
	// committed.
	rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusCanceled})
	assert.Equal(t, TaskStatusCanceled, mustGet(t, rig, fid).Status)

	// Late duplicate from the execution phase.
	step := StepWaylineExecution
	rig.reconciler.Apply(ctx, ProgressEvent{
		FlightID: fid,
		Status:   TaskStatusInProgress,
		Step:     &step,
	})
	assert.Equal(t, TaskStatusCanceled, mustGet(t, rig, fid).Status)
}

// Scenario: pause before execution fails and mutates nothing.
func TestPauseFromSentFails(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	_, err := rig.controller.Create(ctx, "f1", testDeviceSN, validFile())
	require.NoError(t, err)

	err = rig.controller.Pause(ctx, "f1")
	require.Error(t, err)
	assert.True(t, IsInvalidStateError(err))
	assert.Equal(t, TaskStatusSent, mustGet(t, rig, "f1").Status)
	assert.Empty(t, rig.transport.Requests())
}

func TestPauseAndResumeStateRules(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-rules")

	t.Run("resume while in_progress fails", func(t *testing.T) {
		err := rig.controller.Resume(ctx, fid)
		assert.True(t, IsInvalidStateError(err))
	})

	rig.transport.ScriptAck(testDeviceSN, MethodTaskPause)
	require.NoError(t, rig.controller.Pause(ctx, fid))

	t.Run("pause while paused fails", func(t *testing.T) {
		err := rig.controller.Pause(ctx, fid)
		assert.True(t, IsInvalidStateError(err))
	})

	t.Run("resume without breakpoint fails", func(t *testing.T) {
		// Device never sent a breakpoint event.
		err := rig.controller.Resume(ctx, fid)
		assert.True(t, IsMissingBreakpointError(err))
		assert.Equal(t, TaskStatusPaused, mustGet(t, rig, fid).Status)
	})
}

func TestControllerCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel from sent is local", func(t *testing.T) {
		rig := setupTestRig(t)
		_, err := rig.controller.Create(ctx, "f-c1", testDeviceSN, validFile())
		require.NoError(t, err)

		require.NoError(t, rig.controller.Cancel(ctx, "f-c1"))
		assert.Equal(t, TaskStatusCanceled, mustGet(t, rig, "f-c1").Status)
		assert.Empty(t, rig.transport.Requests())
	})

	t.Run("cancel already canceled is a no-op", func(t *testing.T) {
		rig := setupTestRig(t)
		_, err := rig.controller.Create(ctx, "f-c2", testDeviceSN, validFile())
		require.NoError(t, err)
		require.NoError(t, rig.controller.Cancel(ctx, "f-c2"))
		require.NoError(t, rig.controller.Cancel(ctx, "f-c2"))
	})

	t.Run("cancel from other terminal fails", func(t *testing.T) {
		rig := setupTestRig(t)
		fid := startTask(t, rig, "f-c3")
		rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusOK})

		err := rig.controller.Cancel(ctx, fid)
		assert.True(t, IsInvalidStateError(err))
	})

	t.Run("cancel clears the breakpoint", func(t *testing.T) {
		rig := setupTestRig(t)
		fid := startTask(t, rig, "f-c4")
		rig.transport.ScriptAck(testDeviceSN, MethodTaskPause)
		require.NoError(t, rig.controller.Pause(ctx, fid))
		rig.reconciler.Apply(ctx, ProgressEvent{
			FlightID: fid,
			Status:   TaskStatusPaused,
			Breakpoint: &Breakpoint{
				WaylineID: 0, Index: 3, State: BreakpointOnSegment, Progress: 0.5,
			},
		})

		rig.transport.ScriptAck(testDeviceSN, MethodTaskCancel)
		require.NoError(t, rig.controller.Cancel(ctx, fid))

		task := mustGet(t, rig, fid)
		assert.Equal(t, TaskStatusCanceled, task.Status)
		assert.Nil(t, task.Breakpoint)
		assert.Nil(t, rig.controller.Breakpoints().Get(fid))
	})
}

func TestTerminalIsSticky(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-done")
	rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusOK})
	require.Equal(t, TaskStatusOK, mustGet(t, rig, fid).Status)

	for _, ev := range []ProgressEvent{
		{FlightID: fid, Status: TaskStatusInProgress},
		{FlightID: fid, Status: TaskStatusFailed},
		{FlightID: fid, Status: TaskStatusPaused},
	} {
		rig.reconciler.Apply(ctx, ev)
		assert.Equal(t, TaskStatusOK, mustGet(t, rig, fid).Status)
	}

	assert.True(t, IsInvalidStateError(rig.controller.Pause(ctx, fid)))
	assert.True(t, IsInvalidStateError(rig.controller.Resume(ctx, fid)))
	assert.True(t, IsInvalidStateError(rig.controller.Execute(ctx, fid)))
}

func TestCommandInFlightRejected(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-race")

	// Block the pause inside the device call; a concurrent cancel must
	// be rejected, not queued.
	entered := make(chan struct{})
	release := make(chan struct{})
	rig.transport.Script(testDeviceSN, MethodTaskPause, func(req transport.Request) *transport.Reply {
		close(entered)
		<-release
		return &transport.Reply{Tid: req.Tid, Code: CodeSuccess}
	})

	pauseDone := make(chan error, 1)
	go func() {
		pauseDone <- rig.controller.Pause(ctx, fid)
	}()
	<-entered

	err := rig.controller.Cancel(ctx, fid)
	require.Error(t, err)
	assert.True(t, IsCommandInFlightError(err))

	close(release)
	require.NoError(t, <-pauseDone)
	assert.Equal(t, TaskStatusPaused, mustGet(t, rig, fid).Status)
}

func TestCancelWhileExecuteInFlightRejected(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	_, err := rig.controller.Create(ctx, "f-exec-race", testDeviceSN, validFile())
	require.NoError(t, err)
	fid := types.FlightID("f-exec-race")
	require.NoError(t, rig.controller.Prepare(ctx, fid, immediateConfig()))

	// Block the execute inside the device call. The task still reads
	// sent, but the outstanding command owns it: cancel must be
	// rejected, not committed locally while the device may already be
	// starting the mission.
	entered := make(chan struct{})
	release := make(chan struct{})
	rig.transport.Script(testDeviceSN, MethodTaskExecute, func(req transport.Request) *transport.Reply {
		close(entered)
		<-release
		return &transport.Reply{Tid: req.Tid, Code: CodeSuccess}
	})

	execDone := make(chan error, 1)
	go func() {
		execDone <- rig.controller.Execute(ctx, fid)
	}()
	<-entered

	err = rig.controller.Cancel(ctx, fid)
	require.Error(t, err)
	assert.True(t, IsCommandInFlightError(err))
	assert.Equal(t, TaskStatusSent, mustGet(t, rig, fid).Status)

	close(release)
	require.NoError(t, <-execDone)
	assert.Equal(t, TaskStatusInProgress, mustGet(t, rig, fid).Status)
}

func TestExecuteNackFailsUnstartedTask(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	_, err := rig.controller.Create(ctx, "f-no-file", testDeviceSN, validFile())
	require.NoError(t, err)
	fid := types.FlightID("f-no-file")
	require.NoError(t, rig.controller.Prepare(ctx, fid, immediateConfig()))

	rig.transport.ScriptNack(testDeviceSN, MethodTaskExecute, 314001, "file missing")
	err = rig.controller.Execute(ctx, fid)
	require.Error(t, err)
	assert.True(t, IsRejectedByDeviceError(err))

	// The classifier's failed verdict lands even though the task never
	// left sent.
	task := mustGet(t, rig, fid)
	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "wayline file does not exist on device", task.Reason)
}

func TestOnStatusChange(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	type change struct {
		fid      types.FlightID
		from, to TaskStatus
	}
	var seen []change
	unsubscribe := rig.controller.OnStatusChange(func(fid types.FlightID, from, to TaskStatus) {
		seen = append(seen, change{fid, from, to})
	})

	fid := startTask(t, rig, "f-watch")
	rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusOK})

	require.Len(t, seen, 2)
	assert.Equal(t, change{fid, TaskStatusSent, TaskStatusInProgress}, seen[0])
	assert.Equal(t, change{fid, TaskStatusInProgress, TaskStatusOK}, seen[1])

	unsubscribe()
	startTask(t, rig, "f-watch2")
	assert.Len(t, seen, 2)
}

func TestRestoreLive(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-restore")
	rig.transport.ScriptAck(testDeviceSN, MethodTaskPause)
	require.NoError(t, rig.controller.Pause(ctx, fid))
	rig.reconciler.Apply(ctx, ProgressEvent{
		FlightID: fid,
		Status:   TaskStatusPaused,
		Breakpoint: &Breakpoint{
			WaylineID: 1, Index: 7, State: BreakpointOnSegment, Progress: 0.25,
		},
	})

	// Terminal task: restored controllers must not resurrect it.
	done := startTask(t, rig, "f-finished")
	rig.reconciler.Apply(ctx, ProgressEvent{FlightID: done, Status: TaskStatusOK})

	// Fresh controller over the same persisted store, as after a
	// process restart.
	dispatcher := NewDispatcher(rig.transport, 100*time.Millisecond, nil)
	restored := NewController(dispatcher, rig.registry, rig.store, rig.audit, nil)
	require.NoError(t, restored.RestoreLive(ctx))

	task, err := restored.GetTask(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusPaused, task.Status)
	require.NotNil(t, task.Breakpoint)
	assert.Equal(t, 7, task.Breakpoint.Index)

	// The breakpoint store was reseeded, so resume works without a
	// fresh device event.
	rig.transport.ScriptAck(testDeviceSN, MethodTaskResume)
	require.NoError(t, restored.Resume(ctx, fid))
	assert.Equal(t, TaskStatusInProgress, mustGetFrom(t, restored, fid).Status)

	// Only non-terminal tasks are live again.
	assert.Len(t, restored.ListTasks(), 1)
}

func mustGetFrom(t *testing.T, c *Controller, fid types.FlightID) *FlightTask {
	t.Helper()
	task, err := c.GetTask(context.Background(), fid)
	require.NoError(t, err)
	return task
}

func TestRetentionSweep(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-old")
	rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusOK})

	live := startTask(t, rig, "f-live")

	// Not yet past retention.
	assert.Zero(t, rig.controller.SweepRetention(ctx, time.Now()))

	evicted := rig.controller.SweepRetention(ctx, time.Now().Add(25*time.Hour))
	assert.Equal(t, 1, evicted)

	// Evicted from live memory but still in historical storage.
	assert.Len(t, rig.controller.ListTasks(), 1)
	task, err := rig.controller.GetTask(ctx, fid)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusOK, task.Status)

	assert.Equal(t, TaskStatusInProgress, mustGet(t, rig, live).Status)
}

func TestTerminalReasonFromClassifier(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-fail")
	code := 315001
	rig.reconciler.Apply(ctx, ProgressEvent{
		FlightID:  fid,
		Status:    TaskStatusInProgress,
		ErrorCode: &code,
	})

	task := mustGet(t, rig, fid)
	assert.True(t, task.Status.IsTerminal())
	assert.NotEmpty(t, task.Reason)
	require.NotNil(t, task.CompletedAt)
}

func TestTransitionAudit(t *testing.T) {
	rig := setupTestRig(t)
	ctx := context.Background()

	fid := startTask(t, rig, "f-audit")
	rig.reconciler.Apply(ctx, ProgressEvent{FlightID: fid, Status: TaskStatusOK})

	history, err := rig.audit.History(ctx, fid)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, TaskStatusSent, history[0].To)
	assert.Equal(t, TaskStatusInProgress, history[1].To)
	assert.Equal(t, TaskStatusOK, history[2].To)
}
