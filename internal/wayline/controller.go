package wayline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/leebs0521/wayline-core/internal/events"
	"github.com/leebs0521/wayline-core/internal/observability"
	"github.com/leebs0521/wayline-core/internal/registry"
	"github.com/leebs0521/wayline-core/internal/types"
)

// StatusChangeFunc observes committed status transitions. Callbacks
// run on the committing goroutine and must not call back into the
// controller.
type StatusChangeFunc func(flightID types.FlightID, oldStatus, newStatus TaskStatus)

// Controller owns one state object per flight task and is, together
// with its reconciler, the only writer of task state. It accepts the
// lifecycle intents and serializes them per task: at most one device
// command is in flight per flight id, concurrent intents are rejected
// with ErrTaskCommandInFlight rather than queued.
type Controller struct {
	table       *taskTable
	breakpoints *BreakpointStore
	dispatcher  *Dispatcher
	readiness   *ReadinessEvaluator
	registry    registry.Registry
	store       TaskStore
	audit       TransitionLog
	bus         events.EventBus
	logger      *slog.Logger
	tracer      trace.Tracer

	rth *ReturnHomeTracker

	cbMu      sync.RWMutex
	callbacks map[int]StatusChangeFunc
	nextCbID  int

	retention time.Duration
}

// ControllerOption is a functional option for configuring the
// controller.
type ControllerOption func(*Controller)

// WithRetention sets how long terminal tasks stay in live memory
// before the sweeper evicts them. Historical storage keeps them
// forever. Default 24h.
func WithRetention(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.retention = d
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates the lifecycle controller.
func NewController(
	dispatcher *Dispatcher,
	reg registry.Registry,
	store TaskStore,
	audit TransitionLog,
	bus events.EventBus,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		table:       newTaskTable(),
		breakpoints: NewBreakpointStore(),
		dispatcher:  dispatcher,
		readiness:   NewReadinessEvaluator(),
		registry:    reg,
		store:       store,
		audit:       audit,
		bus:         bus,
		logger:      slog.Default(),
		tracer:      otel.Tracer("wayline/controller"),
		callbacks:   make(map[int]StatusChangeFunc),
		retention:   24 * time.Hour,
	}
	c.rth = NewReturnHomeTracker(dispatcher, c.logger)

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconciler returns a reconciler bound to this controller's task
// table. Feed it the device event stream.
func (c *Controller) Reconciler() *Reconciler {
	return NewReconciler(c.table, c.breakpoints, c, c.logger)
}

// Breakpoints exposes the breakpoint store (read paths and tests).
func (c *Controller) Breakpoints() *BreakpointStore {
	return c.breakpoints
}

// Create registers a new flight task in status sent. Re-delivery of
// the same create (same flight id, same file fingerprint, still sent)
// is idempotent; anything else on a used flight id is a duplicate.
// Terminal tasks are only superseded by a fresh flight id.
func (c *Controller) Create(ctx context.Context, rawFlightID, deviceSN string, file FileRef) (*FlightTask, error) {
	ctx, span := c.startSpan(ctx, "controller.create", rawFlightID)
	defer span.End()

	flightID, err := types.ParseFlightID(rawFlightID)
	if err != nil {
		return nil, WrapTaskError(ErrTaskInvalidFile, "invalid flight id", err)
	}
	if deviceSN == "" {
		return nil, NewTaskError(ErrTaskInvalidFile, "device serial is required")
	}
	if err := file.Validate(); err != nil {
		return nil, NewInvalidFileError(err)
	}

	if existing := c.table.get(flightID); existing != nil {
		existing.mu.Lock()
		defer existing.mu.Unlock()
		t := existing.task
		if t.Status == TaskStatusSent && t.Config == nil && t.File.Fingerprint == file.Fingerprint {
			return t.Clone(), nil
		}
		return nil, NewDuplicateError(flightID)
	}

	// A terminal task evicted from memory still blocks id reuse.
	if prior, err := c.store.Get(ctx, flightID); err == nil && prior != nil {
		return nil, NewDuplicateError(flightID)
	}

	now := time.Now()
	task := &FlightTask{
		FlightID:  flightID,
		DeviceSN:  deviceSN,
		File:      file,
		Status:    TaskStatusSent,
		Step:      StepInitial,
		CreatedAt: now,
		UpdatedAt: now,
	}

	entry := &taskEntry{task: task}
	if !c.table.putIfAbsent(flightID, entry) {
		return nil, NewDuplicateError(flightID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := c.store.Save(ctx, task); err != nil {
		c.table.remove(flightID)
		return nil, WrapTaskError(ErrTaskInternal, "persisting task", err)
	}
	c.appendAudit(ctx, task, "", "created")

	c.publish(ctx, events.Event{
		Type:      events.EventTaskCreated,
		Timestamp: now,
		FlightID:  flightID.String(),
		DeviceSN:  deviceSN,
	})

	c.logger.Info("flight task created", "flight_id", flightID, "device_sn", deviceSN)
	return task.Clone(), nil
}

// Prepare validates and stores the task configuration. The task stays
// sent; nothing is dispatched to the device. Re-preparing a sent task
// replaces the configuration.
func (c *Controller) Prepare(ctx context.Context, flightID types.FlightID, cfg *TaskConfig) error {
	ctx, span := c.startSpan(ctx, "controller.prepare", flightID.String())
	defer span.End()

	entry := c.table.get(flightID)
	if entry == nil {
		return NewNotFoundError(flightID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	task := entry.task
	if task.Status != TaskStatusSent {
		return NewInvalidStateError(task.Status, "prepare")
	}

	if cfg == nil {
		return NewTaskError(ErrTaskInvalidState, "prepare requires a task configuration")
	}
	if err := cfg.Validate(); err != nil {
		return WrapTaskError(ErrTaskInvalidState, "invalid task configuration", err)
	}

	cfgCopy := *cfg
	task.Config = &cfgCopy
	task.UpdatedAt = time.Now()

	if err := c.store.Save(ctx, task); err != nil {
		return WrapTaskError(ErrTaskInternal, "persisting task", err)
	}

	c.publish(ctx, events.Event{
		Type:      events.EventTaskPrepared,
		Timestamp: task.UpdatedAt,
		FlightID:  flightID.String(),
		DeviceSN:  task.DeviceSN,
		Attrs:     map[string]any{"task_type": string(cfg.TaskType)},
	})

	c.logger.Info("flight task prepared",
		"flight_id", flightID, "task_type", cfg.TaskType, "wayline_type", cfg.WaylineType)
	return nil
}

// Execute dispatches the execute command and, on device
// acknowledgment, moves the task to in_progress at the initial step.
// Re-delivery while already in progress is idempotent. A dispatch
// timeout leaves the task sent with an unknown device-side outcome;
// the next progress event is authoritative.
func (c *Controller) Execute(ctx context.Context, flightID types.FlightID) error {
	ctx, span := c.startSpan(ctx, "controller.execute", flightID.String())
	defer span.End()

	entry := c.table.get(flightID)
	if entry == nil {
		return NewNotFoundError(flightID)
	}

	task, err := c.beginCommand(entry, "execute", TaskStatusSent)
	if err != nil {
		return err
	}
	if task == nil {
		// Idempotent re-delivery, already in progress.
		return nil
	}
	defer c.endCommand(entry)

	if task.Config == nil {
		return NewInvalidStateError(TaskStatusSent, "execute (task not prepared)")
	}
	span.SetAttributes(observability.TaskType(string(task.Config.TaskType)))

	if !c.registry.IsOnline(task.DeviceSN) {
		return NewPreconditionError(fmt.Sprintf("device %s is offline", task.DeviceSN))
	}
	if !c.registry.HasControl(task.DeviceSN) {
		return NewPreconditionError(fmt.Sprintf("no control authority over device %s", task.DeviceSN))
	}

	if task.Config.TaskType == TaskTypeConditional {
		facts, err := c.deviceFacts(task.DeviceSN)
		if err != nil {
			return NewPreconditionError(err.Error())
		}
		if ready, reason := c.readiness.IsReady(task, time.Now(), facts); !ready {
			return NewPreconditionError(reason)
		}
	}

	res, err := c.dispatcher.Send(ctx, task.DeviceSN, c.bidFor(flightID), MethodTaskExecute, executePayload(task))
	if err != nil {
		// Unknown outcome on timeout: the task stays sent and the
		// next progress event decides.
		return err
	}

	if !res.Acked() {
		return c.handleNack(ctx, entry, res, "execute")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	now := time.Now()
	task.Step = StepInitial
	task.Percent = 0
	task.StartedAt = &now
	c.commitLocked(ctx, entry, TaskStatusInProgress, "")
	return nil
}

// Pause interrupts an in-progress wayline. On device acknowledgment
// the task enters paused; the device's next progress event is expected
// to carry the breakpoint, which the reconciler attaches.
func (c *Controller) Pause(ctx context.Context, flightID types.FlightID) error {
	ctx, span := c.startSpan(ctx, "controller.pause", flightID.String())
	defer span.End()

	entry := c.table.get(flightID)
	if entry == nil {
		return NewNotFoundError(flightID)
	}

	task, err := c.beginCommand(entry, "pause", TaskStatusInProgress)
	if err != nil {
		return err
	}
	defer c.endCommand(entry)

	res, err := c.dispatcher.Send(ctx, task.DeviceSN, c.bidFor(flightID), MethodTaskPause, nil)
	if err != nil {
		return err
	}
	if !res.Acked() {
		return c.handleNack(ctx, entry, res, "pause")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	c.commitLocked(ctx, entry, TaskStatusPaused, string(BreakReasonUserPause))
	return nil
}

// Resume continues a paused wayline from its stored breakpoint. The
// breakpoint is re-validated before dispatch; on device acceptance the
// task re-enters in_progress at the resume entry step.
func (c *Controller) Resume(ctx context.Context, flightID types.FlightID) error {
	ctx, span := c.startSpan(ctx, "controller.resume", flightID.String())
	defer span.End()

	entry := c.table.get(flightID)
	if entry == nil {
		return NewNotFoundError(flightID)
	}

	task, err := c.beginCommand(entry, "resume", TaskStatusPaused)
	if err != nil {
		return err
	}
	defer c.endCommand(entry)

	bp := c.breakpoints.Get(flightID)
	if bp == nil {
		return NewMissingBreakpointError(flightID)
	}
	if err := bp.Validate(); err != nil {
		return NewInvalidBreakpointError(err)
	}

	res, err := c.dispatcher.Send(ctx, task.DeviceSN, c.bidFor(flightID), MethodTaskResume, resumePayload(flightID, bp))
	if err != nil {
		return err
	}
	if !res.Acked() {
		return c.handleNack(ctx, entry, res, "resume")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	task.Step = ResumeEntryStep(bp)
	c.commitLocked(ctx, entry, TaskStatusInProgress, "")

	c.publish(ctx, events.Event{
		Type:      events.EventTaskResumed,
		Timestamp: time.Now(),
		FlightID:  flightID.String(),
		DeviceSN:  task.DeviceSN,
		Attrs: map[string]any{
			"wayline_id": bp.WaylineID,
			"index":      bp.Index,
		},
	})
	return nil
}

// Cancel ends a task. From sent it is a local transition; from
// in_progress or paused the device must confirm. The resulting status
// is canceled unless the device reports the task already finished
// concurrently; terminality decides, not arrival order.
func (c *Controller) Cancel(ctx context.Context, flightID types.FlightID) error {
	ctx, span := c.startSpan(ctx, "controller.cancel", flightID.String())
	defer span.End()

	entry := c.table.get(flightID)
	if entry == nil {
		return NewNotFoundError(flightID)
	}

	entry.mu.Lock()
	task := entry.task

	switch {
	case task.Status == TaskStatusCanceled:
		entry.mu.Unlock()
		return nil
	case task.Status.IsTerminal():
		st := task.Status
		entry.mu.Unlock()
		return NewInvalidStateError(st, "cancel")
	case entry.inFlight:
		// An outstanding command owns the task; a sent task with an
		// execute in flight may already be running on the device.
		entry.mu.Unlock()
		return NewCommandInFlightError(flightID)
	case task.Status == TaskStatusSent:
		// Nothing dispatched yet, cancel locally.
		c.commitLocked(ctx, entry, TaskStatusCanceled, "canceled before execution")
		entry.mu.Unlock()
		return nil
	}
	entry.inFlight = true
	entry.mu.Unlock()
	defer c.endCommand(entry)

	res, err := c.dispatcher.Send(ctx, task.DeviceSN, c.bidFor(flightID), MethodTaskCancel, nil)
	if err != nil {
		return err
	}
	if !res.Acked() {
		return c.handleNack(ctx, entry, res, "cancel")
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.task.Status.IsTerminal() {
		// A concurrent terminal event won; terminality is sticky.
		return nil
	}
	c.commitLocked(ctx, entry, TaskStatusCanceled, "canceled by operator")
	return nil
}

// ReturnHome triggers the drone's independent return-to-home behavior.
// It may be invoked with or without an active task and does not itself
// change any flight task status; if the device later reports the
// wayline broken as a result, that arrives as a progress event.
func (c *Controller) ReturnHome(ctx context.Context, deviceSN string) error {
	ctx, span := c.tracer.Start(ctx, "controller.return_home",
		trace.WithAttributes(observability.DeviceSN(deviceSN)))
	defer span.End()

	if !c.registry.IsOnline(deviceSN) {
		return NewPreconditionError(fmt.Sprintf("device %s is offline", deviceSN))
	}

	if err := c.rth.Trigger(ctx, deviceSN); err != nil {
		return err
	}

	c.publish(ctx, events.Event{
		Type:      events.EventReturnHome,
		Timestamp: time.Now(),
		DeviceSN:  deviceSN,
	})
	return nil
}

// CancelReturnHome cancels an in-flight return-to-home.
func (c *Controller) CancelReturnHome(ctx context.Context, deviceSN string) error {
	ctx, span := c.tracer.Start(ctx, "controller.cancel_return_home",
		trace.WithAttributes(observability.DeviceSN(deviceSN)))
	defer span.End()

	if err := c.rth.Cancel(ctx, deviceSN); err != nil {
		return err
	}

	c.publish(ctx, events.Event{
		Type:      events.EventReturnHomeCancel,
		Timestamp: time.Now(),
		DeviceSN:  deviceSN,
	})
	return nil
}

// ReturnHomeState reports the device's current RTH tracking state.
func (c *Controller) ReturnHomeState(deviceSN string) RthState {
	return c.rth.State(deviceSN)
}

// GetTask returns a copy of the task, live or historical.
func (c *Controller) GetTask(ctx context.Context, flightID types.FlightID) (*FlightTask, error) {
	if entry := c.table.get(flightID); entry != nil {
		entry.mu.Lock()
		defer entry.mu.Unlock()
		return entry.task.Clone(), nil
	}

	task, err := c.store.Get(ctx, flightID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListTasks returns copies of all live tasks.
func (c *Controller) ListTasks() []*FlightTask {
	snap := c.table.snapshot()
	out := make([]*FlightTask, 0, len(snap))
	for _, entry := range snap {
		entry.mu.Lock()
		out = append(out, entry.task.Clone())
		entry.mu.Unlock()
	}
	return out
}

// OnStatusChange registers a status-change callback and returns its
// unregister function.
func (c *Controller) OnStatusChange(cb StatusChangeFunc) func() {
	c.cbMu.Lock()
	id := c.nextCbID
	c.nextCbID++
	c.callbacks[id] = cb
	c.cbMu.Unlock()

	return func() {
		c.cbMu.Lock()
		delete(c.callbacks, id)
		c.cbMu.Unlock()
	}
}

// RestoreLive rebuilds the in-memory table from persisted non-terminal
// tasks after process restart. Stored breakpoints are re-seeded so a
// paused task can resume without a fresh device event.
func (c *Controller) RestoreLive(ctx context.Context) error {
	tasks, err := c.store.ListLive(ctx)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if task.Breakpoint != nil {
			if err := c.breakpoints.Put(task.FlightID, task.Breakpoint); err != nil {
				c.logger.Warn("dropping invalid persisted breakpoint",
					"flight_id", task.FlightID, "error", err)
				task.Breakpoint = nil
			}
		}
		c.table.replace(task.FlightID, &taskEntry{task: task})
	}

	c.logger.Info("live tasks restored", "count", len(tasks))
	return nil
}

// SweepRetention evicts terminal tasks past the retention window from
// live memory. They remain in historical storage.
func (c *Controller) SweepRetention(ctx context.Context, now time.Time) int {
	evicted := 0
	for flightID, entry := range c.table.snapshot() {
		entry.mu.Lock()
		task := entry.task
		expired := task.Status.IsTerminal() &&
			task.CompletedAt != nil &&
			now.Sub(*task.CompletedAt) > c.retention
		entry.mu.Unlock()

		if !expired {
			continue
		}

		c.table.remove(flightID)
		c.breakpoints.Clear(flightID)
		evicted++

		c.publish(ctx, events.Event{
			Type:      events.EventTaskEvicted,
			Timestamp: now,
			FlightID:  flightID.String(),
		})
	}

	if evicted > 0 {
		c.logger.Info("terminal tasks evicted", "count", evicted)
	}
	return evicted
}

// StartRetentionSweeper runs SweepRetention on the given interval
// until the context ends.
func (c *Controller) StartRetentionSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.SweepRetention(ctx, now)
			}
		}
	}()
}

// beginCommand enforces the per-task concurrency rule and the required
// status for a lifecycle command. Wrong-state intents fail with
// InvalidState and never mutate the task, except that a re-delivered
// execute finding the task already in progress is a harmless no-op.
// On success the entry is marked in flight and the caller must call
// endCommand.
func (c *Controller) beginCommand(entry *taskEntry, intent string, required TaskStatus) (*FlightTask, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	task := entry.task

	if intent == "execute" && task.Status == TaskStatusInProgress {
		return nil, nil
	}

	if task.Status != required {
		return nil, NewInvalidStateError(task.Status, intent)
	}
	if entry.inFlight {
		return nil, NewCommandInFlightError(task.FlightID)
	}

	entry.inFlight = true
	return task, nil
}

// endCommand clears the in-flight mark.
func (c *Controller) endCommand(entry *taskEntry) {
	entry.mu.Lock()
	entry.inFlight = false
	entry.mu.Unlock()
}

// handleNack folds a negative device acknowledgment into the task.
// Terminal verdicts force the classifier-selected terminal status;
// non-terminal verdicts only surface an error to the caller.
func (c *Controller) handleNack(ctx context.Context, entry *taskEntry, res DispatchResult, intent string) error {
	class := res.Class

	if forced, ok := class.TerminalStatus(); ok {
		entry.mu.Lock()
		if !entry.task.Status.IsTerminal() {
			c.commitLocked(ctx, entry, forced, class.Message)
		}
		entry.mu.Unlock()

		if res.Reply.Code == 319001 {
			return NewDeviceBusyError(entry.task.DeviceSN)
		}
		return NewRejectedByDeviceError(res.Reply.Code, class.Message)
	}

	return NewRejectedByDeviceError(res.Reply.Code, class.Message).
		WithContext("intent", intent).
		WithContext("verdict", class.Verdict.String()).
		WithContext("retryable", class.Verdict == VerdictRetryable)
}

// commitLocked performs a status transition while the caller holds the
// entry lock, then persists, audits and notifies. Illegal moves are a
// programming error at this layer and are logged, not applied.
func (c *Controller) commitLocked(ctx context.Context, entry *taskEntry, to TaskStatus, reason string) {
	task := entry.task
	from := task.Status

	if from == to {
		return
	}
	if !from.CanTransitionTo(to) {
		c.logger.Error("refusing illegal transition",
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
		if to == TaskStatusOK || to == TaskStatusCanceled {
			task.Breakpoint = nil
			c.breakpoints.Clear(task.FlightID)
		}
	}
	if to == TaskStatusPaused {
		if bp := c.breakpoints.Get(task.FlightID); bp != nil {
			task.Breakpoint = bp
		}
	}

	c.committed(ctx, task, from, reason)
}

// committed implements transitionSink: every committed transition from
// the controller or reconciler lands here, under the entry lock.
func (c *Controller) committed(ctx context.Context, task *FlightTask, from TaskStatus, reason string) {
	trace.SpanFromContext(ctx).SetAttributes(observability.TaskStatus(task.Status.String()))

	if err := c.store.Save(ctx, task); err != nil {
		c.logger.Error("persisting transition failed",
			"flight_id", task.FlightID, "to", task.Status, "error", err)
	}
	c.appendAudit(ctx, task, from, reason)

	c.publish(ctx, events.Event{
		Type:      eventTypeFor(task.Status),
		Timestamp: task.UpdatedAt,
		FlightID:  task.FlightID.String(),
		DeviceSN:  task.DeviceSN,
		Payload: events.StatusChangePayload{
			OldStatus: from.String(),
			NewStatus: task.Status.String(),
			Reason:    reason,
		},
	})

	c.cbMu.RLock()
	cbs := make([]StatusChangeFunc, 0, len(c.callbacks))
	for _, cb := range c.callbacks {
		cbs = append(cbs, cb)
	}
	c.cbMu.RUnlock()
	for _, cb := range cbs {
		cb(task.FlightID, from, task.Status)
	}

	log := observability.TaskLogger(
		observability.WithTraceContext(ctx, c.logger), task.FlightID.String(), task.DeviceSN)
	log.Info("task status changed", "from", from, "to", task.Status, "reason", reason)
}

// progressed implements transitionSink for step/percent updates that
// do not change status.
func (c *Controller) progressed(ctx context.Context, task *FlightTask) {
	if err := c.store.Save(ctx, task); err != nil {
		c.logger.Error("persisting progress failed",
			"flight_id", task.FlightID, "error", err)
	}

	c.publish(ctx, events.Event{
		Type:      events.EventTaskProgress,
		Timestamp: task.UpdatedAt,
		FlightID:  task.FlightID.String(),
		DeviceSN:  task.DeviceSN,
		Payload: events.ProgressPayload{
			Step:    task.Step.String(),
			Percent: task.Percent,
		},
	})
}

func (c *Controller) appendAudit(ctx context.Context, task *FlightTask, from TaskStatus, reason string) {
	rec := TransitionRecord{
		ID:       types.NewID(),
		FlightID: task.FlightID,
		DeviceSN: task.DeviceSN,
		From:     from,
		To:       task.Status,
		Step:     task.Step,
		Reason:   reason,
		At:       task.UpdatedAt,
	}
	if err := c.audit.Append(ctx, rec); err != nil {
		c.logger.Error("audit append failed",
			"flight_id", task.FlightID, "to", task.Status, "error", err)
	}
}

func (c *Controller) publish(ctx context.Context, ev events.Event) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(ctx, ev); err != nil {
		c.logger.Warn("event publish failed", "type", ev.Type, "error", err)
	}
}

func (c *Controller) deviceFacts(deviceSN string) (DeviceFacts, error) {
	battery, err := c.registry.BatteryPercent(deviceSN)
	if err != nil {
		return DeviceFacts{}, err
	}
	storage, err := c.registry.FreeStorageMB(deviceSN)
	if err != nil {
		return DeviceFacts{}, err
	}
	return DeviceFacts{BatteryPercent: battery, FreeStorageMB: storage}, nil
}

// bidFor derives the stable business id grouping all commands of one
// task. Deterministic so re-deliveries correlate on the device side.
func (c *Controller) bidFor(flightID types.FlightID) types.ID {
	return types.ID(flightID)
}

func (c *Controller) startSpan(ctx context.Context, name, flightID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name,
		trace.WithAttributes(observability.FlightID(flightID)))
}

func eventTypeFor(status TaskStatus) events.EventType {
	switch status {
	case TaskStatusInProgress:
		return events.EventTaskStarted
	case TaskStatusPaused:
		return events.EventTaskPaused
	case TaskStatusOK:
		return events.EventTaskCompleted
	case TaskStatusFailed, TaskStatusRejected, TaskStatusPartiallyDone:
		return events.EventTaskFailed
	case TaskStatusCanceled:
		return events.EventTaskCanceled
	case TaskStatusTimeout:
		return events.EventTaskTimeout
	default:
		return events.EventTaskProgress
	}
}

// executePayload is the device-facing body of flighttask_execute.
func executePayload(task *FlightTask) map[string]any {
	data := map[string]any{
		"flight_id": task.FlightID.String(),
		"file": map[string]any{
			"url":         task.File.URL,
			"fingerprint": task.File.Fingerprint,
		},
	}
	if cfg := task.Config; cfg != nil {
		data["task_type"] = string(cfg.TaskType)
		data["wayline_type"] = string(cfg.WaylineType)
		data["rth_altitude"] = cfg.RthAltitude
		data["rth_mode"] = string(cfg.RthMode)
		data["out_of_control_action"] = string(cfg.OutOfControlAction)
		data["exit_wayline_when_lost"] = string(cfg.ExitWaylineOnLinkLost)
		if cfg.ExecuteTime != nil {
			data["execute_time"] = cfg.ExecuteTime.UnixMilli()
		}
	}
	return data
}

// resumePayload is the device-facing body of flighttask_resume.
func resumePayload(flightID types.FlightID, bp *Breakpoint) map[string]any {
	return map[string]any{
		"flight_id": flightID.String(),
		"breakpoint": map[string]any{
			"wayline_id": bp.WaylineID,
			"index":      bp.Index,
			"state":      string(bp.State),
			"progress":   bp.Progress,
		},
	}
}

// Ensure Controller implements transitionSink for its reconciler.
var _ transitionSink = (*Controller)(nil)
