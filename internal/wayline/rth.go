package wayline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/leebs0521/wayline-core/internal/types"
)

// RthState tracks the return-to-home progress of one device. It is a
// narrow side machine next to the task lifecycle: triggering RTH never
// rewrites a flight task's status directly, the broken wayline shows
// up through the normal progress-event path.
type RthState string

const (
	// RthNone means no return-to-home is known for the device.
	RthNone RthState = "none"

	// RthRequested means the command was dispatched but the device
	// has not acknowledged yet.
	RthRequested RthState = "requested"

	// RthReturning means the device accepted and is flying home.
	RthReturning RthState = "returning"

	// RthCanceled means an in-flight return was canceled.
	RthCanceled RthState = "canceled"

	// RthDone means the device reported the return finished.
	RthDone RthState = "done"
)

// ReturnHomeTracker dispatches RTH commands and keeps per-device RTH
// state. Only one transition command per device runs at a time.
type ReturnHomeTracker struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	mu       sync.Mutex
	states   map[string]RthState
	inFlight map[string]bool
}

// NewReturnHomeTracker creates an RTH tracker over the dispatcher.
func NewReturnHomeTracker(dispatcher *Dispatcher, logger *slog.Logger) *ReturnHomeTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReturnHomeTracker{
		dispatcher: dispatcher,
		logger:     logger,
		states:     make(map[string]RthState),
		inFlight:   make(map[string]bool),
	}
}

// State returns the device's current RTH state.
func (t *ReturnHomeTracker) State(deviceSN string) RthState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[deviceSN]; ok {
		return s
	}
	return RthNone
}

// Trigger sends return_home. Re-triggering while already returning is
// idempotent.
func (t *ReturnHomeTracker) Trigger(ctx context.Context, deviceSN string) error {
	t.mu.Lock()
	switch {
	case t.states[deviceSN] == RthReturning:
		t.mu.Unlock()
		return nil
	case t.inFlight[deviceSN]:
		t.mu.Unlock()
		return NewTaskError(ErrTaskCommandInFlight,
			"a return-to-home command is already in flight for device "+deviceSN)
	}
	t.inFlight[deviceSN] = true
	t.states[deviceSN] = RthRequested
	t.mu.Unlock()
	defer t.clearInFlight(deviceSN)

	res, err := t.dispatcher.Send(ctx, deviceSN, types.NewID(), MethodReturnHome, nil)
	if err != nil {
		t.setState(deviceSN, RthNone)
		return err
	}
	if !res.Acked() {
		t.setState(deviceSN, RthNone)
		return NewRejectedByDeviceError(res.Reply.Code, res.Class.Message).
			WithContext("intent", "return_home")
	}

	t.setState(deviceSN, RthReturning)
	t.logger.Info("return to home accepted", "device_sn", deviceSN)
	return nil
}

// Cancel sends return_home_cancel for a device currently returning.
func (t *ReturnHomeTracker) Cancel(ctx context.Context, deviceSN string) error {
	t.mu.Lock()
	switch {
	case t.states[deviceSN] == RthCanceled:
		t.mu.Unlock()
		return nil
	case t.states[deviceSN] != RthReturning && t.states[deviceSN] != RthRequested:
		st := t.states[deviceSN]
		if st == "" {
			st = RthNone
		}
		t.mu.Unlock()
		return NewTaskError(ErrTaskInvalidState,
			"device "+deviceSN+" is not returning home (state "+string(st)+")")
	case t.inFlight[deviceSN]:
		t.mu.Unlock()
		return NewTaskError(ErrTaskCommandInFlight,
			"a return-to-home command is already in flight for device "+deviceSN)
	}
	t.inFlight[deviceSN] = true
	t.mu.Unlock()
	defer t.clearInFlight(deviceSN)

	res, err := t.dispatcher.Send(ctx, deviceSN, types.NewID(), MethodReturnHomeCancel, nil)
	if err != nil {
		return err
	}
	if !res.Acked() {
		return NewRejectedByDeviceError(res.Reply.Code, res.Class.Message).
			WithContext("intent", "return_home_cancel")
	}

	t.setState(deviceSN, RthCanceled)
	t.logger.Info("return to home canceled", "device_sn", deviceSN)
	return nil
}

// MarkDone records a device-reported return completion.
func (t *ReturnHomeTracker) MarkDone(deviceSN string) {
	t.setState(deviceSN, RthDone)
}

func (t *ReturnHomeTracker) setState(deviceSN string, s RthState) {
	t.mu.Lock()
	t.states[deviceSN] = s
	t.mu.Unlock()
}

func (t *ReturnHomeTracker) clearInFlight(deviceSN string) {
	t.mu.Lock()
	delete(t.inFlight, deviceSN)
	t.mu.Unlock()
}
