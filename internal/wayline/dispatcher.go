package wayline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leebs0521/wayline-core/internal/observability"
	"github.com/leebs0521/wayline-core/internal/transport"
	"github.com/leebs0521/wayline-core/internal/types"
)

// Device service methods for the flight task lifecycle.
const (
	MethodTaskExecute      = "flighttask_execute"
	MethodTaskPause        = "flighttask_pause"
	MethodTaskResume       = "flighttask_resume"
	MethodTaskCancel       = "flighttask_undo"
	MethodReturnHome       = "return_home"
	MethodReturnHomeCancel = "return_home_cancel"
)

// DefaultCommandTimeout bounds one correlated device call.
const DefaultCommandTimeout = 15 * time.Second

// DispatchResult is the outcome of one acknowledged device call: the
// raw reply plus its classification. Timeouts and transport failures
// surface as errors instead.
type DispatchResult struct {
	Reply *transport.Reply
	Class Classification
}

// Acked reports whether the device positively acknowledged the command.
func (r DispatchResult) Acked() bool {
	return r.Class.Verdict == VerdictSuccess
}

// Dispatcher sends one lifecycle command to a device and correlates
// the asynchronous result. Single-flight per task is enforced by the
// controller's concurrency rule, not re-enforced here.
type Dispatcher struct {
	tr      transport.Transport
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewDispatcher creates a dispatcher over the given transport.
// A timeout of 0 selects DefaultCommandTimeout.
func NewDispatcher(tr transport.Transport, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		tr:      tr,
		timeout: timeout,
		logger:  logger,
		tracer:  otel.Tracer("wayline/dispatcher"),
	}
}

// Send publishes a lifecycle command to the device's command channel
// and awaits exactly one of: positive ack, nack carrying a device code
// (classified and returned in the result), or timeout.
//
// A timeout returns ErrTaskDeviceUnreachable. The command is NOT
// assumed to have had no effect: the caller must treat the outcome as
// unknown and let the next progress event decide.
func (d *Dispatcher) Send(ctx context.Context, deviceSN string, bid types.ID, method string, data any) (DispatchResult, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.send",
		trace.WithAttributes(
			observability.DeviceSN(deviceSN),
			attribute.String(observability.AttrMethod, method),
			attribute.String("wayline.bid", bid.String()),
		))
	defer span.End()

	req := transport.NewRequest(bid, method, data)

	d.logger.Debug("dispatching command",
		"device_sn", deviceSN, "method", method, "tid", req.Tid)

	reply, err := d.tr.RequestReply(ctx, deviceSN, req, d.timeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no reply")

		var coreErr *types.CoreError
		if errors.As(err, &coreErr) && coreErr.Code == types.TRANSPORT_REPLY_TIMEOUT {
			d.logger.Warn("command outcome unknown, device did not reply",
				"device_sn", deviceSN, "method", method, "tid", req.Tid)
			return DispatchResult{}, NewDeviceUnreachableError(deviceSN, err)
		}
		return DispatchResult{}, WrapTaskError(ErrTaskInternal, "dispatch failed", err)
	}

	class := Classify(reply.Code)
	span.SetAttributes(
		observability.DeviceCode(reply.Code),
		attribute.String("wayline.verdict", class.Verdict.String()),
	)

	if !class.IsTerminal() && class.Verdict != VerdictSuccess {
		d.logger.Info("device nacked command",
			"device_sn", deviceSN, "method", method,
			"code", reply.Code, "verdict", class.Verdict.String(), "message", class.Message)
	}

	return DispatchResult{Reply: reply, Class: class}, nil
}
