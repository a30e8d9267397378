package wayline

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/leebs0521/wayline-core/internal/transport"
)

// Device event methods published on the events channel.
const (
	eventMethodProgress = "flighttask_progress"
	eventMethodRthDone  = "return_home_info"
)

// eventEnvelope is the wire framing of one device event: a method name
// selecting the body schema plus the body itself.
type eventEnvelope struct {
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data"`
}

// EventFeed subscribes to the device event channel and routes inbound
// messages into the reconciler. Delivery is at-least-once and
// unordered; the reconciler's discard rules absorb duplicates and
// stale arrivals, so the feed itself stays stateless.
type EventFeed struct {
	tr         transport.Transport
	reconciler *Reconciler
	rth        *ReturnHomeTracker
	logger     *slog.Logger
	cancel     func()
}

// NewEventFeed wires a feed for the controller's reconciler.
func NewEventFeed(tr transport.Transport, c *Controller) *EventFeed {
	return &EventFeed{
		tr:         tr,
		reconciler: c.Reconciler(),
		rth:        c.rth,
		logger:     c.logger,
	}
}

// Start subscribes to the wildcard events topic. Returns an error if
// the subscription cannot be established.
func (f *EventFeed) Start(ctx context.Context) error {
	cancel, err := f.tr.Subscribe(transport.EventsWildcard, func(topic string, payload []byte) {
		f.handle(ctx, topic, payload)
	})
	if err != nil {
		return err
	}
	f.cancel = cancel
	f.logger.Info("device event feed started")
	return nil
}

// Stop tears down the subscription.
func (f *EventFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *EventFeed) handle(ctx context.Context, topic string, payload []byte) {
	deviceSN := transport.DeviceSNFromTopic(topic)

	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		f.logger.Warn("dropping undecodable device event",
			"topic", topic, "error", err)
		return
	}

	switch env.Method {
	case eventMethodProgress:
		ev, err := ParseProgressEvent(env.Data)
		if err != nil {
			f.logger.Warn("dropping malformed progress event",
				"device_sn", deviceSN, "error", err)
			return
		}
		if ev.DeviceSN == "" {
			ev.DeviceSN = deviceSN
		}
		f.reconciler.Apply(ctx, ev)

	case eventMethodRthDone:
		f.rth.MarkDone(deviceSN)

	default:
		f.logger.Debug("ignoring device event", "method", env.Method, "device_sn", deviceSN)
	}
}
