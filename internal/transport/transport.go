// Package transport abstracts the asynchronous message channel between
// the cloud and docked devices. The engine core only depends on the
// three primitives here; the MQTT adapter is the production
// implementation and an in-memory implementation backs tests.
package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
)

// Handler consumes one inbound message from a subscribed topic.
// Handlers must not block; long work belongs on the caller's side.
type Handler func(topic string, payload []byte)

// Reply is the device's answer to a service request. Code 0 is a
// positive acknowledgment; any other code is a nack carrying a device
// error code for the classifier.
type Reply struct {
	// Tid is the transaction id the reply correlates to.
	Tid types.ID `json:"tid"`

	// Code is the device result code, 0 on success.
	Code int `json:"code"`

	// Message is the device's human-readable result text, if any.
	Message string `json:"message,omitempty"`

	// Payload is the method-specific reply body.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is one service call to a device.
type Request struct {
	// Tid is the transaction id used to correlate the reply.
	Tid types.ID `json:"tid"`

	// Bid groups all requests belonging to one flight task.
	Bid types.ID `json:"bid"`

	// Method names the device service being invoked.
	Method string `json:"method"`

	// Timestamp is the request send time in unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Data is the method-specific request body.
	Data any `json:"data,omitempty"`
}

// Transport is the contract the engine consumes.
//
// RequestReply publishes one service request to the device's command
// channel and waits for exactly one correlated reply or the timeout.
// A timeout does NOT mean the command had no effect on the device.
type Transport interface {
	// Publish sends a fire-and-forget message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic (wildcards allowed by
	// the underlying broker). The returned func cancels the
	// subscription and must be called to avoid leaks.
	Subscribe(topic string, handler Handler) (func(), error)

	// RequestReply performs a correlated service call to one device.
	// Returns types.TRANSPORT_REPLY_TIMEOUT (retryable) when no reply
	// arrives within the timeout.
	RequestReply(ctx context.Context, deviceSN string, req Request, timeout time.Duration) (*Reply, error)

	// Close releases the underlying connection.
	Close() error
}

// NewRequest builds a request with a fresh transaction id.
func NewRequest(bid types.ID, method string, data any) Request {
	return Request{
		Tid:       types.NewID(),
		Bid:       bid,
		Method:    method,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}
