package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/leebs0521/wayline-core/internal/types"
)

// MemoryTransport is an in-process Transport for tests and local
// development. Replies are scripted per device and method; published
// messages are fanned out to matching subscribers synchronously.
type MemoryTransport struct {
	mu          sync.Mutex
	subscribers map[string][]Handler
	replies     map[string]ReplyFunc
	requests    []RecordedRequest
	closed      bool
}

// ReplyFunc produces the scripted reply for one request. Returning nil
// simulates a device that never answers (the call times out).
type ReplyFunc func(req Request) *Reply

// RecordedRequest captures one RequestReply call for assertions.
type RecordedRequest struct {
	DeviceSN string
	Request  Request
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		subscribers: make(map[string][]Handler),
		replies:     make(map[string]ReplyFunc),
	}
}

// Script installs the reply producer for a device+method pair.
func (t *MemoryTransport) Script(deviceSN, method string, fn ReplyFunc) {
	t.mu.Lock()
	t.replies[deviceSN+"/"+method] = fn
	t.mu.Unlock()
}

// ScriptAck scripts a positive acknowledgment.
func (t *MemoryTransport) ScriptAck(deviceSN, method string) {
	t.Script(deviceSN, method, func(req Request) *Reply {
		return &Reply{Tid: req.Tid, Code: 0}
	})
}

// ScriptNack scripts a negative acknowledgment with a device code.
func (t *MemoryTransport) ScriptNack(deviceSN, method string, code int, message string) {
	t.Script(deviceSN, method, func(req Request) *Reply {
		return &Reply{Tid: req.Tid, Code: code, Message: message}
	})
}

// ScriptSilence scripts a device that never answers.
func (t *MemoryTransport) ScriptSilence(deviceSN, method string) {
	t.Script(deviceSN, method, func(Request) *Reply { return nil })
}

// Requests returns a copy of every recorded RequestReply call.
func (t *MemoryTransport) Requests() []RecordedRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RecordedRequest, len(t.requests))
	copy(out, t.requests)
	return out
}

// Publish fans the message out to matching subscribers synchronously.
func (t *MemoryTransport) Publish(_ context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("transport closed")
	}
	var handlers []Handler
	for pattern, hs := range t.subscribers {
		if !topicMatches(pattern, topic) {
			continue
		}
		for _, h := range hs {
			if h != nil {
				handlers = append(handlers, h)
			}
		}
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

// Subscribe registers a handler; "+" single-level wildcards are
// supported the way the broker supports them.
func (t *MemoryTransport) Subscribe(topic string, handler Handler) (func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, fmt.Errorf("transport closed")
	}

	t.subscribers[topic] = append(t.subscribers[topic], handler)
	idx := len(t.subscribers[topic]) - 1

	// Cancel nils the slot rather than re-slicing, so indices held by
	// other cancel closures on the same topic stay valid.
	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if hs := t.subscribers[topic]; idx < len(hs) {
			hs[idx] = nil
		}
	}
	return cancel, nil
}

// RequestReply resolves against the scripted reply for the
// device+method pair. Unscripted methods behave like silence.
func (t *MemoryTransport) RequestReply(ctx context.Context, deviceSN string, req Request, timeout time.Duration) (*Reply, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, fmt.Errorf("transport closed")
	}
	t.requests = append(t.requests, RecordedRequest{DeviceSN: deviceSN, Request: req})
	fn := t.replies[deviceSN+"/"+req.Method]
	t.mu.Unlock()

	if fn != nil {
		if reply := fn(req); reply != nil {
			return reply, nil
		}
	}

	// Scripted silence: honor the caller's timeout semantics without
	// actually sleeping through long timeouts in tests.
	wait := timeout
	if wait > 50*time.Millisecond {
		wait = 50 * time.Millisecond
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return nil, types.NewRetryableError(types.TRANSPORT_REPLY_TIMEOUT,
		fmt.Sprintf("no reply from %s for %s within %s", deviceSN, req.Method, timeout), nil)
}

// Close marks the transport closed.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

// topicMatches implements single-level "+" wildcard matching.
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pp := strings.Split(pattern, "/")
	tp := strings.Split(topic, "/")
	if len(pp) != len(tp) {
		return false
	}
	for i := range pp {
		if pp[i] != "+" && pp[i] != tp[i] {
			return false
		}
	}
	return true
}

// Ensure MemoryTransport implements Transport.
var _ Transport = (*MemoryTransport)(nil)
