package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/leebs0521/wayline-core/internal/types"
)

const (
	// qos 1 (at-least-once) matches the engine's duplicate-tolerant
	// event handling.
	qos    = 1
	retain = false

	defaultConnectTimeout = 10 * time.Second
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	BrokerURL    string        `yaml:"broker_url"`
	ClientID     string        `yaml:"client_id"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	ConnectRetry bool          `yaml:"connect_retry"`
	Timeout      time.Duration `yaml:"timeout"`
}

// MQTTTransport implements Transport over an MQTT broker.
//
// Replies are correlated by transaction id: one subscription per
// device's services_reply topic feeds a pending-call map. At-least-once
// delivery means a reply may arrive twice; only the first one resolves
// the pending call, the rest are dropped.
type MQTTTransport struct {
	client mqtt.Client
	logger *slog.Logger

	mu       sync.Mutex
	pending  map[types.ID]chan *Reply
	replySub map[string]struct{} // device serials with an active reply subscription
}

// NewMQTTTransport connects to the broker and returns the transport.
func NewMQTTTransport(cfg MQTTConfig, logger *slog.Logger) (*MQTTTransport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultConnectTimeout
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetConnectRetry(cfg.ConnectRetry).
		SetAutoReconnect(true).
		SetOrderMatters(false)

	t := &MQTTTransport{
		logger:   logger,
		pending:  make(map[types.ID]chan *Reply),
		replySub: make(map[string]struct{}),
	}

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.BrokerURL)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	t.client = mqtt.NewClient(opts)

	tok := t.client.Connect()
	if !tok.WaitTimeout(cfg.Timeout) {
		return nil, types.NewError(types.TRANSPORT_CONNECT_FAILED,
			fmt.Sprintf("broker %s did not accept connection within %s", cfg.BrokerURL, cfg.Timeout))
	}
	if err := tok.Error(); err != nil {
		return nil, types.WrapError(types.TRANSPORT_CONNECT_FAILED, "mqtt connect failed", err)
	}

	return t, nil
}

// Publish sends a fire-and-forget message to a topic.
func (t *MQTTTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	tok := t.client.Publish(topic, qos, retain, payload)

	select {
	case <-tok.Done():
		if err := tok.Error(); err != nil {
			return types.WrapError(types.TRANSPORT_PUBLISH_FAILED, fmt.Sprintf("publish to %s", topic), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for a topic.
func (t *MQTTTransport) Subscribe(topic string, handler Handler) (func(), error) {
	tok := t.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	tok.Wait()
	if err := tok.Error(); err != nil {
		return nil, types.WrapError(types.TRANSPORT_SUBSCRIBE_FAILED, fmt.Sprintf("subscribe to %s", topic), err)
	}

	cancel := func() {
		t.client.Unsubscribe(topic)
	}
	return cancel, nil
}

// RequestReply publishes a service request and waits for the correlated
// reply or the timeout.
func (t *MQTTTransport) RequestReply(ctx context.Context, deviceSN string, req Request, timeout time.Duration) (*Reply, error) {
	if err := t.ensureReplySubscription(deviceSN); err != nil {
		return nil, err
	}

	ch := make(chan *Reply, 1)
	t.mu.Lock()
	t.pending[req.Tid] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, req.Tid)
		t.mu.Unlock()
	}()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	if err := t.Publish(ctx, ServicesTopic(deviceSN), payload); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return nil, types.NewRetryableError(types.TRANSPORT_REPLY_TIMEOUT,
			fmt.Sprintf("no reply from %s for %s within %s", deviceSN, req.Method, timeout), nil)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ensureReplySubscription subscribes to a device's services_reply topic
// once and routes replies into the pending-call map.
func (t *MQTTTransport) ensureReplySubscription(deviceSN string) error {
	t.mu.Lock()
	_, exists := t.replySub[deviceSN]
	if !exists {
		t.replySub[deviceSN] = struct{}{}
	}
	t.mu.Unlock()
	if exists {
		return nil
	}

	_, err := t.Subscribe(ServicesReplyTopic(deviceSN), func(topic string, payload []byte) {
		var reply Reply
		if err := json.Unmarshal(payload, &reply); err != nil {
			t.logger.Warn("dropping malformed service reply", "topic", topic, "error", err)
			return
		}

		t.mu.Lock()
		ch, ok := t.pending[reply.Tid]
		t.mu.Unlock()
		if !ok {
			// Late or duplicate reply after the caller gave up.
			t.logger.Debug("no pending call for reply", "tid", reply.Tid)
			return
		}

		select {
		case ch <- &reply:
		default:
			// Duplicate delivery, first reply already consumed.
		}
	})
	if err != nil {
		t.mu.Lock()
		delete(t.replySub, deviceSN)
		t.mu.Unlock()
		return err
	}
	return nil
}

// Close disconnects from the broker.
func (t *MQTTTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}

// Ensure MQTTTransport implements Transport.
var _ Transport = (*MQTTTransport)(nil)
