// Package registry tracks which devices are online, whether the cloud
// holds control authority over them, and the coarse device facts
// (battery, storage) the readiness evaluator consumes. Full telemetry
// decoding lives outside this module; the registry only ingests the
// dock's status channel.
package registry

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/leebs0521/wayline-core/internal/transport"
	"github.com/leebs0521/wayline-core/internal/types"
)

// Registry is the device/topology contract the engine consumes.
type Registry interface {
	// IsOnline reports whether the device is currently connected.
	IsOnline(deviceSN string) bool

	// HasControl reports whether the cloud holds control authority
	// over the device.
	HasControl(deviceSN string) bool

	// BatteryPercent returns the drone battery percentage.
	BatteryPercent(deviceSN string) (int, error)

	// FreeStorageMB returns the free media storage on the device.
	FreeStorageMB(deviceSN string) (int64, error)
}

// deviceState is the registry's view of one device.
type deviceState struct {
	online         bool
	hasControl     bool
	batteryPercent int
	freeStorageMB  int64
	lastSeen       time.Time
}

// statusMessage is the dock's status channel payload.
type statusMessage struct {
	Online         *bool  `json:"online,omitempty"`
	HasControl     *bool  `json:"has_control,omitempty"`
	BatteryPercent *int   `json:"battery_percent,omitempty"`
	FreeStorageMB  *int64 `json:"free_storage_mb,omitempty"`
}

// TransportRegistry implements Registry fed by the status topic of
// every device on the transport.
type TransportRegistry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	devices map[string]*deviceState

	cancel func()
}

// NewTransportRegistry subscribes to the status wildcard and returns
// the registry.
func NewTransportRegistry(tr transport.Transport, logger *slog.Logger) (*TransportRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &TransportRegistry{
		logger:  logger,
		devices: make(map[string]*deviceState),
	}

	cancel, err := tr.Subscribe(transport.StatusWildcard, r.handleStatus)
	if err != nil {
		return nil, err
	}
	r.cancel = cancel
	return r, nil
}

// handleStatus folds one status message into the device map. Partial
// messages only update the fields they carry.
func (r *TransportRegistry) handleStatus(topic string, payload []byte) {
	sn := transport.DeviceSNFromTopic(topic)
	if sn == "" {
		return
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		r.logger.Warn("dropping malformed status message", "topic", topic, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.devices[sn]
	if !ok {
		st = &deviceState{}
		r.devices[sn] = st
	}
	st.lastSeen = time.Now()

	if msg.Online != nil {
		st.online = *msg.Online
	}
	if msg.HasControl != nil {
		st.hasControl = *msg.HasControl
	}
	if msg.BatteryPercent != nil {
		st.batteryPercent = *msg.BatteryPercent
	}
	if msg.FreeStorageMB != nil {
		st.freeStorageMB = *msg.FreeStorageMB
	}
}

// IsOnline reports whether the device is currently connected.
func (r *TransportRegistry) IsOnline(deviceSN string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.devices[deviceSN]
	return ok && st.online
}

// HasControl reports whether the cloud holds control authority.
func (r *TransportRegistry) HasControl(deviceSN string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.devices[deviceSN]
	return ok && st.hasControl
}

// BatteryPercent returns the drone battery percentage.
func (r *TransportRegistry) BatteryPercent(deviceSN string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.devices[deviceSN]
	if !ok {
		return 0, types.NewError(types.DEVICE_NOT_FOUND, "device never reported status: "+deviceSN)
	}
	return st.batteryPercent, nil
}

// FreeStorageMB returns the free media storage on the device.
func (r *TransportRegistry) FreeStorageMB(deviceSN string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.devices[deviceSN]
	if !ok {
		return 0, types.NewError(types.DEVICE_NOT_FOUND, "device never reported status: "+deviceSN)
	}
	return st.freeStorageMB, nil
}

// Close cancels the status subscription.
func (r *TransportRegistry) Close() {
	if r.cancel != nil {
		r.cancel()
	}
}

// StaticRegistry is a fixed-answer Registry for tests and tooling.
type StaticRegistry struct {
	mu      sync.RWMutex
	entries map[string]StaticDevice
}

// StaticDevice is one fixed device entry.
type StaticDevice struct {
	Online         bool
	HasControl     bool
	BatteryPercent int
	FreeStorageMB  int64
}

// NewStaticRegistry creates a registry with the given entries.
func NewStaticRegistry(entries map[string]StaticDevice) *StaticRegistry {
	if entries == nil {
		entries = make(map[string]StaticDevice)
	}
	return &StaticRegistry{entries: entries}
}

// Set replaces the entry for a device.
func (r *StaticRegistry) Set(deviceSN string, d StaticDevice) {
	r.mu.Lock()
	r.entries[deviceSN] = d
	r.mu.Unlock()
}

// IsOnline reports the fixed online state.
func (r *StaticRegistry) IsOnline(deviceSN string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[deviceSN].Online
}

// HasControl reports the fixed control state.
func (r *StaticRegistry) HasControl(deviceSN string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[deviceSN].HasControl
}

// BatteryPercent returns the fixed battery percentage.
func (r *StaticRegistry) BatteryPercent(deviceSN string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[deviceSN]
	if !ok {
		return 0, types.NewError(types.DEVICE_NOT_FOUND, "unknown device: "+deviceSN)
	}
	return d.BatteryPercent, nil
}

// FreeStorageMB returns the fixed free storage.
func (r *StaticRegistry) FreeStorageMB(deviceSN string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entries[deviceSN]
	if !ok {
		return 0, types.NewError(types.DEVICE_NOT_FOUND, "unknown device: "+deviceSN)
	}
	return d.FreeStorageMB, nil
}

// Ensure implementations satisfy Registry.
var (
	_ Registry = (*TransportRegistry)(nil)
	_ Registry = (*StaticRegistry)(nil)
)
