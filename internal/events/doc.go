// Package events provides the in-process event bus that distributes
// task lifecycle events to subscribers (notification layers, CLI
// streams, metrics).
//
// The bus never blocks a publisher on a slow subscriber: each
// subscription has a buffered channel and events are dropped per
// subscriber when the buffer is full. Dropped events are reported to
// the configured error handler and metrics recorder.
package events
