package transport

import (
	"fmt"
	"strings"
)

// Topic layout for docked devices. The dock relays drone traffic, so
// every topic is keyed by the dock serial.
//
//	thing/product/{sn}/services        cloud -> device service requests
//	thing/product/{sn}/services_reply  device -> cloud service replies
//	thing/product/{sn}/events          device -> cloud progress events
//	thing/product/{sn}/status          device online/offline state
const (
	topicPrefix = "thing/product"

	// EventsWildcard subscribes to progress events from every device.
	EventsWildcard = topicPrefix + "/+/events"

	// StatusWildcard subscribes to connection state from every device.
	StatusWildcard = topicPrefix + "/+/status"
)

// ServicesTopic is the command channel of one device.
func ServicesTopic(deviceSN string) string {
	return fmt.Sprintf("%s/%s/services", topicPrefix, deviceSN)
}

// ServicesReplyTopic is the reply channel of one device.
func ServicesReplyTopic(deviceSN string) string {
	return fmt.Sprintf("%s/%s/services_reply", topicPrefix, deviceSN)
}

// EventsTopic is the progress event channel of one device.
func EventsTopic(deviceSN string) string {
	return fmt.Sprintf("%s/%s/events", topicPrefix, deviceSN)
}

// StatusTopic is the connection state channel of one device.
func StatusTopic(deviceSN string) string {
	return fmt.Sprintf("%s/%s/status", topicPrefix, deviceSN)
}

// DeviceSNFromTopic extracts the serial from any of the topics above.
// Returns "" if the topic does not match the layout.
func DeviceSNFromTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, topicPrefix+"/")
	if !ok {
		return ""
	}
	sn, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return sn
}
