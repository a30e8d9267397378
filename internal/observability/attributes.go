package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by the engine's spans.
const (
	// AttrFlightID is the flight task identity.
	AttrFlightID = "wayline.flight_id"

	// AttrDeviceSN is the dock serial executing the task.
	AttrDeviceSN = "wayline.device_sn"

	// AttrTaskStatus is the lifecycle status after the operation.
	AttrTaskStatus = "wayline.task.status"

	// AttrTaskType is the scheduling type of the task.
	AttrTaskType = "wayline.task.type"

	// AttrMethod is the device service method dispatched.
	AttrMethod = "wayline.method"

	// AttrDeviceCode is the device result code of a reply or event.
	AttrDeviceCode = "wayline.device_code"
)

// FlightID returns the flight id span attribute.
func FlightID(id string) attribute.KeyValue {
	return attribute.String(AttrFlightID, id)
}

// DeviceSN returns the device serial span attribute.
func DeviceSN(sn string) attribute.KeyValue {
	return attribute.String(AttrDeviceSN, sn)
}

// TaskStatus returns the task status span attribute.
func TaskStatus(status string) attribute.KeyValue {
	return attribute.String(AttrTaskStatus, status)
}

// TaskType returns the task scheduling type span attribute.
func TaskType(taskType string) attribute.KeyValue {
	return attribute.String(AttrTaskType, taskType)
}

// DeviceCode returns the device result code span attribute.
func DeviceCode(code int) attribute.KeyValue {
	return attribute.Int(AttrDeviceCode, code)
}
