package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for wayline-core errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Database error codes
const (
	DB_OPEN_FAILED      ErrorCode = "DB_OPEN_FAILED"
	DB_MIGRATION_FAILED ErrorCode = "DB_MIGRATION_FAILED"
	DB_QUERY_FAILED     ErrorCode = "DB_QUERY_FAILED"
)

// Transport error codes
const (
	TRANSPORT_CONNECT_FAILED   ErrorCode = "TRANSPORT_CONNECT_FAILED"
	TRANSPORT_PUBLISH_FAILED   ErrorCode = "TRANSPORT_PUBLISH_FAILED"
	TRANSPORT_SUBSCRIBE_FAILED ErrorCode = "TRANSPORT_SUBSCRIBE_FAILED"
	TRANSPORT_REPLY_TIMEOUT    ErrorCode = "TRANSPORT_REPLY_TIMEOUT"
)

// Device registry error codes
const (
	DEVICE_NOT_FOUND ErrorCode = "DEVICE_NOT_FOUND"
	DEVICE_OFFLINE   ErrorCode = "DEVICE_OFFLINE"
	DEVICE_NO_FACTS  ErrorCode = "DEVICE_NO_FACTS"
)

// CoreError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints.
type CoreError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target is a CoreError with the same code.
func (e *CoreError) Is(target error) bool {
	var coreErr *CoreError
	if errors.As(target, &coreErr) {
		return e.Code == coreErr.Code
	}
	return false
}

// NewError creates a new CoreError with the given code and message.
func NewError(code ErrorCode, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// WrapError wraps an existing error with a code and message.
func WrapError(code ErrorCode, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Cause: cause}
}

// NewRetryableError creates a CoreError marked as retryable.
func NewRetryableError(code ErrorCode, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Retryable: true, Cause: cause}
}

// IsRetryable reports whether err carries a retryable hint anywhere in
// its chain.
func IsRetryable(err error) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err, or "" if err is not a CoreError.
func CodeOf(err error) ErrorCode {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return ""
}
