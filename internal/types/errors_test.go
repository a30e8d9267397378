package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoreError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewError(DB_QUERY_FAILED, "query failed")
		assert.Equal(t, "[DB_QUERY_FAILED] query failed", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("disk full")
		err := WrapError(DB_QUERY_FAILED, "query failed", cause)
		assert.Equal(t, "[DB_QUERY_FAILED] query failed: disk full", err.Error())
	})
}

func TestCoreError_Unwrap(t *testing.T) {
	cause := errors.New("broken pipe")
	err := WrapError(TRANSPORT_PUBLISH_FAILED, "publish failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestCoreError_Is(t *testing.T) {
	err := NewError(DEVICE_OFFLINE, "dock offline")
	wrapped := fmt.Errorf("sending command: %w", err)

	assert.ErrorIs(t, wrapped, NewError(DEVICE_OFFLINE, "different message"))
	assert.NotErrorIs(t, wrapped, NewError(DEVICE_NOT_FOUND, "dock offline"))
}

func TestIsRetryable(t *testing.T) {
	retryable := NewRetryableError(TRANSPORT_REPLY_TIMEOUT, "no reply", nil)
	terminal := NewError(CONFIG_PARSE_FAILED, "bad yaml")

	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", retryable)))
	assert.False(t, IsRetryable(terminal))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCodeOf(t *testing.T) {
	err := NewError(DEVICE_NO_FACTS, "no telemetry yet")

	assert.Equal(t, DEVICE_NO_FACTS, CodeOf(fmt.Errorf("w: %w", err)))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}
