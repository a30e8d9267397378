package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicLayout(t *testing.T) {
	const sn = "1581F5BKD228Q00A826F"

	assert.Equal(t, "thing/product/1581F5BKD228Q00A826F/services", ServicesTopic(sn))
	assert.Equal(t, "thing/product/1581F5BKD228Q00A826F/services_reply", ServicesReplyTopic(sn))
	assert.Equal(t, "thing/product/1581F5BKD228Q00A826F/events", EventsTopic(sn))
	assert.Equal(t, "thing/product/1581F5BKD228Q00A826F/status", StatusTopic(sn))
}

func TestDeviceSNFromTopic(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  string
	}{
		{"events topic", "thing/product/SN123/events", "SN123"},
		{"services topic", "thing/product/SN123/services", "SN123"},
		{"status topic", "thing/product/SN123/status", "SN123"},
		{"wrong prefix", "other/product/SN123/events", ""},
		{"no channel segment", "thing/product/SN123", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceSNFromTopic(tt.topic))
		})
	}
}
