package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogEvent_Time(t *testing.T) {
	now := time.Unix(1700000000, 0)
	ts := int64(1000)

	assert.Equal(t, time.UnixMilli(1000), LogEvent{Timestamp: &ts}.Time(now))
	assert.Equal(t, now, LogEvent{}.Time(now))
}

func TestLogBatch_IsControl(t *testing.T) {
	assert.True(t, (&LogBatch{MessageType: MessageTypeControl}).IsControl())
	assert.False(t, (&LogBatch{MessageType: MessageTypeData}).IsControl())
	assert.False(t, (&LogBatch{}).IsControl())
}

func TestDeliveryConfig_Redacted(t *testing.T) {
	cfg := DeliveryConfig{
		HECEndpoint: "https://splunk.example.com:8088/services/collector",
		HECToken:    "00000000-1111-2222-3333-444444444444",
		SourceType:  "aws:cloudwatch",
	}

	b, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(b), cfg.HECToken)
	assert.Contains(t, string(b), `"hec_endpoint":"https://splunk.example.com:8088/services/collector"`)
	assert.NotContains(t, cfg.String(), cfg.HECToken)
}

func TestDocument_JSON(t *testing.T) {
	doc := Document{
		Host:       "/my/app",
		Source:     "stream1",
		SourceType: "aws:cloudwatch",
		Time:       EventTime{time.UnixMilli(1000)},
		Event:      EventBody{Message: "a"},
	}

	b, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, `{"host":"/my/app","source":"stream1","sourcetype":"aws:cloudwatch","time":1.000,"event":{"message":"a"}}`, string(b))

	var back Document
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, int64(1000), back.Time.UnixMilli())
}

func TestEventTime_Millis(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0.000"},
		{1, "0.001"},
		{1700000000123, "1700000000.123"},
	}

	for _, tt := range tests {
		b, err := EventTime{time.UnixMilli(tt.ms)}.MarshalJSON()
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(b))
	}
}
