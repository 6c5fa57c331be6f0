package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Message types carried by a CloudWatch Logs subscription payload
const (
	MessageTypeData    = "DATA_MESSAGE"
	MessageTypeControl = "CONTROL_MESSAGE"
)

// LogEvent is a single CloudWatch log line
type LogEvent struct {
	ID        string `json:"id,omitempty"`
	Timestamp *int64 `json:"timestamp,omitempty"` // milliseconds since epoch, nil when absent
	Message   string `json:"message"`
}

// Time returns the event timestamp, or now when the event carries none.
func (e LogEvent) Time(now time.Time) time.Time {
	if e.Timestamp == nil {
		return now
	}
	return time.UnixMilli(*e.Timestamp)
}

// LogBatch is one decoded CloudWatch Logs subscription delivery
type LogBatch struct {
	MessageType         string     `json:"messageType,omitempty"`
	Owner               string     `json:"owner,omitempty"`
	LogGroup            string     `json:"logGroup"`
	LogStream           string     `json:"logStream"`
	SubscriptionFilters []string   `json:"subscriptionFilters,omitempty"`
	LogEvents           []LogEvent `json:"logEvents"`
}

// IsControl reports whether the batch is a subscription control message.
func (b *LogBatch) IsControl() bool {
	return b.MessageType == MessageTypeControl
}

// DeliveryConfig holds the Splunk connection parameters for one log group
type DeliveryConfig struct {
	HECEndpoint string
	HECToken    string
	SourceType  string
}

// String never prints the token.
func (c DeliveryConfig) String() string {
	return fmt.Sprintf("endpoint=%s sourcetype=%s token=%s", c.HECEndpoint, c.SourceType, redact(c.HECToken))
}

// MarshalJSON keeps the token out of log dumps.
func (c DeliveryConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		HECEndpoint string `json:"hec_endpoint"`
		HECToken    string `json:"hec_token"`
		SourceType  string `json:"sourcetype"`
	}{c.HECEndpoint, redact(c.HECToken), c.SourceType})
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// EventTime is an HEC event timestamp, encoded as epoch seconds with
// millisecond precision
type EventTime struct {
	time.Time
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	ms := t.UnixMilli()
	return []byte(strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)), nil
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	secs, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid event time %q: %w", data, err)
	}
	t.Time = time.UnixMilli(int64(math.Round(secs * 1000)))
	return nil
}

// EventBody is the payload of a Document
type EventBody struct {
	Message string `json:"message"`
}

// Document is one Splunk HEC ingestion document
type Document struct {
	Host       string    `json:"host"`
	Source     string    `json:"source"`
	SourceType string    `json:"sourcetype"`
	Time       EventTime `json:"time"`
	Event      EventBody `json:"event"`
}
