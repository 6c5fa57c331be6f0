package aws

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/models"
	"github.com/mosajjal/cwlogs2hec/pkg/provider"
)

// Decode stages reported by DecodeError
const (
	StageBase64 = "base64"
	StageGzip   = "gzip"
	StageJSON   = "json"
)

// DecodeError means the envelope payload could not be turned into JSON.
// Redelivery of the same payload will fail the same way.
type DecodeError struct {
	Stage string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s payload: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SchemaError means a required field is absent from the decoded payload
type SchemaError struct {
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Provider decodes CloudWatch Logs subscription envelopes
type Provider struct {
	logger *zap.Logger
}

// NewProvider creates a new AWS provider
func NewProvider(l *zap.Logger) provider.EnvelopeDecoder {
	if l == nil {
		l = zap.NewNop()
	}
	return &Provider{logger: l}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "aws"
}

// payload mirrors the decoded subscription data with pointers so absent
// fields can be told apart from empty ones
type payload struct {
	MessageType         string      `json:"messageType"`
	Owner               string      `json:"owner"`
	LogGroup            *string     `json:"logGroup"`
	LogStream           *string     `json:"logStream"`
	SubscriptionFilters []string    `json:"subscriptionFilters"`
	LogEvents           *[]logEvent `json:"logEvents"`
}

type logEvent struct {
	ID        string  `json:"id"`
	Timestamp *int64  `json:"timestamp"`
	Message   *string `json:"message"`
}

// Decode base64-decodes, decompresses and parses the awslogs payload
func (p *Provider) Decode(ctx context.Context, event events.CloudwatchLogsEvent) (*models.LogBatch, error) {
	if event.AWSLogs.Data == "" {
		return nil, &SchemaError{Field: "awslogs.data"}
	}

	data, err := decodeCloudWatchData(event.AWSLogs.Data)
	if err != nil {
		return nil, err
	}

	batch, err := parsePayload(data)
	if err != nil {
		return nil, err
	}

	logger.Dump(logger.FromContext(ctx, p.logger), zap.DebugLevel, "event_data", batch)
	return batch, nil
}

func parsePayload(data []byte) (*models.LogBatch, error) {
	var raw payload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Stage: StageJSON, Err: err}
	}

	switch {
	case raw.LogGroup == nil:
		return nil, &SchemaError{Field: "logGroup"}
	case raw.LogStream == nil:
		return nil, &SchemaError{Field: "logStream"}
	case raw.LogEvents == nil:
		return nil, &SchemaError{Field: "logEvents"}
	}

	batch := &models.LogBatch{
		MessageType:         raw.MessageType,
		Owner:               raw.Owner,
		LogGroup:            *raw.LogGroup,
		LogStream:           *raw.LogStream,
		SubscriptionFilters: raw.SubscriptionFilters,
		LogEvents:           make([]models.LogEvent, 0, len(*raw.LogEvents)),
	}
	for i, e := range *raw.LogEvents {
		if e.Message == nil {
			return nil, &SchemaError{Field: fmt.Sprintf("logEvents[%d].message", i)}
		}
		batch.LogEvents = append(batch.LogEvents, models.LogEvent{
			ID:        e.ID,
			Timestamp: e.Timestamp,
			Message:   *e.Message,
		})
	}
	return batch, nil
}

func decodeCloudWatchData(data string) ([]byte, error) {
	// Decode base64
	base64Decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, &DecodeError{Stage: StageBase64, Err: err}
	}

	// Decompress gzip
	gz, err := gzip.NewReader(bytes.NewReader(base64Decoded))
	if err != nil {
		return nil, &DecodeError{Stage: StageGzip, Err: err}
	}
	defer gz.Close()

	decompressed, err := io.ReadAll(gz)
	if err != nil {
		return nil, &DecodeError{Stage: StageGzip, Err: err}
	}

	return decompressed, nil
}

// Encode wraps a batch into a subscription envelope, the inverse of Decode.
func Encode(batch *models.LogBatch) (events.CloudwatchLogsEvent, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return events.CloudwatchLogsEvent{}, fmt.Errorf("failed to marshal batch: %w", err)
	}
	return EncodeRaw(data)
}

// EncodeRaw gzips and base64-encodes an already serialized payload.
func EncodeRaw(data []byte) (events.CloudwatchLogsEvent, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return events.CloudwatchLogsEvent{}, fmt.Errorf("failed to gzip payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return events.CloudwatchLogsEvent{}, fmt.Errorf("failed to gzip payload: %w", err)
	}

	return events.CloudwatchLogsEvent{
		AWSLogs: events.CloudwatchLogsRawData{
			Data: base64.StdEncoding.EncodeToString(buf.Bytes()),
		},
	}, nil
}
