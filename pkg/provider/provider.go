package provider

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

// EnvelopeDecoder turns a raw subscription event into a LogBatch
type EnvelopeDecoder interface {
	// Name returns the provider name
	Name() string

	// Decode extracts and validates the batch carried by the event envelope
	Decode(ctx context.Context, event events.CloudwatchLogsEvent) (*models.LogBatch, error)
}
