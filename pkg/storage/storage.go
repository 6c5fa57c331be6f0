package storage

import (
	"context"

	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

// Archive keeps batches that could not be delivered to HEC
type Archive interface {
	// Store saves the encoded HEC documents of batch
	Store(ctx context.Context, batch *models.LogBatch, body []byte) error

	// Close cleans up resources
	Close() error
}

// StorageConfig holds common storage configuration
type StorageConfig struct {
	Provider string // s3
	URL      string
}
