package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/models"
	"github.com/mosajjal/cwlogs2hec/pkg/storage"
)

// PutObjectAPI is the subset of the S3 API the archive needs
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage implements S3 backend for storage
type Storage struct {
	config    storage.StorageConfig
	client    PutObjectAPI
	bucket    string
	keyPrefix string
	logger    *zap.Logger
	now       func() time.Time
}

// NewStorage creates a new S3 storage backend
func NewStorage(cfg storage.StorageConfig, awsCfg aws.Config, l *zap.Logger) (*Storage, error) {
	return NewStorageWithClient(cfg, s3.NewFromConfig(awsCfg), l)
}

// NewStorageWithClient creates a storage backend on an existing client
func NewStorageWithClient(cfg storage.StorageConfig, client PutObjectAPI, l *zap.Logger) (*Storage, error) {
	bucket, keyPrefix, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}

	return &Storage{
		config:    cfg,
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		logger:    l,
		now:       time.Now,
	}, nil
}

// ParseURL extracts bucket and key prefix from virtual-hosted, path-style
// or s3:// URLs.
func ParseURL(raw string) (bucket, keyPrefix string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid S3 URL: %w", err)
	}

	switch {
	case u.Scheme == "s3":
		bucket = u.Host
		keyPrefix = strings.Trim(u.Path, "/")
	case strings.Contains(u.Host, ".s3.") || strings.Contains(u.Host, ".s3-"):
		// Virtual-hosted-style URL: bucket.s3.region.amazonaws.com
		bucket = strings.Split(u.Host, ".")[0]
		keyPrefix = strings.Trim(u.Path, "/")
	default:
		// Path-style URL: s3.region.amazonaws.com/bucket
		pathParts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		bucket = pathParts[0]
		if len(pathParts) > 1 {
			keyPrefix = pathParts[1]
		}
	}

	if bucket == "" {
		return "", "", fmt.Errorf("could not parse bucket name from URL: %s", raw)
	}
	return bucket, keyPrefix, nil
}

// Bucket returns the target bucket
func (s *Storage) Bucket() string { return s.bucket }

func (s *Storage) objectKey(now time.Time) string {
	name := fmt.Sprintf("%d/%02d/%02d/%02d/%s-%s.json.gz",
		now.Year(),
		now.Month(),
		now.Day(),
		now.Hour(),
		now.Format("2006-01-02T15:04:05.000Z"),
		uuid.New().String(),
	)
	if s.keyPrefix == "" {
		return name
	}
	return s.keyPrefix + "/" + name
}

// Store saves the gzipped documents to S3
func (s *Storage) Store(ctx context.Context, batch *models.LogBatch, body []byte) error {
	var buf bytes.Buffer
	gz, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := gz.Write(body); err != nil {
		return fmt.Errorf("failed to write to gzip: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to write to gzip: %w", err)
	}

	key := s.objectKey(s.now().UTC())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
		Metadata: map[string]string{
			"log-group":  batch.LogGroup,
			"log-stream": batch.LogStream,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	logger.FromContext(ctx, s.logger).Info("stored undeliverable batch in S3",
		zap.Int("events", len(batch.LogEvents)),
		zap.String("bucket", s.bucket),
		zap.String("key", key))
	return nil
}

// Close cleans up resources
func (s *Storage) Close() error {
	return nil
}
