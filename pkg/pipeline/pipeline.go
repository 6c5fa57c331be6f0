package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/hec"
	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/metrics"
	"github.com/mosajjal/cwlogs2hec/pkg/models"
	"github.com/mosajjal/cwlogs2hec/pkg/params"
	"github.com/mosajjal/cwlogs2hec/pkg/provider"
	"github.com/mosajjal/cwlogs2hec/pkg/storage"
)

// DefaultArchiveTimeout bounds an archive upload made after a failed delivery.
const DefaultArchiveTimeout = 5 * time.Second

// Resolver returns the delivery config of a log group. *params.Resolver
// satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, logGroup string) (*models.DeliveryConfig, error)
}

// Sender delivers a batch. *hec.Retrier and *hec.Client satisfy it.
type Sender interface {
	Send(ctx context.Context, batch *models.LogBatch, dc *models.DeliveryConfig) (*hec.Result, error)
}

// Pipeline decodes one subscription event and forwards it to HEC
type Pipeline struct {
	decoder  provider.EnvelopeDecoder
	resolver Resolver
	sender   Sender
	archive  storage.Archive
	logger   *zap.Logger
	metrics  *metrics.Metrics

	archiveTimeout time.Duration
}

// Options holds the optional collaborators of a Pipeline
type Options struct {
	// Archive receives batches that could not be delivered. Nil disables it.
	Archive storage.Archive

	// ArchiveTimeout bounds one archive upload; DefaultArchiveTimeout when zero.
	ArchiveTimeout time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Result summarizes one handled event
type Result struct {
	LogGroup  string
	LogStream string
	Events    int
	Skipped   bool
	Delivery  *hec.Result
}

// New creates a pipeline
func New(decoder provider.EnvelopeDecoder, resolver Resolver, sender Sender, opts Options) *Pipeline {
	l := opts.Logger
	if l == nil {
		l = zap.NewNop()
	}
	archiveTimeout := opts.ArchiveTimeout
	if archiveTimeout <= 0 {
		archiveTimeout = DefaultArchiveTimeout
	}
	return &Pipeline{
		decoder:        decoder,
		resolver:       resolver,
		sender:         sender,
		archive:        opts.Archive,
		logger:         l,
		metrics:        opts.Metrics,
		archiveTimeout: archiveTimeout,
	}
}

// requestLogger annotates the logger with the invocation's request ID
func (p *Pipeline) requestLogger(ctx context.Context) *zap.Logger {
	l := logger.FromContext(ctx, p.logger)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		l = l.With(zap.String("request_id", lc.AwsRequestID))
		logger.Dump(l, zap.DebugLevel, "context", lc)
	}
	return l
}

// Handle runs decode, resolve and send for one event. Every failure is
// logged before it is returned.
func (p *Pipeline) Handle(ctx context.Context, event events.CloudwatchLogsEvent) (*Result, error) {
	l := p.requestLogger(ctx)
	ctx = logger.WithContext(ctx, l)
	logger.Dump(l, zap.DebugLevel, "event", event)

	batch, err := p.decoder.Decode(ctx, event)
	if err != nil {
		p.metrics.Batch(metrics.OutcomeDecode)
		l.Error("failed to decode event", zap.String("decoder", p.decoder.Name()), zap.Error(err))
		return nil, err
	}

	res := &Result{
		LogGroup:  batch.LogGroup,
		LogStream: batch.LogStream,
		Events:    len(batch.LogEvents),
	}
	l = l.With(zap.String("log_group", batch.LogGroup), zap.String("log_stream", batch.LogStream))
	ctx = logger.WithContext(ctx, l)

	if batch.IsControl() || len(batch.LogEvents) == 0 {
		res.Skipped = true
		p.metrics.Batch(metrics.OutcomeSkipped)
		l.Info("nothing to forward", zap.String("message_type", batch.MessageType), zap.Int("events", len(batch.LogEvents)))
		return res, nil
	}

	dc, err := p.resolver.Resolve(ctx, batch.LogGroup)
	if err != nil {
		p.metrics.Batch(metrics.OutcomeConfig)
		var missing *params.ConfigMissingError
		if errors.As(err, &missing) {
			l.Error("delivery config incomplete", zap.Strings("missing", missing.Keys), zap.Error(err))
		} else {
			l.Error("failed to resolve delivery config", zap.Error(err))
		}
		return res, err
	}

	delivery, err := p.sender.Send(ctx, batch, dc)
	res.Delivery = delivery
	if err != nil {
		p.metrics.Batch(deliveryOutcome(err))
		l.Error("failed to deliver batch", zap.Bool("retryable", hec.IsRetryable(err)), zap.Error(err))
		p.store(ctx, l, batch, delivery)
		return res, fmt.Errorf("log group %s: %w", batch.LogGroup, err)
	}

	p.metrics.Batch(metrics.OutcomeDelivered)
	p.metrics.Forwarded(delivery.Events)
	l.Info("batch delivered",
		zap.Int("events", delivery.Events),
		zap.Int("status_code", delivery.StatusCode),
		zap.Int("attempts", delivery.Attempts))
	return res, nil
}

// deliveryOutcome labels a failed delivery by what HEC did: answered with
// an error status, or never answered.
func deliveryOutcome(err error) string {
	var rejected *hec.RejectedError
	if errors.As(err, &rejected) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeTransient
}

// store archives a failed batch. The invocation deadline has usually passed
// by now, so the upload gets its own.
func (p *Pipeline) store(ctx context.Context, l *zap.Logger, batch *models.LogBatch, delivery *hec.Result) {
	if p.archive == nil || delivery == nil || len(delivery.Body) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.archiveTimeout)
	defer cancel()
	if err := p.archive.Store(ctx, batch, delivery.Body); err != nil {
		l.Error("failed to archive undeliverable batch", zap.Error(err))
		return
	}
	p.metrics.Archive()
}
