package hec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/mosajjal/cwlogs2hec/pkg/logger"
	"github.com/mosajjal/cwlogs2hec/pkg/models"
)

// RetrySettings bounds redelivery of retryable failures
type RetrySettings struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetrySettings allows three retries after the first attempt
var DefaultRetrySettings = RetrySettings{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

// Retrier resends a prepared batch while failures are retryable
type Retrier struct {
	client   *Client
	settings RetrySettings
	logger   *zap.Logger
}

// NewRetrier wraps client with the given policy
func NewRetrier(client *Client, settings RetrySettings) *Retrier {
	return &Retrier{client: client, settings: settings, logger: client.logger}
}

// retryAfterBackOff waits at least as long as the last Retry-After header asked.
type retryAfterBackOff struct {
	backoff.BackOff
	min time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && next < b.min {
		next = b.min
	}
	b.min = 0
	return next
}

func (r *Retrier) newBackOff() *retryAfterBackOff {
	exp := backoff.NewExponentialBackOff()
	if r.settings.InitialInterval > 0 {
		exp.InitialInterval = r.settings.InitialInterval
	}
	if r.settings.MaxInterval > 0 {
		exp.MaxInterval = r.settings.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retryAfterBackOff{BackOff: exp}
}

// Send prepares batch once and posts it until it is accepted, a permanent
// error occurs, retries run out or ctx is done.
func (r *Retrier) Send(ctx context.Context, batch *models.LogBatch, dc *models.DeliveryConfig) (*Result, error) {
	res, err := r.client.Prepare(batch, dc)
	if err != nil {
		return nil, err
	}

	l := logger.FromContext(ctx, r.logger)
	ra := r.newBackOff()
	policy := backoff.WithContext(backoff.WithMaxRetries(ra, r.settings.MaxRetries), ctx)

	var last error
	op := func() error {
		err := r.client.Post(ctx, dc, res)
		if err == nil {
			return nil
		}
		last = err
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		var rejected *RejectedError
		if errors.As(err, &rejected) {
			ra.min = rejected.RetryAfter
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		l.Warn("retrying HEC delivery", zap.Error(err), zap.Duration("wait", wait), zap.Int("attempt", res.Attempts))
	}

	err = backoff.RetryNotify(op, policy, notify)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = stoppedError(err, last)
	}
	return res, err
}

// stoppedError keeps the last HEC answer when ctx ends between attempts.
func stoppedError(ctxErr, last error) error {
	var rejected *RejectedError
	if errors.As(last, &rejected) {
		return fmt.Errorf("%w: %w", last, ctxErr)
	}
	var transient *TransientError
	if errors.As(last, &transient) {
		return last
	}
	if errors.As(ctxErr, &transient) {
		return ctxErr
	}
	return &TransientError{Err: ctxErr}
}
