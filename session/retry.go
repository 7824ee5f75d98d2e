package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"boltgraph/internal/errs"
)

// RetryConfig bounds transaction-function retries: exponential back-off
// with +-20% jitter, per spec defaults (initial 1s, multiplier 2, ceiling
// 30s). Application errors (anything not classified Transient) are never
// retried.
type RetryConfig struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig matches the spec's defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 1 * time.Second,
		Multiplier:      2,
		MaxElapsedTime:  30 * time.Second,
	}
}

// RetryOption customizes a single transaction-function call's retry
// behavior.
type RetryOption func(*RetryConfig)

// WithMaxElapsed overrides the retry ceiling.
func WithMaxElapsed(d time.Duration) RetryOption {
	return func(c *RetryConfig) { c.MaxElapsedTime = d }
}

// Retry runs work, retrying on errs.Transient failures using an
// exponential-backoff-with-jitter schedule until MaxElapsedTime elapses or
// ctx is cancelled. Non-transient errors return immediately.
func Retry(ctx context.Context, opts []RetryOption, work func() (any, error)) (any, error) {
	cfg := DefaultRetryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.InitialInterval
	bo.Multiplier = cfg.Multiplier
	bo.MaxElapsedTime = cfg.MaxElapsedTime
	bo.RandomizationFactor = 0.2 // +-20% jitter, per spec

	var result any
	var finalErr error
	op := func() error {
		r, err := work()
		if err == nil {
			result = r
			return nil
		}
		finalErr = err
		if errs.IsTransient(err) {
			return err // retryable: backoff.Retry will back off and try again
		}
		return backoff.Permanent(err)
	}

	bctx := backoff.WithContext(bo, ctx)
	if err := backoff.Retry(op, bctx); err != nil {
		if finalErr != nil {
			return nil, finalErr
		}
		return nil, errs.Wrap(errs.Transaction, err, "session: transaction retry exhausted")
	}
	return result, nil
}
