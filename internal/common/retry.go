package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryOptions configures retry behavior for external calls.
type RetryOptions struct {
	// Operation names the call in retry logs.
	Operation    string
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Operation == "" {
		o.Operation = "operation"
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}

// RetryableError classifies a failed call. RetryAfter is a wait requested by
// the server; when set it replaces the backoff delay, capped at MaxDelay.
type RetryableError struct {
	Err        error
	RetryAfter time.Duration
	Retryable  bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// WithRetry runs operation until it succeeds, returns a final error, or runs
// out of attempts. Unclassified errors are retried.
func WithRetry(ctx context.Context, operation func() error, opts RetryOptions) error {
	opts = opts.withDefaults()
	backoff := opts.InitialDelay

	for attempt := 1; ; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		var retryableErr *RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.Retryable {
			return err
		}

		if attempt >= opts.MaxAttempts {
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrMaxRetries, opts.Operation, attempt, err)
		}

		wait := opts.delayFor(err, backoff)
		slog.Warn("Call failed, retrying",
			"operation", opts.Operation,
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"delay", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = min(time.Duration(float64(backoff)*opts.Multiplier), opts.MaxDelay)
	}
}

// delayFor picks the wait before the next attempt: a server hint first, then
// the full MaxDelay for unhinted rate limits, then the current backoff.
func (o RetryOptions) delayFor(err error, backoff time.Duration) time.Duration {
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) && retryableErr.RetryAfter > 0 {
		return min(retryableErr.RetryAfter, o.MaxDelay)
	}
	if errors.Is(err, ErrRateLimit) {
		return o.MaxDelay
	}
	return min(backoff, o.MaxDelay)
}
