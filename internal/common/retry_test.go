package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryOptions {
	return RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("flaky")
			}
			return nil
		}, fastRetry(5))

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: errors.New("bad request"), Retryable: false}
		}, fastRetry(5))

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errors.New("down")
		}, fastRetry(2))

		assert.ErrorIs(t, err, ErrMaxRetries)
		assert.Equal(t, 2, calls)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := WithRetry(ctx, func() error {
			return errors.New("down")
		}, RetryOptions{MaxAttempts: 3, InitialDelay: time.Second})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestWithRetryWrapsLastError(t *testing.T) {
	err := WithRetry(context.Background(), func() error {
		return fmt.Errorf("%w: slow down", ErrRateLimit)
	}, fastRetry(2))

	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.ErrorIs(t, err, ErrRateLimit)
}

func TestRetryDelay(t *testing.T) {
	opts := RetryOptions{MaxDelay: time.Minute}.withDefaults()
	backoff := 200 * time.Millisecond

	tests := []struct {
		err  error
		name string
		want time.Duration
	}{
		{name: "plain error backs off", err: errors.New("down"), want: backoff},
		{name: "rate limit without hint waits max", err: ErrRateLimit, want: time.Minute},
		{
			name: "server hint wins",
			err:  &RetryableError{Err: ErrRateLimit, RetryAfter: 7 * time.Second, Retryable: true},
			want: 7 * time.Second,
		},
		{
			name: "server hint capped",
			err:  &RetryableError{Err: errors.New("busy"), RetryAfter: time.Hour, Retryable: true},
			want: time.Minute,
		},
		{
			name: "wrapped hint",
			err:  fmt.Errorf("write: %w", &RetryableError{Err: errors.New("busy"), RetryAfter: time.Second, Retryable: true}),
			want: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, opts.delayFor(tt.err, backoff))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("503"), Retryable: true}))
	assert.False(t, IsRetryable(&RetryableError{Err: errors.New("400"), Retryable: false}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
