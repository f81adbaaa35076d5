package persist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
	assert.Equal(t, 0.1, cfg.JitterFraction)
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	var attempts int
	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient error")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	var attempts int
	expectedErr := errors.New("persistent error")

	err := retryWithBackoff(context.Background(), fastRetry(3), func() error {
		attempts++
		return expectedErr
	})

	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_NoRetry(t *testing.T) {
	var attempts int
	cause := errors.New("constraint violation")

	err := retryWithBackoff(context.Background(), fastRetry(5), func() error {
		attempts++
		return core.NoRetry(cause)
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithBackoff_RetryAfterDelay(t *testing.T) {
	cfg := fastRetry(2)
	var timestamps []time.Time

	err := retryWithBackoff(context.Background(), cfg, func() error {
		timestamps = append(timestamps, time.Now())
		return core.RetryAfter(30*time.Millisecond, errors.New("busy"))
	})

	assert.Error(t, err)
	require.Len(t, timestamps, 2)
	assert.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 30*time.Millisecond)
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:       10,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        time.Second,
		BackoffMultiplier: 2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())
	var attempts atomic.Int32

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := retryWithBackoff(ctx, cfg, func() error {
		attempts.Add(1)
		return errors.New("keep failing")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, attempts.Load(), int32(1))
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context.Canceled", context.Canceled, false},
		{"context.DeadlineExceeded", context.DeadlineExceeded, false},
		{"no retry", core.NoRetry(errors.New("bad row")), false},
		{"retry after", core.RetryAfter(time.Second, errors.New("busy")), true},
		{"generic error", errors.New("some error"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryableError(tt.err))
		})
	}
}

func TestRetryOptions(t *testing.T) {
	cfg := NewConfig()
	WithRetryAttempts(7).ApplyWriter(cfg)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.InitialBackoff)

	WithRetryAttempts(1000).ApplyWriter(cfg)
	assert.Equal(t, 20, cfg.Retry.MaxAttempts)

	DisableRetry().ApplyWriter(cfg)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)

	WithRetry(RetryConfig{MaxAttempts: 0, InitialBackoff: time.Second}).ApplyWriter(cfg)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialBackoff)

	WithWindow(time.Hour).ApplyWriter(cfg)
	assert.Equal(t, 10*time.Second, cfg.Window)
}
