package retry_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bananaslides/internal/retry"
)

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var delays []time.Duration

	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 4, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &retry.StatusError{Provider: "test", StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	}, func(_ error, next time.Duration) {
		delays = append(delays, next)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestDo_Exhausted(t *testing.T) {
	calls := 0

	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return retry.Transient(errors.New("connection reset"))
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	bad := &retry.StatusError{Provider: "test", StatusCode: http.StatusBadRequest, Body: "bad image"}

	err := retry.Do(context.Background(), retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		calls++
		return bad
	}, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	var se *retry.StatusError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}, func(ctx context.Context) error {
		return retry.Transient(errors.New("boom"))
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retry.Retryable(&retry.StatusError{StatusCode: 429}))
	assert.True(t, retry.Retryable(&retry.StatusError{StatusCode: 502}))
	assert.False(t, retry.Retryable(&retry.StatusError{StatusCode: 404}))
	assert.True(t, retry.Retryable(context.DeadlineExceeded))
	assert.False(t, retry.Retryable(errors.New("plain")))
	assert.False(t, retry.Retryable(nil))
}
