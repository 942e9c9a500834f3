package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	},
		WithMaxRetries(5),
		WithInitialDelay(time.Millisecond),
	)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsRetries(t *testing.T) {
	calls := 0
	sentinel := errors.New("still broken")
	err := Do(context.Background(), func() error {
		calls++
		return sentinel
	},
		WithMaxRetries(2),
		WithInitialDelay(time.Millisecond),
	)

	assert.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

func TestDo_PredicateStopsRetry(t *testing.T) {
	calls := 0
	permanent := errors.New("not found")
	err := Do(context.Background(), func() error {
		calls++
		return permanent
	},
		WithMaxRetries(3),
		WithInitialDelay(time.Millisecond),
		WithRetryIf(func(err error) bool { return false }),
	)

	// Rejected errors come back unwrapped so callers can inspect them.
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func() error {
		calls++
		return errors.New("transient")
	},
		WithMaxRetries(3),
		WithInitialDelay(50*time.Millisecond),
	)

	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_NilFunction(t *testing.T) {
	err := Do(context.Background(), nil)
	assert.Error(t, err)
}

func TestBackoffDelay(t *testing.T) {
	cfg := &Config{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     time.Second,
		multiplier:   2.0,
	}

	assert.Equal(t, 100*time.Millisecond, backoffDelay(1, cfg))
	assert.Equal(t, 200*time.Millisecond, backoffDelay(2, cfg))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(3, cfg))
	// Exponential growth is capped at maxDelay.
	assert.Equal(t, time.Second, backoffDelay(8, cfg))
}
