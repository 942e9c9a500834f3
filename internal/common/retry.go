package common

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryableFunc defines a function that can be retried.
type RetryableFunc func() error

// Config holds the configuration for retry behavior.
type Config struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	retryIf      func(error) bool
}

// Option is a functional option for configuring retry behavior.
type Option func(*Config)

// WithMaxRetries sets the maximum number of retry attempts. Default is 3.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry. Default is 1 second.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between retries. Default is 30 seconds.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithMultiplier sets the exponential backoff multiplier. Default is 2.0.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithRetryIf limits retries to errors the predicate accepts.
// Collectors use this to retry only transient upstream failures
// (rate limits, 5xx) instead of retrying a 404 three times.
func WithRetryIf(pred func(error) bool) Option {
	return func(c *Config) {
		if pred != nil {
			c.retryIf = pred
		}
	}
}

func defaultConfig() *Config {
	return &Config{
		maxRetries:   3,
		initialDelay: 1 * time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		retryIf:      func(error) bool { return true },
	}
}

// Do executes fn with exponential backoff retry logic.
// It respects context cancellation, returns nil on the first success,
// and returns the last error once retries are exhausted or the retry
// predicate rejects the error.
func Do(ctx context.Context, fn RetryableFunc, opts ...Option) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !cfg.retryIf(lastErr) {
			return lastErr
		}
		if attempt >= cfg.maxRetries {
			break
		}

		delay := backoffDelay(attempt+1, cfg)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted during backoff (attempt %d/%d): %w", attempt+1, cfg.maxRetries, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxRetries+1, lastErr)
}

// backoffDelay computes initialDelay * multiplier^(attempt-1), capped at maxDelay.
func backoffDelay(attempt int, cfg *Config) time.Duration {
	delay := float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(attempt-1))
	if time.Duration(delay) > cfg.maxDelay {
		return cfg.maxDelay
	}
	return time.Duration(delay)
}
