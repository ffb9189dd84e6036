package apierror

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 10 * time.Second
	defaultMultiplier   = 2.0
)

type retryConfig struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	retryIf      func(*Classified) bool
	sleep        func(ctx context.Context, d time.Duration) error
}

type RetryOption func(*retryConfig)

func WithMaxRetries(n int) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxRetries = n
	}
}

func WithInitialDelay(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.initialDelay = d
	}
}

func WithMaxDelay(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxDelay = d
	}
}

func WithMultiplier(m float64) RetryOption {
	return func(cfg *retryConfig) {
		cfg.multiplier = m
	}
}

// WithRetryIf overrides the classifier's retryable verdict.
func WithRetryIf(predicate func(*Classified) bool) RetryOption {
	return func(cfg *retryConfig) {
		cfg.retryIf = predicate
	}
}

// withSleep swaps the delay function in tests.
func withSleep(sleep func(ctx context.Context, d time.Duration) error) RetryOption {
	return func(cfg *retryConfig) {
		cfg.sleep = sleep
	}
}

// RetryWithBackoff runs fn, classifying each failure and retrying transient
// ones with exponential backoff until the attempt budget is spent. The final
// error is the last classified failure, so callers keep the user message and
// reauth verdict of whatever ultimately went wrong.
func RetryWithBackoff(ctx context.Context, fn func(ctx context.Context) error, options ...RetryOption) error {
	cfg := retryConfig{
		maxRetries:   defaultMaxRetries,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		multiplier:   defaultMultiplier,
		sleep:        sleepContext,
	}

	for _, opt := range options {
		opt(&cfg)
	}

	var last *Classified

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		last = Classify(err)

		retryable := last.Retryable
		if cfg.retryIf != nil {
			retryable = cfg.retryIf(last)
		}
		if !retryable || attempt >= cfg.maxRetries {
			break
		}

		if err := cfg.sleep(ctx, cfg.delay(attempt)); err != nil {
			return err
		}
	}

	return errors.WithMessage(last, "retries exhausted")
}

func (cfg *retryConfig) delay(attempt int) time.Duration {
	d := time.Duration(float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(attempt)))
	if d > cfg.maxDelay || d <= 0 {
		return cfg.maxDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
