package pagination

import (
	"context"
	"time"

	"github.com/hiltonbrown/ledgerbot/apierror"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000

	// Hard ceilings against a misbehaving upstream: a pager that never
	// shortens its pages, or a filter that matches nothing page after page.
	maxPages      = 100
	maxEmptyPages = 2

	maxRateLimitRetries = 3
	rateLimitBaseDelay  = time.Second
)

// PageFunc produces one page of results. Pages are numbered from 1.
type PageFunc[T any] func(ctx context.Context, page, pageSize int) ([]T, error)

type options struct {
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*options)

// withSleep swaps the backoff delay in tests.
func withSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// FetchAll walks pages until the upstream signals the end of results (a page
// shorter than pageSize), the caller's limit is reached, or a safety ceiling
// trips. A page that fails with a rate-limit error is retried in place with
// the response's retry hint, or exponential backoff when no hint is given;
// every other error propagates unchanged so callers keep the raw cause.
//
// limit <= 0 means no limit. pageSize is clamped to [1, MaxPageSize] with
// DefaultPageSize standing in for zero.
func FetchAll[T any](ctx context.Context, fn PageFunc[T], limit, pageSize int, opts ...Option) ([]T, error) {
	o := options{sleep: sleepContext}
	for _, opt := range opts {
		opt(&o)
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var (
		results    []T
		emptyPages int
	)

	for page := 1; page <= maxPages; page++ {
		records, err := fetchPage(ctx, fn, page, pageSize, o)
		if err != nil {
			return nil, err
		}

		if len(records) == 0 {
			// Tolerate a single empty page; a malformed filter can produce
			// one mid-walk. Two in a row means there is nothing left.
			emptyPages++
			if emptyPages >= maxEmptyPages {
				break
			}
			continue
		}
		emptyPages = 0

		results = append(results, records...)

		if limit > 0 && len(results) >= limit {
			results = results[:limit]
			break
		}

		if len(records) < pageSize {
			break
		}
	}

	return results, nil
}

func fetchPage[T any](ctx context.Context, fn PageFunc[T], page, pageSize int, o options) ([]T, error) {
	for attempt := 0; ; attempt++ {
		records, err := fn(ctx, page, pageSize)
		if err == nil {
			return records, nil
		}

		classified := apierror.Classify(err)
		if classified.Kind != apierror.KindRateLimit || attempt >= maxRateLimitRetries {
			return nil, err
		}

		delay := classified.RetryAfter
		if delay <= 0 {
			delay = rateLimitBaseDelay << attempt
		}

		if err := o.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
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
