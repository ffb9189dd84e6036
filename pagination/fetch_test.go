package pagination

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hiltonbrown/ledgerbot/xero"
)

// makePager serves total sequential ints in pageSize-sized pages.
func makePager(total int, requested *[]int) PageFunc[int] {
	return func(_ context.Context, page, pageSize int) ([]int, error) {
		*requested = append(*requested, page)

		start := (page - 1) * pageSize
		if start >= total {
			return nil, nil
		}
		end := start + pageSize
		if end > total {
			end = total
		}

		records := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			records = append(records, i)
		}
		return records, nil
	}
}

func noSleep(recorded *[]time.Duration) Option {
	return withSleep(func(_ context.Context, d time.Duration) error {
		*recorded = append(*recorded, d)
		return nil
	})
}

func TestFetchAllStopsOnShortPage(t *testing.T) {
	var requested []int

	results, err := FetchAll(context.Background(), makePager(250, &requested), 0, 100)
	require.NoError(t, err)
	require.Len(t, results, 250)
	require.Equal(t, []int{1, 2, 3}, requested)
}

func TestFetchAllNoPageAfterShortPage(t *testing.T) {
	var requested []int

	_, err := FetchAll(context.Background(), makePager(150, &requested), 0, 100)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, requested, "page 2 was short; no page 3 may be requested")
}

func TestFetchAllRespectsLimit(t *testing.T) {
	var requested []int

	results, err := FetchAll(context.Background(), makePager(500, &requested), 150, 100)
	require.NoError(t, err)
	require.Len(t, results, 150)
	require.Equal(t, []int{1, 2}, requested, "limit of 150 must cost exactly two page requests")
	require.Equal(t, 149, results[149])
}

func TestFetchAllExactMultipleOfPageSize(t *testing.T) {
	var requested []int

	results, err := FetchAll(context.Background(), makePager(200, &requested), 0, 100)
	require.NoError(t, err)
	require.Len(t, results, 200)
	// Page 3 comes back empty; one empty page is tolerated, two end the walk.
	require.Equal(t, []int{1, 2, 3, 4}, requested)
}

func TestFetchAllStopsAfterTwoConsecutiveEmptyPages(t *testing.T) {
	var requested []int
	fn := func(_ context.Context, page, _ int) ([]int, error) {
		requested = append(requested, page)
		return nil, nil
	}

	results, err := FetchAll(context.Background(), fn, 0, 100)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, []int{1, 2}, requested)
}

func TestFetchAllPageCountCeiling(t *testing.T) {
	pages := 0
	fn := func(_ context.Context, _, pageSize int) ([]int, error) {
		pages++
		return make([]int, pageSize), nil
	}

	results, err := FetchAll(context.Background(), fn, 0, 100)
	require.NoError(t, err)
	require.Equal(t, maxPages, pages)
	require.Len(t, results, maxPages*100)
}

func TestFetchAllClampsPageSize(t *testing.T) {
	var sizes []int
	fn := func(_ context.Context, _, pageSize int) ([]int, error) {
		sizes = append(sizes, pageSize)
		return nil, nil
	}

	_, err := FetchAll(context.Background(), fn, 0, 0)
	require.NoError(t, err)
	_, err = FetchAll(context.Background(), fn, 0, 5000)
	require.NoError(t, err)

	require.Equal(t, DefaultPageSize, sizes[0])
	require.Equal(t, MaxPageSize, sizes[len(sizes)-1])
}

func TestFetchAllRetriesRateLimitedPageWithHint(t *testing.T) {
	var (
		sleeps   []time.Duration
		attempts int
	)

	fn := func(_ context.Context, page, _ int) ([]int, error) {
		attempts++
		if attempts == 1 {
			return nil, &xero.Error{
				StatusCode: http.StatusTooManyRequests,
				RetryAfter: 2 * time.Second,
			}
		}
		return []int{page}, nil
	}

	results, err := FetchAll(context.Background(), fn, 0, 100, noSleep(&sleeps))
	require.NoError(t, err)
	require.Equal(t, []int{1}, results)
	require.Equal(t, 2, attempts, "exactly one retry")
	require.Equal(t, []time.Duration{2 * time.Second}, sleeps, "retry hint wins over default backoff")
}

func TestFetchAllRateLimitBackoffWithoutHint(t *testing.T) {
	var sleeps []time.Duration

	fn := func(_ context.Context, _, _ int) ([]int, error) {
		return nil, &xero.Error{StatusCode: http.StatusTooManyRequests}
	}

	_, err := FetchAll(context.Background(), fn, 0, 100, noSleep(&sleeps))
	require.Error(t, err)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeps)

	var apiErr *xero.Error
	require.ErrorAs(t, err, &apiErr)
}

func TestFetchAllDoesNotRetryOtherErrors(t *testing.T) {
	attempts := 0
	cause := errors.Wrap(&xero.Error{StatusCode: http.StatusInternalServerError}, "fetching invoices")

	fn := func(_ context.Context, _, _ int) ([]int, error) {
		attempts++
		return nil, cause
	}

	_, err := FetchAll(context.Background(), fn, 0, 100)
	require.Equal(t, cause, err, "non rate-limit errors propagate unchanged")
	require.Equal(t, 1, attempts)
}
