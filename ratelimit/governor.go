package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/hiltonbrown/ledgerbot/connections"
)

// Xero enforces, per tenant: five concurrent calls, sixty calls a minute and
// five thousand a day. The concurrency cap is enforced live in-process; the
// quota windows are tracked from response headers on the connection row.
const (
	DefaultMaxConcurrent = 5
	DefaultMaxWait       = 5 * time.Minute
)

// Governor is the single admission point for outbound Xero calls. One
// instance is constructed at startup and injected wherever API calls are
// made, so tests and multiple processes never share counter state.
type Governor struct {
	repo          connections.Repo
	log           zerolog.Logger
	maxConcurrent int64
	maxWait       time.Duration
	nowFunc       func() time.Time

	lock     sync.Mutex
	sems     map[string]*semaphore.Weighted
	inFlight map[string]int64
}

type Option func(*Governor)

func WithMaxConcurrent(n int64) Option {
	return func(g *Governor) {
		g.maxConcurrent = n
	}
}

// WithMaxWait caps how long CheckBudget is willing to stall a caller before
// failing with ErrBudgetExhausted instead.
func WithMaxWait(d time.Duration) Option {
	return func(g *Governor) {
		g.maxWait = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Governor) {
		g.nowFunc = now
	}
}

func New(repo connections.Repo, log zerolog.Logger, options ...Option) *Governor {
	g := &Governor{
		repo:          repo,
		log:           log,
		maxConcurrent: DefaultMaxConcurrent,
		maxWait:       DefaultMaxWait,
		nowFunc:       time.Now,
		sems:          make(map[string]*semaphore.Weighted),
		inFlight:      make(map[string]int64),
	}

	for _, opt := range options {
		opt(g)
	}

	return g
}

// Acquire blocks until an in-flight slot is free for the connection, then
// claims it. The returned release function is safe to call more than once
// and must run on every exit path; deferring it immediately is the expected
// pattern. Waiting respects ctx: on cancellation no slot is held.
func (g *Governor) Acquire(ctx context.Context, connectionID string) (func(), error) {
	sem := g.sem(connectionID)

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	g.lock.Lock()
	g.inFlight[connectionID]++
	g.lock.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.lock.Lock()
			g.inFlight[connectionID]--
			g.lock.Unlock()
			sem.Release(1)
		})
	}

	return release, nil
}

// InFlight reports the live in-flight count for a connection.
func (g *Governor) InFlight(connectionID string) int64 {
	g.lock.Lock()
	defer g.lock.Unlock()
	return g.inFlight[connectionID]
}

// BudgetDelay inspects the connection's last-known quota snapshot and
// answers "proceed, wait, or fail": a zero delay means proceed, a positive
// delay means wait that long, and ErrBudgetExhausted means the wait until
// the documented reset would exceed the configured ceiling.
func (g *Governor) BudgetDelay(conn *connections.Connection) (time.Duration, error) {
	snap := conn.RateLimit
	if snap.UpdatedAt.IsZero() {
		return 0, nil
	}

	now := g.nowFunc()
	if !snap.ResetAt.After(now) {
		return 0, nil
	}

	if snap.MinuteRemaining > 0 && snap.DayRemaining > 0 && snap.Problem == "" {
		return 0, nil
	}

	wait := snap.ResetAt.Sub(now)
	if wait > g.maxWait {
		return 0, errors.Wrapf(ErrBudgetExhausted,
			"quota for connection %s resets in %s (problem=%q)", conn.ID, wait.Round(time.Second), snap.Problem)
	}

	return wait, nil
}

// CheckBudget applies BudgetDelay, sleeping out any required wait. The sleep
// honours ctx cancellation.
func (g *Governor) CheckBudget(ctx context.Context, conn *connections.Connection) error {
	wait, err := g.BudgetDelay(conn)
	if err != nil {
		return err
	}
	if wait <= 0 {
		return nil
	}

	g.log.Info().
		Str("connection_id", conn.ID).
		Dur("wait", wait).
		Str("problem", conn.RateLimit.Problem).
		Msg("rate budget exhausted, waiting for reset")

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordResponse persists the quota snapshot carried on an API response so
// later admission decisions run on fresh data. Last write wins; a persist
// failure is logged, not surfaced, because the API call itself succeeded.
func (g *Governor) RecordResponse(ctx context.Context, connectionID string, snap connections.RateSnapshot) {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = g.nowFunc()
	}

	if err := g.repo.UpdateRateLimit(ctx, connectionID, snap); err != nil {
		g.log.Warn().
			Err(err).
			Str("connection_id", connectionID).
			Msg("failed to persist rate limit snapshot")
	}
}

func (g *Governor) sem(connectionID string) *semaphore.Weighted {
	g.lock.Lock()
	defer g.lock.Unlock()

	sem, ok := g.sems[connectionID]
	if !ok {
		sem = semaphore.NewWeighted(g.maxConcurrent)
		g.sems[connectionID] = sem
	}

	return sem
}
