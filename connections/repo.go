package connections

import (
	"context"
	"time"
)

// TokenUpdate carries a refreshed token pair. Access and refresh tokens are
// always written together: a refresh exchange invalidates the prior refresh
// token, so persisting one without the other would strand the connection.
type TokenUpdate struct {
	AccessToken        string
	RefreshToken       string
	ExpiresAt          time.Time
	ExpectedRowVersion int64
}

type Repo interface {
	Create(ctx context.Context, conn *Connection) error

	// GetActive returns the caller's active connection. An empty tenantID
	// matches any tenant; a non-empty one must match exactly. ErrNotFound
	// when no active connection satisfies the filter.
	GetActive(ctx context.Context, userID, tenantID string) (*Connection, error)

	GetByID(ctx context.Context, id string) (*Connection, error)

	// UpdateTokens applies upd only if the row still carries
	// upd.ExpectedRowVersion, returning the updated row. ErrVersionConflict
	// signals the optimistic lock was lost to a concurrent refresher.
	UpdateTokens(ctx context.Context, id string, upd TokenUpdate) (*Connection, error)

	// UpdateRateLimit stores the latest rate-limit snapshot and records the
	// API call timestamp. Last write wins; this is advisory state.
	UpdateRateLimit(ctx context.Context, id string, snap RateSnapshot) error

	Deactivate(ctx context.Context, id string, status Status) error
}
