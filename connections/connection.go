package connections

import (
	"time"
)

// Status tracks the lifecycle of a Xero connection. Connections are never
// hard-deleted: a revoked grant or a user disconnect deactivates the row so
// the audit trail survives.
type Status string

const (
	StatusActive       Status = "active"
	StatusRevoked      Status = "revoked"
	StatusDisconnected Status = "disconnected"
)

// Connection links one user to one Xero organisation (tenant). Token fields
// hold plaintext in memory; repositories encrypt them at rest. RowVersion
// backs the optimistic lock used to resolve concurrent token refreshes.
type Connection struct {
	ID            string
	UserID        string
	TenantID      string
	TenantName    string
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
	Scopes        []string
	Status        Status
	RateLimit     RateSnapshot
	LastAPICallAt *time.Time
	RowVersion    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RateSnapshot is the last-known rate-limit state reported by Xero for this
// connection. It is advisory: stale-by-seconds data is acceptable, the live
// concurrency cap is enforced separately in-process.
type RateSnapshot struct {
	MinuteRemaining int
	DayRemaining    int
	ResetAt         time.Time
	Problem         string
	UpdatedAt       time.Time
}

func (c *Connection) Active() bool {
	return c != nil && c.Status == StatusActive
}

// ExpiresWithin reports whether the access token expires within margin of
// now. Callers treat such tokens as already expired rather than trusting a
// value that may lapse mid-request.
func (c *Connection) ExpiresWithin(now time.Time, margin time.Duration) bool {
	return !c.ExpiresAt.After(now.Add(margin))
}
