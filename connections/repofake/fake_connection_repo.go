package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiltonbrown/ledgerbot/connections"
	"github.com/hiltonbrown/ledgerbot/internal/utils"
)

var _ connections.Repo = (*FakeConnectionRepo)(nil)

// FakeConnectionRepo is an in-memory Repo for tests. It honours the same
// optimistic-locking contract as the Postgres implementation.
type FakeConnectionRepo struct {
	lock  sync.RWMutex
	conns map[string]*connections.Connection
}

func NewFakeConnectionRepo() *FakeConnectionRepo {
	return &FakeConnectionRepo{
		conns: make(map[string]*connections.Connection),
	}
}

func (r *FakeConnectionRepo) Create(_ context.Context, conn *connections.Connection) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, existing := range r.conns {
		if existing.UserID == conn.UserID && existing.TenantID == conn.TenantID && existing.Active() {
			return connections.ErrAlreadyActive
		}
	}

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.Status == "" {
		conn.Status = connections.StatusActive
	}
	if conn.RowVersion == 0 {
		conn.RowVersion = 1
	}
	now := time.Now()
	conn.CreatedAt = now
	conn.UpdatedAt = now

	r.conns[conn.ID] = clone(conn)

	return nil
}

func (r *FakeConnectionRepo) GetActive(_ context.Context, userID, tenantID string) (*connections.Connection, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, conn := range r.conns {
		if conn.UserID != userID || !conn.Active() {
			continue
		}
		if tenantID != "" && conn.TenantID != tenantID {
			continue
		}
		return clone(conn), nil
	}

	return nil, connections.ErrNotFound
}

func (r *FakeConnectionRepo) GetByID(_ context.Context, id string) (*connections.Connection, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, connections.ErrNotFound
	}

	return clone(conn), nil
}

func (r *FakeConnectionRepo) UpdateTokens(_ context.Context, id string, upd connections.TokenUpdate) (*connections.Connection, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, connections.ErrNotFound
	}
	if conn.RowVersion != upd.ExpectedRowVersion {
		return nil, connections.ErrVersionConflict
	}

	conn.AccessToken = upd.AccessToken
	conn.RefreshToken = upd.RefreshToken
	conn.ExpiresAt = upd.ExpiresAt
	conn.RowVersion++
	conn.UpdatedAt = time.Now()

	return clone(conn), nil
}

func (r *FakeConnectionRepo) UpdateRateLimit(_ context.Context, id string, snap connections.RateSnapshot) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return connections.ErrNotFound
	}

	conn.RateLimit = snap
	at := snap.UpdatedAt
	conn.LastAPICallAt = &at
	conn.UpdatedAt = time.Now()

	return nil
}

func (r *FakeConnectionRepo) Deactivate(_ context.Context, id string, status connections.Status) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return connections.ErrNotFound
	}

	conn.Status = status
	conn.UpdatedAt = time.Now()

	return nil
}

func clone(conn *connections.Connection) *connections.Connection {
	copied := *conn
	copied.Scopes = append([]string(nil), conn.Scopes...)
	if conn.LastAPICallAt != nil {
		copied.LastAPICallAt = utils.Ptr(*conn.LastAPICallAt)
	}
	return &copied
}
