package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/hiltonbrown/ledgerbot/connections"
	"github.com/hiltonbrown/ledgerbot/internal/encryption"
	"github.com/hiltonbrown/ledgerbot/internal/utils"
)

const pgUniqueViolation = "23505"

var _ connections.Repo = (*ConnectionRepo)(nil)

// ConnectionRepo persists connections with token fields encrypted at rest.
// Token refreshes go through a row-version compare-and-swap so concurrent
// refreshers cannot clobber each other.
type ConnectionRepo struct {
	db     *sql.DB
	cipher *encryption.Cipher
}

func NewConnectionRepo(db *sql.DB, cipher *encryption.Cipher) *ConnectionRepo {
	return &ConnectionRepo{db: db, cipher: cipher}
}

const connectionColumns = `
	id, user_id, tenant_id, tenant_name, access_token, refresh_token,
	expires_at, scope, status, minute_remaining, day_remaining, rate_reset_at,
	rate_problem, rate_updated_at, last_api_call_at, row_version, created_at, updated_at`

func (r *ConnectionRepo) Create(ctx context.Context, conn *connections.Connection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	if conn.Status == "" {
		conn.Status = connections.StatusActive
	}

	accessToken, err := r.cipher.Encrypt(conn.AccessToken)
	if err != nil {
		return errors.Wrap(err, "encrypting access token")
	}
	refreshToken, err := r.cipher.Encrypt(conn.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "encrypting refresh token")
	}

	const q = `
		INSERT INTO xero_connections (
			id, user_id, tenant_id, tenant_name, access_token, refresh_token,
			expires_at, scope, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING row_version, created_at, updated_at`

	err = r.db.QueryRowContext(ctx, q,
		conn.ID,
		conn.UserID,
		conn.TenantID,
		conn.TenantName,
		accessToken,
		refreshToken,
		conn.ExpiresAt,
		strings.Join(conn.Scopes, " "),
		conn.Status,
	).Scan(&conn.RowVersion, &conn.CreatedAt, &conn.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return connections.ErrAlreadyActive
	}
	if err != nil {
		return errors.Wrap(err, "inserting connection")
	}

	return nil
}

func (r *ConnectionRepo) GetActive(ctx context.Context, userID, tenantID string) (*connections.Connection, error) {
	q := `
		SELECT ` + connectionColumns + `
		FROM xero_connections
		WHERE user_id = $1 AND status = 'active' AND ($2 = '' OR tenant_id = $2)
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanOne(r.db.QueryRowContext(ctx, q, userID, tenantID))
}

func (r *ConnectionRepo) GetByID(ctx context.Context, id string) (*connections.Connection, error) {
	q := `
		SELECT ` + connectionColumns + `
		FROM xero_connections
		WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *ConnectionRepo) UpdateTokens(ctx context.Context, id string, upd connections.TokenUpdate) (*connections.Connection, error) {
	accessToken, err := r.cipher.Encrypt(upd.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "encrypting access token")
	}
	refreshToken, err := r.cipher.Encrypt(upd.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "encrypting refresh token")
	}

	q := `
		UPDATE xero_connections
		SET access_token = $1,
			refresh_token = $2,
			expires_at = $3,
			row_version = row_version + 1,
			updated_at = now()
		WHERE id = $4 AND row_version = $5
		RETURNING ` + connectionColumns

	conn, err := r.scanOne(r.db.QueryRowContext(ctx, q, accessToken, refreshToken, upd.ExpiresAt, id, upd.ExpectedRowVersion))
	if err == nil {
		return conn, nil
	}
	if !errors.Is(err, connections.ErrNotFound) {
		return nil, err
	}

	// No row matched: either the id is gone or the version moved on.
	if _, gerr := r.GetByID(ctx, id); gerr != nil {
		return nil, gerr
	}
	return nil, connections.ErrVersionConflict
}

func (r *ConnectionRepo) UpdateRateLimit(ctx context.Context, id string, snap connections.RateSnapshot) error {
	const q = `
		UPDATE xero_connections
		SET minute_remaining = $1,
			day_remaining = $2,
			rate_reset_at = $3,
			rate_problem = $4,
			rate_updated_at = $5,
			last_api_call_at = $5,
			updated_at = now()
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, q,
		snap.MinuteRemaining,
		snap.DayRemaining,
		nullTime(snap.ResetAt),
		snap.Problem,
		snap.UpdatedAt,
		id,
	)
	if err != nil {
		return errors.Wrap(err, "updating rate limit snapshot")
	}

	return requireRow(result)
}

func (r *ConnectionRepo) Deactivate(ctx context.Context, id string, status connections.Status) error {
	const q = `
		UPDATE xero_connections
		SET status = $1, updated_at = now()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return errors.Wrap(err, "deactivating connection")
	}

	return requireRow(result)
}

func (r *ConnectionRepo) scanOne(row *sql.Row) (*connections.Connection, error) {
	var (
		conn          connections.Connection
		scope         string
		rateResetAt   sql.NullTime
		rateUpdatedAt sql.NullTime
		lastAPICallAt sql.NullTime
	)

	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.TenantID,
		&conn.TenantName,
		&conn.AccessToken,
		&conn.RefreshToken,
		&conn.ExpiresAt,
		&scope,
		&conn.Status,
		&conn.RateLimit.MinuteRemaining,
		&conn.RateLimit.DayRemaining,
		&rateResetAt,
		&conn.RateLimit.Problem,
		&rateUpdatedAt,
		&lastAPICallAt,
		&conn.RowVersion,
		&conn.CreatedAt,
		&conn.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, connections.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "scanning connection")
	}

	conn.AccessToken, err = r.cipher.Decrypt(conn.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting access token")
	}
	conn.RefreshToken, err = r.cipher.Decrypt(conn.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting refresh token")
	}

	if scope != "" {
		conn.Scopes = strings.Fields(scope)
	}
	if rateResetAt.Valid {
		conn.RateLimit.ResetAt = rateResetAt.Time
	}
	if rateUpdatedAt.Valid {
		conn.RateLimit.UpdatedAt = rateUpdatedAt.Time
	}
	if lastAPICallAt.Valid {
		conn.LastAPICallAt = utils.Ptr(lastAPICallAt.Time)
	}

	return &conn, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if affected == 0 {
		return connections.ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
