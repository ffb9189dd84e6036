package credentials

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/hiltonbrown/ledgerbot/apierror"
	"github.com/hiltonbrown/ledgerbot/connections"
	"github.com/hiltonbrown/ledgerbot/ratelimit"
	"github.com/hiltonbrown/ledgerbot/xero"
)

const (
	// Tokens this close to expiry are treated as already expired: provider
	// clocks skew and a token can lapse mid-request.
	defaultExpiryMargin = 60 * time.Second

	// Xero access tokens live 30 minutes. Used only when neither the token's
	// own claims nor the token response declare an expiry.
	defaultFallbackLifetime = 30 * time.Minute
)

// Manager resolves a caller's active connection and guarantees the returned
// credential is usable: near-expiry tokens are refreshed before any API call
// is attempted, and concurrent refreshes are reconciled through the
// connection row's optimistic lock.
type Manager struct {
	repo             connections.Repo
	governor         *ratelimit.Governor
	oauth            *oauth2.Config
	log              zerolog.Logger
	nowFunc          func() time.Time
	expiryMargin     time.Duration
	fallbackLifetime time.Duration
	clientOptions    []xero.ClientOption
}

type Option func(*Manager)

func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithExpiryMargin(margin time.Duration) Option {
	return func(m *Manager) {
		m.expiryMargin = margin
	}
}

// WithClientOptions forwards options to every API client the manager builds.
func WithClientOptions(options ...xero.ClientOption) Option {
	return func(m *Manager) {
		m.clientOptions = options
	}
}

func New(repo connections.Repo, governor *ratelimit.Governor, oauthCfg *oauth2.Config, log zerolog.Logger, options ...Option) *Manager {
	m := &Manager{
		repo:             repo,
		governor:         governor,
		oauth:            oauthCfg,
		log:              log,
		nowFunc:          time.Now,
		expiryMargin:     defaultExpiryMargin,
		fallbackLifetime: defaultFallbackLifetime,
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// EnsureValidCredential resolves the user's active connection (scoped to
// tenantID when non-empty), refreshes the token pair if it is expired or
// inside the safety margin, and returns a ready-to-use API client alongside
// the connection it is bound to.
func (m *Manager) EnsureValidCredential(ctx context.Context, userID, tenantID string) (*xero.Client, *connections.Connection, error) {
	conn, err := m.repo.GetActive(ctx, userID, tenantID)
	if err != nil {
		if errors.Is(err, connections.ErrNotFound) {
			return nil, nil, errors.Wrapf(ErrConnectionNotFound, "user %s tenant %q", userID, tenantID)
		}
		return nil, nil, errors.Wrap(err, "resolving connection")
	}

	if conn.ExpiresWithin(m.nowFunc(), m.expiryMargin) {
		conn, err = m.refresh(ctx, conn)
		if err != nil {
			return nil, nil, err
		}
	}

	return xero.NewClient(conn, m.governor, m.log, m.clientOptions...), conn, nil
}

// Register stores a new active connection from a completed authorization
// grant. The expiry is derived from the access token itself, the same way a
// refresh derives it.
func (m *Manager) Register(ctx context.Context, userID, tenantID, tenantName string, tok *oauth2.Token, scopes []string) (*connections.Connection, error) {
	conn := &connections.Connection{
		UserID:       userID,
		TenantID:     tenantID,
		TenantName:   tenantName,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    m.expiryFor(tok),
		Scopes:       scopes,
		Status:       connections.StatusActive,
	}

	if err := m.repo.Create(ctx, conn); err != nil {
		if errors.Is(err, connections.ErrAlreadyActive) {
			return nil, errors.Wrapf(err, "user %s tenant %s", userID, tenantID)
		}
		return nil, errors.Wrap(err, "storing connection")
	}

	m.log.Info().
		Str("connection_id", conn.ID).
		Str("tenant_id", tenantID).
		Time("expires_at", conn.ExpiresAt).
		Msg("connection registered")

	return conn, nil
}

// refresh exchanges the stored refresh token for a new pair and persists it
// under the row version read above. Refresh exchanges are not idempotent at
// the provider, so losing the optimistic lock is not an error: the loser
// re-reads and adopts whatever the winner committed, as long as it is still
// valid.
func (m *Manager) refresh(ctx context.Context, conn *connections.Connection) (*connections.Connection, error) {
	m.log.Info().
		Str("connection_id", conn.ID).
		Str("tenant_id", conn.TenantID).
		Time("expires_at", conn.ExpiresAt).
		Msg("refreshing xero token")

	tok, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken}).Token()
	if err != nil {
		classified := apierror.Classify(err)
		if classified.RequiresReauth {
			if derr := m.repo.Deactivate(ctx, conn.ID, connections.StatusRevoked); derr != nil {
				m.log.Warn().Err(derr).Str("connection_id", conn.ID).Msg("failed to deactivate revoked connection")
			}
			m.log.Warn().
				Str("connection_id", conn.ID).
				Str("tenant_id", conn.TenantID).
				Msg("xero grant revoked")
			return nil, errors.Wrap(ErrReauthRequired, classified.UserMessage)
		}
		return nil, errors.Wrap(err, "refreshing token")
	}

	refreshToken := tok.RefreshToken
	if refreshToken == "" {
		refreshToken = conn.RefreshToken
	}

	updated, err := m.repo.UpdateTokens(ctx, conn.ID, connections.TokenUpdate{
		AccessToken:        tok.AccessToken,
		RefreshToken:       refreshToken,
		ExpiresAt:          m.expiryFor(tok),
		ExpectedRowVersion: conn.RowVersion,
	})
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, connections.ErrVersionConflict) {
		return nil, errors.Wrap(err, "persisting refreshed tokens")
	}

	m.log.Info().
		Str("connection_id", conn.ID).
		Msg("lost token refresh race, adopting concurrent refresher's tokens")

	current, err := m.repo.GetByID(ctx, conn.ID)
	if err != nil {
		return nil, errors.Wrap(err, "re-reading connection after lost refresh race")
	}

	if current.Active() && !current.ExpiresWithin(m.nowFunc(), m.expiryMargin) {
		return current, nil
	}

	return nil, errors.Wrap(ErrReauthRequired, "no valid credential recoverable after refresh race")
}

// expiryFor derives the authoritative expiry of a refreshed token. The
// token's own exp claim wins; the issuer-declared lifetime is an explicit
// fallback, since clock skew and provider-side early expiry make it the less
// reliable source.
func (m *Manager) expiryFor(tok *oauth2.Token) time.Time {
	if exp, ok := expiryFromClaims(tok.AccessToken); ok {
		return exp
	}
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	return m.nowFunc().Add(m.fallbackLifetime)
}
