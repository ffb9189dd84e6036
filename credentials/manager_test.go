package credentials_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hiltonbrown/ledgerbot/connections"
	"github.com/hiltonbrown/ledgerbot/connections/repofake"
	"github.com/hiltonbrown/ledgerbot/credentials"
	"github.com/hiltonbrown/ledgerbot/ratelimit"
)

const (
	testUserID   = "user-1"
	testTenantID = "tenant-1"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type testFixture struct {
	repo      *repofake.FakeConnectionRepo
	manager   *credentials.Manager
	tokenHits *atomic.Int64
	server    *httptest.Server
	now       time.Time
}

// setupFixture wires a manager against an in-memory repo and a stubbed Xero
// token endpoint that serves respond() on every refresh exchange.
func setupFixture(t *testing.T, respond func(w http.ResponseWriter)) *testFixture {
	t.Helper()

	hits := &atomic.Int64{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		respond(w)
	}))
	t.Cleanup(server.Close)

	repo := repofake.NewFakeConnectionRepo()
	governor := ratelimit.New(repo, zerolog.Nop())
	now := time.Now()

	manager := credentials.New(repo, governor, &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: server.URL},
	}, zerolog.Nop(), credentials.WithNowFunc(func() time.Time { return now }))

	return &testFixture{repo: repo, manager: manager, tokenHits: hits, server: server, now: now}
}

func (f *testFixture) createConnection(t *testing.T, expiresAt time.Time) *connections.Connection {
	t.Helper()

	conn := &connections.Connection{
		UserID:       testUserID,
		TenantID:     testTenantID,
		AccessToken:  "stored-access",
		RefreshToken: "stored-refresh",
		ExpiresAt:    expiresAt,
	}
	require.NoError(t, f.repo.Create(context.Background(), conn))

	return conn
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()

	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"exp": exp.Unix(),
		"sub": "xero-user",
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)

	return raw
}

func serveToken(t *testing.T, accessToken, refreshToken string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    1800,
		}))
	}
}

func TestFreshCredentialSkipsRefresh(t *testing.T) {
	f := setupFixture(t, serveToken(t, "unused", "unused"))
	f.createConnection(t, f.now.Add(20*time.Minute))

	client, conn, err := f.manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, "stored-access", conn.AccessToken)
	require.Equal(t, int64(0), f.tokenHits.Load())
}

func TestNearExpiryForcesRefresh(t *testing.T) {
	claimExp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	f := setupFixture(t, serveToken(t, signedToken(t, claimExp), "rotated-refresh"))

	// 30 seconds of lifetime left: inside the safety margin, must refresh.
	f.createConnection(t, f.now.Add(30*time.Second))

	_, conn, err := f.manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
	require.NoError(t, err)
	require.Equal(t, int64(1), f.tokenHits.Load())
	require.Equal(t, "rotated-refresh", conn.RefreshToken)
	require.Equal(t, claimExp.UTC(), conn.ExpiresAt.UTC(), "expiry must come from the token's own exp claim")

	stored, err := f.repo.GetByID(context.Background(), conn.ID)
	require.NoError(t, err)
	require.Equal(t, "rotated-refresh", stored.RefreshToken)
	require.Equal(t, int64(2), stored.RowVersion)
}

func TestExpiryFallsBackToDeclaredLifetime(t *testing.T) {
	// An opaque (non-JWT) access token: the declared expires_in must win.
	f := setupFixture(t, serveToken(t, "opaque-access-token", "rotated-refresh"))
	f.createConnection(t, f.now.Add(-time.Minute))

	_, conn, err := f.manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(1800*time.Second), conn.ExpiresAt, 30*time.Second)
}

func TestRevokedGrantDeactivatesConnection(t *testing.T) {
	f := setupFixture(t, func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	created := f.createConnection(t, f.now.Add(-time.Minute))

	_, _, err := f.manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
	require.ErrorIs(t, err, credentials.ErrReauthRequired)

	stored, gerr := f.repo.GetByID(context.Background(), created.ID)
	require.NoError(t, gerr)
	require.Equal(t, connections.StatusRevoked, stored.Status)
}

func TestMissingConnection(t *testing.T) {
	f := setupFixture(t, serveToken(t, "unused", "unused"))

	_, _, err := f.manager.EnsureValidCredential(context.Background(), testUserID, "")
	require.ErrorIs(t, err, credentials.ErrConnectionNotFound)
}

func TestTenantMismatch(t *testing.T) {
	f := setupFixture(t, serveToken(t, "unused", "unused"))
	f.createConnection(t, f.now.Add(20*time.Minute))

	_, _, err := f.manager.EnsureValidCredential(context.Background(), testUserID, "some-other-tenant")
	require.ErrorIs(t, err, credentials.ErrConnectionNotFound)
}

// staleReadRepo serves a frozen copy of a connection from GetActive, as if
// the row were read just before a concurrent refresher committed. Writes and
// re-reads go to the real repo, so the loser's UpdateTokens genuinely loses
// the optimistic lock.
type staleReadRepo struct {
	connections.Repo
	stale *connections.Connection
}

func (r *staleReadRepo) GetActive(context.Context, string, string) (*connections.Connection, error) {
	copied := *r.stale
	return &copied, nil
}

func TestLostRefreshRaceAdoptsWinnerTokens(t *testing.T) {
	winnerExp := time.Now().Add(25 * time.Minute)
	f := setupFixture(t, serveToken(t, signedToken(t, winnerExp), "loser-refresh"))

	created := f.createConnection(t, f.now.Add(-time.Minute))
	stale := *created

	// Commit the "winner's" refresh; the row version moves past what the
	// loser read.
	winner, err := f.repo.UpdateTokens(context.Background(), created.ID, connections.TokenUpdate{
		AccessToken:        "winner-access",
		RefreshToken:       "winner-refresh",
		ExpiresAt:          winnerExp,
		ExpectedRowVersion: created.RowVersion,
	})
	require.NoError(t, err)

	governor := ratelimit.New(f.repo, zerolog.Nop())
	manager := credentials.New(&staleReadRepo{Repo: f.repo, stale: &stale}, governor, &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{TokenURL: f.server.URL},
	}, zerolog.Nop())

	_, conn, err := manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
	require.NoError(t, err)
	require.Equal(t, int64(1), f.tokenHits.Load(), "loser still performed its refresh exchange")
	require.Equal(t, winner.AccessToken, conn.AccessToken, "loser must adopt the winner's committed tokens")
	require.Equal(t, winner.RefreshToken, conn.RefreshToken)
	require.False(t, conn.ExpiresWithin(time.Now(), time.Minute))
}

func TestLostRaceWithNothingRecoverable(t *testing.T) {
	f := setupFixture(t, serveToken(t, "opaque", "refresh"))
	f.createConnection(t, f.now.Add(-time.Minute))

	// Every write conflicts and the stored row stays expired, so there is no
	// valid credential to fall back on.
	stuck := &alwaysConflictRepo{Repo: f.repo}
	governor := ratelimit.New(f.repo, zerolog.Nop())
	manager := credentials.New(stuck, governor, &oauth2.Config{
		ClientID: "client-id",
		Endpoint: oauth2.Endpoint{TokenURL: f.server.URL},
	}, zerolog.Nop())

	_, _, err := manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
	require.ErrorIs(t, err, credentials.ErrReauthRequired)
}

type alwaysConflictRepo struct {
	connections.Repo
}

func (r *alwaysConflictRepo) UpdateTokens(context.Context, string, connections.TokenUpdate) (*connections.Connection, error) {
	return nil, connections.ErrVersionConflict
}

func TestConcurrentRefreshersBothEndUpValid(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute)
	f := setupFixture(t, serveToken(t, signedToken(t, exp), "rotated-refresh"))
	f.createConnection(t, f.now.Add(-time.Minute))

	var wg sync.WaitGroup
	results := make([]*connections.Connection, 2)
	errs := make([]error, 2)

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i], errs[i] = f.manager.EnsureValidCredential(context.Background(), testUserID, testTenantID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		require.False(t, results[i].ExpiresWithin(time.Now(), time.Minute),
			"no caller may receive an already-expired token")
	}
}

func TestRegisterStoresConnection(t *testing.T) {
	f := setupFixture(t, serveToken(t, "unused", "unused"))

	exp := f.now.Add(25 * time.Minute)
	conn, err := f.manager.Register(context.Background(), testUserID, testTenantID, "Acme Ltd",
		&oauth2.Token{AccessToken: signedToken(t, exp), RefreshToken: "initial-refresh"},
		[]string{"offline_access", "accounting.transactions"})
	require.NoError(t, err)
	require.NotEmpty(t, conn.ID)
	require.Equal(t, exp.Unix(), conn.ExpiresAt.Unix(), "expiry derived from the token's own claims")

	stored, err := f.repo.GetActive(context.Background(), testUserID, testTenantID)
	require.NoError(t, err)
	require.Equal(t, "initial-refresh", stored.RefreshToken)
	require.True(t, stored.Active())
	require.Zero(t, f.tokenHits.Load(), "registration performs no token exchange")
}

func TestRegisterRejectsSecondActiveConnection(t *testing.T) {
	f := setupFixture(t, serveToken(t, "unused", "unused"))
	f.createConnection(t, f.now.Add(20*time.Minute))

	_, err := f.manager.Register(context.Background(), testUserID, testTenantID, "Acme Ltd",
		&oauth2.Token{AccessToken: signedToken(t, f.now.Add(25*time.Minute)), RefreshToken: "other-refresh"},
		nil)
	require.ErrorIs(t, err, connections.ErrAlreadyActive)
}
