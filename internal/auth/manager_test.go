package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/storage"
)

func newTestManager(t *testing.T, ssoURL string) (*Manager, storage.KV) {
	t.Helper()
	kv := storage.NewMemKV()
	m := NewManager(kv, nil)
	require.NoError(t, m.SetCredentials(Credentials{UserID: "user1", Password: "secret"}))
	require.NoError(t, m.SetConfig(GatewayConfig{
		SSOURL:     ssoURL,
		GatewayURL: "https://gateway.example.com",
		ProjectID:  "proj",
		Location:   "us-central1",
	}))
	return m, kv
}

func ssoStub(t *testing.T, hits *atomic.Int32, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user1", body["userid"])
		assert.Equal(t, "secret", body["password"])
		assert.Equal(t, "NONE", body["otp"])
		assert.Equal(t, "PUSH", body["otp_type"])

		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken: "tok-abc",
			TokenType:   "Bearer",
			ExpiresIn:   expiresIn,
		})
	}))
}

func TestGetValidTokenLogsInAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := ssoStub(t, &hits, 3600)
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)

	token, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)

	// Second call must come from the cache.
	token, err = m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, int32(1), hits.Load())
}

func TestStoredExpiryIncludesSafetyMargin(t *testing.T) {
	var hits atomic.Int32
	srv := ssoStub(t, &hits, 3600)
	defer srv.Close()

	m, kv := newTestManager(t, srv.URL)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	_, err := m.GetValidToken(context.Background())
	require.NoError(t, err)

	var stored storedToken
	require.NoError(t, kv.Get(keyToken, &stored))
	want := base.Add(3600*time.Second - safetyMargin).UnixMilli()
	assert.Equal(t, want, stored.ExpiryUnixMs)
}

func TestExpiredTokenTriggersRelogin(t *testing.T) {
	var hits atomic.Int32
	srv := ssoStub(t, &hits, 3600)
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	_, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(1), hits.Load())

	// Move past the stored expiry; the cached token must be discarded.
	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestInvalidateForcesFreshLogin(t *testing.T) {
	var hits atomic.Int32
	srv := ssoStub(t, &hits, 3600)
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)

	_, err := m.GetValidToken(context.Background())
	require.NoError(t, err)
	m.Invalidate()

	_, err = m.GetValidToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLoginFailureCarriesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)
	require.True(t, pkgerrors.IsAuth(err))

	var authErr *pkgerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, pkgerrors.ReasonLoginFailed, authErr.Reason)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
}

func TestGetValidTokenWithoutCredentials(t *testing.T) {
	m := NewManager(storage.NewMemKV(), nil)

	_, err := m.GetValidToken(context.Background())
	require.Error(t, err)

	var authErr *pkgerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, pkgerrors.ReasonNoCredentials, authErr.Reason)
}

func TestConfigured(t *testing.T) {
	m := NewManager(storage.NewMemKV(), nil)
	assert.False(t, m.Configured())

	require.NoError(t, m.SetCredentials(Credentials{UserID: "u", Password: "p"}))
	assert.False(t, m.Configured())

	require.NoError(t, m.SetConfig(GatewayConfig{SSOURL: "https://sso", GatewayURL: "https://gw"}))
	assert.True(t, m.Configured())
}
