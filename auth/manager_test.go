package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/scy/auth/flow"
	"golang.org/x/oauth2"

	"github.com/bqlink/bqlink/auth/store"
)

type mockAuthFlow struct {
	token *oauth2.Token
	err   error
	calls int
}

func (m *mockAuthFlow) Token(ctx context.Context, config *oauth2.Config, options ...flow.Option) (*oauth2.Token, error) {
	m.calls++
	return m.token, m.err
}

type spyStore struct {
	store.Store
	saves int
}

func (s *spyStore) Save(credential *store.Credential) error {
	s.saves++
	return s.Store.Save(credential)
}

func newTokenEndpoint(t *testing.T, response map[string]interface{}, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(response)
	}))
}

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		Scopes:       []string{"scope-a"},
	}
}

func TestManager_EnsureValid_Refreshes(t *testing.T) {
	server := newTokenEndpoint(t, map[string]interface{}{
		"access_token": "fresh-token",
		"expires_in":   3600,
		"token_type":   "Bearer",
	}, http.StatusOK)
	defer server.Close()

	credentials := &spyStore{Store: store.NewMemoryStore()}
	require.NoError(t, credentials.Store.Save(&store.Credential{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Hour),
		Scopes:       []string{"scope-a"},
	}))

	manager := New(testConfig(server.URL), credentials)
	refreshed, err := manager.EnsureValid(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh-token", refreshed.AccessToken)
	// provider omitted the refresh token: the previous one is preserved
	assert.Equal(t, "refresh-token", refreshed.RefreshToken)
	assert.True(t, refreshed.Expiry.After(time.Now()))
	assert.Equal(t, []string{"scope-a"}, refreshed.Scopes)

	// persisted before return, field for field
	assert.Equal(t, 1, credentials.saves)
	persisted, err := credentials.Load()
	require.NoError(t, err)
	assert.Equal(t, refreshed, persisted)
}

func TestManager_EnsureValid_ValidUnchanged(t *testing.T) {
	credentials := &spyStore{Store: store.NewMemoryStore()}
	current := &store.Credential{AccessToken: "current", Expiry: time.Now().Add(time.Hour)}
	require.NoError(t, credentials.Store.Save(current))

	manager := New(testConfig("http://localhost:1/token"), credentials)
	ensured, err := manager.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, current.AccessToken, ensured.AccessToken)
	assert.Equal(t, 0, credentials.saves)
}

func TestManager_EnsureValid_AuthRequired(t *testing.T) {
	credentials := &spyStore{Store: store.NewMemoryStore()}
	require.NoError(t, credentials.Store.Save(&store.Credential{
		AccessToken: "stale-token",
		Expiry:      time.Now().Add(-time.Hour),
	}))

	manager := New(testConfig("http://localhost:1/token"), credentials)
	_, err := manager.EnsureValid(context.Background())
	assert.ErrorIs(t, err, ErrAuthRequired)
	// the storage writer is never touched
	assert.Equal(t, 0, credentials.saves)
}

func TestManager_EnsureValid_NoCredential(t *testing.T) {
	manager := New(testConfig("http://localhost:1/token"), store.NewMemoryStore())
	_, err := manager.EnsureValid(context.Background())
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestManager_Refresh_NetworkFailure(t *testing.T) {
	credentials := &spyStore{Store: store.NewMemoryStore()}
	require.NoError(t, credentials.Store.Save(&store.Credential{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	// nothing listens on this port
	manager := New(testConfig("http://127.0.0.1:1/token"), credentials)
	_, err := manager.EnsureValid(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Equal(t, 0, credentials.saves)
}

func TestManager_Refresh_MissingAccessToken(t *testing.T) {
	server := newTokenEndpoint(t, map[string]interface{}{
		"token_type": "Bearer",
		"expires_in": 3600,
	}, http.StatusOK)
	defer server.Close()

	credentials := &spyStore{Store: store.NewMemoryStore()}
	require.NoError(t, credentials.Store.Save(&store.Credential{
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	manager := New(testConfig(server.URL), credentials)
	_, err := manager.EnsureValid(context.Background())
	assert.ErrorIs(t, err, ErrRefreshFailed)
	// never a partial credential write
	assert.Equal(t, 0, credentials.saves)
}

func TestManager_Authorize(t *testing.T) {
	granted := &oauth2.Token{
		AccessToken:  "granted-token",
		RefreshToken: "granted-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}
	authFlow := &mockAuthFlow{token: granted}
	credentials := &spyStore{Store: store.NewMemoryStore()}

	manager := New(testConfig("http://localhost:1/token"), credentials, WithAuthFlow(authFlow))
	credential, err := manager.Authorize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, authFlow.calls)
	assert.Equal(t, "granted-token", credential.AccessToken)
	assert.Equal(t, []string{"scope-a"}, credential.Scopes)

	// the grant is persisted and survives a reload
	assert.Equal(t, 1, credentials.saves)
	persisted, err := credentials.Load()
	require.NoError(t, err)
	assert.Equal(t, "granted-refresh", persisted.RefreshToken)
}

func TestManager_Authorize_FlowFailure(t *testing.T) {
	authFlow := &mockAuthFlow{err: fmt.Errorf("consent denied")}
	credentials := &spyStore{Store: store.NewMemoryStore()}
	manager := New(testConfig("http://localhost:1/token"), credentials, WithAuthFlow(authFlow))
	_, err := manager.Authorize(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, credentials.saves)
}

func TestManager_ForceRefresh(t *testing.T) {
	server := newTokenEndpoint(t, map[string]interface{}{
		"access_token":  "rotated-token",
		"refresh_token": "rotated-refresh",
		"expires_in":    3600,
		"token_type":    "Bearer",
	}, http.StatusOK)
	defer server.Close()

	credentials := &spyStore{Store: store.NewMemoryStore()}
	require.NoError(t, credentials.Store.Save(&store.Credential{
		AccessToken:  "locally-valid",
		RefreshToken: "refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	}))

	manager := New(testConfig(server.URL), credentials)
	refreshed, err := manager.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-token", refreshed.AccessToken)
	// the authorization server rotated the refresh token
	assert.Equal(t, "rotated-refresh", refreshed.RefreshToken)
	assert.Equal(t, 1, credentials.saves)
}
