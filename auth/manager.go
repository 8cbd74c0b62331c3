package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viant/scy/auth/flow"
	"golang.org/x/oauth2"

	"github.com/bqlink/bqlink/auth/store"
)

var (
	// ErrAuthRequired signals that no usable credential exists and the
	// interactive consent flow has to run before any remote call can proceed.
	ErrAuthRequired = errors.New("authorization required")
	// ErrRefreshFailed signals that a refresh was attempted and the network
	// or the authorization server rejected it; the caller may retry or fall
	// back to interactive consent.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Manager owns the bearer credential: it loads the cached copy, refreshes
// it against the token endpoint when expired, persists every update, and
// supplies a valid access token on demand.
type Manager struct {
	config   *oauth2.Config
	store    store.Store
	authFlow flow.AuthFlow
	now      func() time.Time

	mu     sync.Mutex
	cached *store.Credential
}

type Option func(*Manager)

// WithAuthFlow overrides the interactive consent flow used by Authorize.
func WithAuthFlow(authFlow flow.AuthFlow) Option {
	return func(m *Manager) {
		m.authFlow = authFlow
	}
}

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func New(config *oauth2.Config, credentials store.Store, options ...Option) *Manager {
	ret := &Manager{
		config:   config,
		store:    credentials,
		authFlow: flow.NewBrowserFlow(),
		now:      time.Now,
	}
	if ret.store == nil {
		ret.store = store.NewMemoryStore()
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Load returns the persisted credential if present. Missing or corrupt
// storage yields nil rather than an error; the caller falls through to
// EnsureValid which signals ErrAuthRequired.
func (m *Manager) Load() *store.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

func (m *Manager) loadLocked() *store.Credential {
	if m.cached != nil {
		return m.cached
	}
	credential, err := m.store.Load()
	if err != nil {
		return nil
	}
	m.cached = credential
	return credential
}

// EnsureValid returns the credential unchanged when it is still valid,
// refreshes and persists it when it is refreshable, and signals
// ErrAuthRequired when neither holds.
func (m *Manager) EnsureValid(ctx context.Context) (*store.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credential := m.loadLocked()
	if credential.Valid(m.now()) {
		return credential, nil
	}
	if !credential.Refreshable() {
		return nil, ErrAuthRequired
	}
	return m.refreshLocked(ctx, credential)
}

// ForceRefresh refreshes the credential even when it looks valid locally.
// Used for the single retry cycle after the server rejected a token.
func (m *Manager) ForceRefresh(ctx context.Context) (*store.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credential := m.loadLocked()
	if !credential.Refreshable() {
		return nil, ErrAuthRequired
	}
	return m.refreshLocked(ctx, credential)
}

func (m *Manager) refreshLocked(ctx context.Context, credential *store.Credential) (*store.Credential, error) {
	stale := credential.Token()
	// force the refresh grant even when the local expiry looks fine
	stale.Expiry = time.Unix(1, 0)
	refreshed, err := m.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if refreshed.AccessToken == "" {
		return nil, fmt.Errorf("%w: token endpoint returned no access token", ErrRefreshFailed)
	}
	// preserve the refresh token when the authorization server omits it
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = credential.RefreshToken
	}
	if refreshed.Expiry.IsZero() {
		if expiry, ok := jwtExpiry(refreshed.AccessToken); ok {
			refreshed.Expiry = expiry
		}
	}
	next := store.FromToken(refreshed, credential.Scopes)
	if err = m.store.Save(next); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed credential: %w", err)
	}
	m.cached = next
	return next, nil
}

// Persist writes the credential to stable storage.
func (m *Manager) Persist(credential *store.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(credential); err != nil {
		return err
	}
	m.cached = credential
	return nil
}

// Authorize runs the interactive consent flow and persists the grant.
// The local callback listener lives only for the duration of the flow.
func (m *Manager) Authorize(ctx context.Context) (*store.Credential, error) {
	token, err := m.authFlow.Token(ctx, m.config)
	if err != nil {
		return nil, fmt.Errorf("consent flow failed: %w", err)
	}
	if token.Expiry.IsZero() {
		if expiry, ok := jwtExpiry(token.AccessToken); ok {
			token.Expiry = expiry
		}
	}
	credential := store.FromToken(token, m.config.Scopes)
	if err = m.Persist(credential); err != nil {
		return nil, err
	}
	return credential, nil
}

// AccessToken supplies a valid bearer token, refreshing the credential
// first when needed.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	credential, err := m.EnsureValid(ctx)
	if err != nil {
		return "", err
	}
	return credential.AccessToken, nil
}

// Refresh supplies a freshly refreshed bearer token regardless of the
// local expiry.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	credential, err := m.ForceRefresh(ctx)
	if err != nil {
		return "", err
	}
	return credential.AccessToken, nil
}
