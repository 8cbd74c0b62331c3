package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// TokenSupplier provides the bearer token injected into every outbound
// request. AccessToken validates and refreshes the cached credential as
// needed; Refresh forces a refresh after a server-side rejection.
type TokenSupplier interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// bearerRoundTripper injects the bearer token into each request and, on a
// 401/403 response, performs exactly one refresh-and-retry cycle before the
// call is treated as failed. Both the protocol and the fallback transport
// share this single token-injection path.
type bearerRoundTripper struct {
	supplier  TokenSupplier
	transport http.RoundTripper
	logger    *zap.Logger

	mu         sync.Mutex
	authFailed bool
}

func newBearerRoundTripper(supplier TokenSupplier, transport http.RoundTripper, logger *zap.Logger) *bearerRoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &bearerRoundTripper{supplier: supplier, transport: transport, logger: logger}
}

func (r *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// the marker describes this round trip only; a rejection recorded by an
	// earlier request must not outlive it
	r.setAuthFailed(false)
	ctx := req.Context()
	token, err := r.supplier.AccessToken(ctx)
	if err != nil {
		r.setAuthFailed(true)
		return nil, err
	}

	resp, err := r.transport.RoundTrip(authorized(req, token))
	if err != nil {
		return nil, err
	}
	if !rejected(resp.StatusCode) {
		return resp, nil
	}
	resp.Body.Close()

	r.logger.Debug("bearer token rejected, refreshing once",
		zap.Int("status", resp.StatusCode))
	refreshed, err := r.supplier.Refresh(ctx)
	if err != nil {
		r.setAuthFailed(true)
		return nil, err
	}
	resp, err = r.transport.RoundTrip(authorized(req, refreshed))
	if err == nil {
		r.setAuthFailed(rejected(resp.StatusCode))
	}
	return resp, err
}

// AuthFailed reports whether the most recent round trip ended in an
// authorization rejection even after the single refresh-and-retry cycle.
func (r *bearerRoundTripper) AuthFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authFailed
}

func (r *bearerRoundTripper) setAuthFailed(failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.authFailed = failed
}

func rejected(statusCode int) bool {
	return statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden
}

// authorized clones the request with the bearer header set, deep-copying
// the body so the retry can replay a POST.
func authorized(req *http.Request, token string) *http.Request {
	cloned := req.Clone(req.Context())
	if req.Body != nil {
		buf, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewBuffer(buf))
		cloned.Body = io.NopCloser(bytes.NewBuffer(buf))
	}
	cloned.Header.Set("Authorization", "Bearer "+token)
	return cloned
}
