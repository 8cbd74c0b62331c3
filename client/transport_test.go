package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"
)

func TestBearerRoundTripper_AuthFailedPerRequest(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer rejecting.Close()

	roundTripper := newBearerRoundTripper(&staticSupplier{token: "token-1"}, nil, zap.NewNop())
	httpClient := &http.Client{Transport: roundTripper}

	// a rejection that survives the refresh cycle marks the round trip
	resp, err := httpClient.Get(rejecting.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.True(t, roundTripper.AuthFailed())

	// a later connection-level failure is not an auth rejection
	_, err = httpClient.Get("http://127.0.0.1:1/")
	require.Error(t, err)
	assert.False(t, roundTripper.AuthFailed())
}

// A bearer rejection on one call must not recolor a later connection-level
// failure: the later call surfaces as a transport failure and downgrades
// the session.
func TestClient_Invoke_TransportFailureAfterAuthRejection(t *testing.T) {
	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer rejecting.Close()

	var httpClient *http.Client
	calls := 0
	transport := handshakeTransport(t, "execute_sql")
	transport.handlers[schema.MethodToolsCall] = func(request *jsonrpc.Request) (*jsonrpc.Response, error) {
		calls++
		if calls == 1 {
			resp, err := httpClient.Get(rejecting.URL)
			if err != nil {
				return nil, err
			}
			resp.Body.Close()
			return nil, fmt.Errorf("request rejected: %v", resp.StatusCode)
		}
		_, err := httpClient.Get("http://127.0.0.1:1/")
		return nil, err
	}
	client := New("https://example.com/mcp", "demo", &staticSupplier{token: "token-1"},
		WithDialer(func(ctx context.Context, endpointURL string, hc *http.Client) (Transport, error) {
			httpClient = hc
			return transport, nil
		}))
	_, err := client.Initialize(context.Background())
	require.NoError(t, err)

	_, err = client.Invoke(context.Background(), "execute_sql",
		map[string]interface{}{"query": "SELECT 1"})
	failure, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindAuthRequired, failure.Kind)
	// an auth rejection does not downgrade: re-consent can still use protocol
	assert.Equal(t, ModeProtocol, client.Session().Mode())

	_, err = client.Invoke(context.Background(), "execute_sql",
		map[string]interface{}{"query": "SELECT 1"})
	failure, ok = AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, failure.Kind)
	assert.Equal(t, ModeFallback, client.Session().Mode())
}
