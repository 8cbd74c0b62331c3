package client

import (
	"net/http"
	"time"

	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"
)

// Option configures the session client.
type Option func(*Client)

// WithLogger sets the structured logger; the default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClientInfo sets the client identity sent during the handshake.
func WithClientInfo(name, version string) Option {
	return func(c *Client) {
		c.info = *schema.NewImplementation(name, version)
	}
}

// WithProtocolVersion overrides the requested protocol version.
func WithProtocolVersion(version string) Option {
	return func(c *Client) {
		c.protocolVersion = version
	}
}

// WithCapabilities sets the client capability set sent during the handshake.
func WithCapabilities(capabilities schema.ClientCapabilities) Option {
	return func(c *Client) {
		c.capabilities = capabilities
	}
}

// WithHandshakeTimeout bounds the handshake round trips. Invocations are
// bounded by the caller's context instead: queries may legitimately run
// long.
func WithHandshakeTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.handshakeTimeout = timeout
		}
	}
}

// WithDialer overrides how the protocol transport is opened.
func WithDialer(dial Dialer) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithHTTPTransport sets the transport beneath the bearer round tripper.
func WithHTTPTransport(transport http.RoundTripper) Option {
	return func(c *Client) {
		c.httpTransport = transport
	}
}

// WithBigQueryBaseURL overrides the REST fallback endpoint, mainly for tests.
func WithBigQueryBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.bqBaseURL = baseURL
	}
}
