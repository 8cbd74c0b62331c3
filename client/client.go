package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport/client/http/streamable"
	"github.com/viant/mcp-protocol/schema"
	"go.uber.org/zap"

	"github.com/bqlink/bqlink/bigquery"
)

const defaultHandshakeTimeout = 15 * time.Second

// Transport is the JSON-RPC channel the protocol path sends over. Request
// id assignment and response correlation happen inside the implementation;
// the streamable HTTP client from viant/jsonrpc satisfies it.
type Transport interface {
	Send(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error)
	Notify(ctx context.Context, notification *jsonrpc.Notification) error
}

// Dialer opens the protocol transport to the endpoint.
type Dialer func(ctx context.Context, endpointURL string, httpClient *http.Client) (Transport, error)

// Client negotiates a session with the remote tool server and exposes a
// single Invoke operation that routes through the JSON-RPC transport or,
// after a failed handshake, the REST fallback. One logical session per
// process; invocations are serialized.
type Client struct {
	endpointURL     string
	projectID       string
	info            schema.Implementation
	capabilities    schema.ClientCapabilities
	protocolVersion string

	supplier         TokenSupplier
	logger           *zap.Logger
	dial             Dialer
	handshakeTimeout time.Duration

	httpTransport http.RoundTripper
	roundTripper  *bearerRoundTripper
	httpClient    *http.Client
	bq            *bigquery.Service
	bqBaseURL     string

	// mu serializes Initialize and Invoke; stateMu guards the lifecycle
	// fields so Close never waits on an in-flight invocation.
	mu        sync.Mutex
	stateMu   sync.Mutex
	state     State
	session   *Session
	transport Transport
}

// New creates a session client bound to the given token supplier. The
// client starts uninitialized; Initialize performs the handshake.
func New(endpointURL, projectID string, supplier TokenSupplier, options ...Option) *Client {
	ret := &Client{
		endpointURL:      endpointURL,
		projectID:        projectID,
		supplier:         supplier,
		info:             *schema.NewImplementation("bqlink", "0.1"),
		protocolVersion:  schema.LatestProtocolVersion,
		logger:           zap.NewNop(),
		handshakeTimeout: defaultHandshakeTimeout,
		state:            StateUninitialized,
	}
	for _, opt := range options {
		opt(ret)
	}
	ret.roundTripper = newBearerRoundTripper(supplier, ret.httpTransport, ret.logger)
	ret.httpClient = &http.Client{Transport: ret.roundTripper}
	var bqOptions []bigquery.Option
	if ret.bqBaseURL != "" {
		bqOptions = append(bqOptions, bigquery.WithBaseURL(ret.bqBaseURL))
	}
	ret.bq = bigquery.New(ret.httpClient, bqOptions...)
	if ret.dial == nil {
		ret.dial = ret.streamableDialer()
	}
	return ret
}

func (c *Client) streamableDialer() Dialer {
	handler := &serverMessageHandler{logger: c.logger}
	return func(ctx context.Context, endpointURL string, httpClient *http.Client) (Transport, error) {
		return streamable.New(ctx, endpointURL,
			streamable.WithHTTPClient(httpClient),
			streamable.WithHandler(handler))
	}
}

// Initialize performs the versioned handshake and tool discovery. Any
// transport error, timeout or malformed response downgrades to the REST
// fallback instead of failing: the caller sees a usable session either
// way, with Mode reporting which path succeeded. The one exception is
// cancellation of the caller's context, surfaced as a Cancelled failure.
func (c *Client) Initialize(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stateMu.Lock()
	switch c.state {
	case StateClosed:
		c.stateMu.Unlock()
		return nil, newFailure(KindInvalidState, "", "session is closed", nil)
	case StateReady:
		session := c.session
		c.stateMu.Unlock()
		return session, nil
	}
	c.state = StateHandshaking
	c.stateMu.Unlock()

	hctx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	defer cancel()
	session, err := c.handshake(hctx)
	if err != nil {
		if ctx.Err() != nil {
			c.stateMu.Lock()
			c.closeTransportLocked()
			if c.state != StateClosed {
				c.state = StateUninitialized
			}
			c.stateMu.Unlock()
			return nil, newFailure(KindCancelled, ModeProtocol, "handshake cancelled", ctx.Err())
		}
		c.logger.Warn("protocol handshake failed, switching to fallback transport",
			zap.String("endpoint", c.endpointURL), zap.Error(err))
		c.stateMu.Lock()
		c.closeTransportLocked()
		c.stateMu.Unlock()
		session = &Session{
			ID:    uuid.NewString(),
			Tools: map[string]schema.Tool{},
			mode:  ModeFallback,
		}
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateClosed {
		// closed while the handshake was in flight
		c.closeTransportLocked()
		return nil, newFailure(KindCancelled, session.mode, "session closed during initialization", nil)
	}
	c.session = session
	c.state = StateReady
	c.logger.Info("session established",
		zap.String("mode", string(session.mode)),
		zap.String("protocolVersion", session.ProtocolVersion),
		zap.Int("tools", len(session.Tools)))
	return session, nil
}

// handshake opens the protocol transport, negotiates version and
// capabilities, and discovers the tool catalog.
func (c *Client) handshake(ctx context.Context) (*Session, error) {
	rpcTransport, err := c.dial(ctx, c.endpointURL, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}
	c.stateMu.Lock()
	c.transport = rpcTransport
	c.stateMu.Unlock()

	params := &schema.InitializeRequestParams{
		Capabilities:    c.capabilities,
		ClientInfo:      c.info,
		ProtocolVersion: c.protocolVersion,
	}
	req, err := jsonrpc.NewRequest(schema.MethodInitialize, params)
	if err != nil {
		return nil, err
	}
	response, err := rpcTransport.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("initialize request failed: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("initialize rejected: %w", response.Error)
	}
	var result schema.InitializeResult
	if err = json.Unmarshal(response.Result, &result); err != nil {
		return nil, fmt.Errorf("malformed initialize result: %w", err)
	}
	if err = rpcTransport.Notify(ctx, &jsonrpc.Notification{Method: schema.MethodNotificationInitialized}); err != nil {
		return nil, fmt.Errorf("failed to notify initialized: %w", err)
	}

	tools, err := c.listTools(ctx, rpcTransport)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:              uuid.NewString(),
		ProtocolVersion: result.ProtocolVersion,
		ServerInfo:      result.ServerInfo,
		Capabilities:    result.Capabilities,
		Tools:           tools,
		mode:            ModeProtocol,
	}, nil
}

func (c *Client) listTools(ctx context.Context, rpcTransport Transport) (map[string]schema.Tool, error) {
	req, err := jsonrpc.NewRequest(schema.MethodToolsList, &schema.ListToolsRequestParams{})
	if err != nil {
		return nil, err
	}
	response, err := rpcTransport.Send(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("tools/list request failed: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("tools/list rejected: %w", response.Error)
	}
	var result schema.ListToolsResult
	if err = json.Unmarshal(response.Result, &result); err != nil {
		return nil, fmt.Errorf("malformed tools/list result: %w", err)
	}
	tools := make(map[string]schema.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		tools[tool.Name] = tool
	}
	return tools, nil
}

// Session returns the established session, or nil before Initialize.
func (c *Client) Session() *Session {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.session
}

func (c *Client) currentState() State {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Invoke calls the named tool with the given arguments and returns the
// structured result, or a typed *Failure. Each invocation completes before
// the next begins; there are no implicit retries beyond the single
// refresh-and-retry cycle on a rejected bearer token.
func (c *Client) Invoke(ctx context.Context, name string, arguments map[string]interface{}) (*schema.CallToolResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateMu.Lock()
	state, session, rpcTransport := c.state, c.session, c.transport
	c.stateMu.Unlock()
	if state != StateReady {
		return nil, newFailure(KindInvalidState, "",
			fmt.Sprintf("invoke requires an initialized session (state: %v)", state), nil)
	}
	if session.Mode() == ModeProtocol {
		return c.invokeProtocol(ctx, rpcTransport, name, arguments)
	}
	return c.invokeFallback(ctx, name, arguments)
}

func (c *Client) invokeProtocol(ctx context.Context, rpcTransport Transport, name string, arguments map[string]interface{}) (*schema.CallToolResult, error) {
	if len(c.session.Tools) > 0 {
		if _, ok := c.session.Tools[name]; !ok {
			return nil, newFailure(KindUnknownTool, ModeProtocol,
				fmt.Sprintf("tool %q is not in the discovered catalog", name), nil)
		}
	}
	params := &schema.CallToolRequestParams{Name: name, Arguments: arguments}
	req, err := jsonrpc.NewRequest(schema.MethodToolsCall, params)
	if err != nil {
		return nil, newFailure(KindProtocol, ModeProtocol, "failed to encode tools/call request", err)
	}
	response, err := rpcTransport.Send(ctx, req)
	if err != nil {
		if c.currentState() == StateClosed {
			return nil, newFailure(KindCancelled, ModeProtocol,
				"session closed while the call was outstanding", err)
		}
		if failure := classify(err, ModeProtocol); failure.Kind != KindTransport {
			return nil, failure
		}
		if c.roundTripper.AuthFailed() {
			return nil, newFailure(KindAuthRequired, ModeProtocol,
				"server rejected the bearer token after refresh", err)
		}
		// Connection-level failure: downgrade for the rest of the session
		// and surface this call as failed. The caller's retry goes over
		// the fallback transport; there is no way back to protocol mode.
		c.downgrade(err)
		return nil, newFailure(KindTransport, ModeProtocol, "tools/call transport failure", err)
	}
	if response.Error != nil {
		return nil, newFailure(KindRemoteTool, ModeProtocol,
			fmt.Sprintf("remote error %v: %v", response.Error.Code, response.Error.Message), response.Error)
	}
	var result schema.CallToolResult
	if err = json.Unmarshal(response.Result, &result); err != nil {
		return nil, newFailure(KindProtocol, ModeProtocol, "malformed tools/call result", err)
	}
	if result.IsError != nil && *result.IsError {
		return nil, newFailure(KindRemoteTool, ModeProtocol, textContent(&result), nil)
	}
	return &result, nil
}

func (c *Client) downgrade(cause error) {
	c.logger.Warn("protocol transport failed, downgrading session to fallback", zap.Error(cause))
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.closeTransportLocked()
	c.session.downgrade()
}

// Close releases the transport channel and transitions to the terminal
// closed state. It is idempotent and never waits on an in-flight
// invocation: closing the transport fails the outstanding call, which
// resolves as a Cancelled failure.
func (c *Client) Close() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == StateClosed {
		return nil
	}
	c.closeTransportLocked()
	c.state = StateClosed
	return nil
}

func (c *Client) closeTransportLocked() {
	if c.transport == nil {
		return
	}
	if closer, ok := c.transport.(io.Closer); ok {
		_ = closer.Close()
	}
	c.transport = nil
}

func textContent(result *schema.CallToolResult) string {
	for _, elem := range result.Content {
		if text, ok := ContentText(elem); ok {
			return text
		}
	}
	return "remote tool reported an error"
}

// serverMessageHandler receives server-initiated traffic on the protocol
// channel. Requests that do not correlate with anything outstanding are
// rejected and logged, never fatal.
type serverMessageHandler struct {
	logger *zap.Logger
}

func (h *serverMessageHandler) Serve(ctx context.Context, request *jsonrpc.Request, response *jsonrpc.Response) {
	h.logger.Debug("discarding unexpected server request", zap.String("method", request.Method))
	response.Id = request.Id
	response.Jsonrpc = request.Jsonrpc
	response.Error = jsonrpc.NewMethodNotFound(fmt.Sprintf("method: %v not found", request.Method), request.Params)
}

func (h *serverMessageHandler) OnNotification(ctx context.Context, notification *jsonrpc.Notification) {
	h.logger.Debug("discarding server notification", zap.String("method", notification.Method))
}
