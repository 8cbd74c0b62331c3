package client

import (
	"github.com/viant/mcp-protocol/schema"
)

// TransportMode identifies the request path a session uses.
type TransportMode string

const (
	// ModeProtocol - the JSON-RPC channel negotiated by the handshake.
	ModeProtocol TransportMode = "protocol"
	// ModeFallback - direct REST calls against the service's native API.
	ModeFallback TransportMode = "fallback"
)

// State is the session client lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateHandshaking
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHandshaking:
		return "handshaking"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the outcome of a handshake: negotiated protocol version, server
// capability set and the discovered tool catalog. It is immutable once
// established except for the transport mode, which may downgrade from
// protocol to fallback exactly once and never upgrades back. Sessions live
// for the process run only; they are never persisted.
type Session struct {
	ID              string
	ProtocolVersion string
	ServerInfo      schema.Implementation
	Capabilities    schema.ServerCapabilities
	// Tools maps tool name to its discovered definition; empty in fallback
	// mode, where callers rely on the fixed minimal tool set instead.
	Tools map[string]schema.Tool

	mode TransportMode
}

// Mode returns the active transport mode.
func (s *Session) Mode() TransportMode {
	return s.mode
}

// downgrade flips the session to the fallback transport. It is one-way;
// callers guard it with the client mutex.
func (s *Session) downgrade() {
	s.mode = ModeFallback
}

// Tool names the fallback transport recognizes by convention; tool
// discovery is unavailable without the protocol channel.
const (
	ToolExecuteSQL   = "execute_sql"
	ToolListDatasets = "list_datasets"
)
