// Package client implements the dual-transport session client.
//
// A Client negotiates a session with the remote tool server over a
// JSON-RPC channel (versioned handshake, capability discovery, tool
// listing) and exposes a single Invoke operation. When the protocol
// channel is unreachable the client downgrades - once, and never back -
// to direct REST calls against the service's native API, reusing the
// already-acquired credential. Every outbound request carries a bearer
// token supplied by the token manager; a rejected token triggers exactly
// one refresh-and-retry cycle.
package client
