// Package bqlink is a credential-bearing BigQuery client that talks to the
// BigQuery MCP endpoint over JSON-RPC and falls back to the native REST API
// when the protocol endpoint is unavailable.
//
// Two components compose the core: an auth.Manager owning the bearer
// credential (load, refresh, atomic persist) and a client.Client owning
// the session (handshake, tool discovery, invoke) with a one-way
// protocol-to-fallback downgrade. This package wires them together from
// declarative Options.
package bqlink
