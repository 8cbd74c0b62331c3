package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/bqlink/bqlink/auth"
)

// Kind classifies an invocation failure.
type Kind string

const (
	// KindAuthRequired - no usable credential; the interactive consent flow has to run.
	KindAuthRequired Kind = "auth_required"
	// KindRefreshFailed - a refresh was attempted and rejected; retry or re-consent.
	KindRefreshFailed Kind = "refresh_failed"
	// KindHandshakeFailed - protocol negotiation failed; recovered internally by
	// switching to the fallback transport, never surfaced by Initialize.
	KindHandshakeFailed Kind = "handshake_failed"
	// KindTransport - connection-level failure during an invocation.
	KindTransport Kind = "transport"
	// KindProtocol - malformed or unexpected message shape from the remote server.
	KindProtocol Kind = "protocol"
	// KindRemoteTool - a well-formed error returned by the remote side.
	KindRemoteTool Kind = "remote_tool"
	// KindUnknownTool - the tool name is unknown to the active transport mode.
	KindUnknownTool Kind = "unknown_tool"
	// KindCancelled - the invocation context was cancelled while the request
	// was outstanding.
	KindCancelled Kind = "cancelled"
	// KindInvalidState - the operation is not legal in the current lifecycle
	// state (invoke before initialize, initialize after close).
	KindInvalidState Kind = "invalid_state"
)

// Failure is a typed invocation failure reporting the transport mode that
// was active and the underlying cause.
type Failure struct {
	Kind    Kind
	Mode    TransportMode
	Message string
	Err     error
}

func (f *Failure) Error() string {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Mode == "" {
		return fmt.Sprintf("%v: %v", f.Kind, msg)
	}
	return fmt.Sprintf("%v (%v transport): %v", f.Kind, f.Mode, msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a typed failure from an error chain.
func AsFailure(err error) (*Failure, bool) {
	failure := &Failure{}
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}

func newFailure(kind Kind, mode TransportMode, message string, err error) *Failure {
	return &Failure{Kind: kind, Mode: mode, Message: message, Err: err}
}

// classify maps low-level errors onto the failure taxonomy. An AuthRequired
// condition stays distinguishable from a transient network failure so the
// caller knows whether to re-run consent or simply retry.
func classify(err error, mode TransportMode) *Failure {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newFailure(KindCancelled, mode, "request cancelled", err)
	case errors.Is(err, auth.ErrAuthRequired):
		return newFailure(KindAuthRequired, mode, "no usable credential", err)
	case errors.Is(err, auth.ErrRefreshFailed):
		return newFailure(KindRefreshFailed, mode, "credential refresh rejected", err)
	default:
		return newFailure(KindTransport, mode, "", err)
	}
}
