package ports

import (
	"context"
	"errors"

	"turnsync/internal/protocol"
)

// ConnState tracks the transport connection lifecycle.
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

// ErrNotConnected is returned by Send while the channel is down. Callers
// fall back to the durable move log; they never block on the transport.
var ErrNotConnected = errors.New("transport not connected")

// Transport is the best-effort, low-latency channel between the match's
// participants. It guarantees neither delivery nor ordering nor
// exactly-once; everything above it must be idempotent. Implementations
// reconnect on their own, indefinitely, until Close or ctx cancellation.
type Transport interface {
	// Connect joins the channel for a match. peerIDs are the other
	// participants; implementations must not deliver to anyone else.
	Connect(ctx context.Context, matchID, selfID string, peerIDs []string) error

	// Send queues an envelope for delivery. Best effort only.
	Send(env protocol.Envelope) error

	// Receive yields inbound envelopes. The channel closes on Close.
	Receive() <-chan protocol.Envelope

	// StateChanges yields connection state transitions, so the UI can
	// show a degraded-connectivity indicator while gameplay continues
	// through the log.
	StateChanges() <-chan ConnState

	// State returns the current connection state.
	State() ConnState

	// Close tears the channel down and releases both channels.
	Close() error
}
