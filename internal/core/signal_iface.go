package core

import "context"

// SignalingChannel abstracts the persistent relay transport.
// Implementations must deliver inbound envelopes in send order (FIFO),
// at most once. Owned by the adapter; the adapter must Close() it.
type SignalingChannel interface {
	// WaitReady blocks until the transport is connected or ctx expires.
	// Readiness is signalled exactly once; subsequent calls return immediately.
	WaitReady(ctx context.Context) error
	// Send queues an outbound envelope. Returns an error on backpressure or
	// when the transport is closed.
	Send(Envelope) error
	// Events is the inbound stream. Closed when the transport shuts down.
	Events() <-chan Envelope
	Close()
}
