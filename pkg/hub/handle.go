package hub

import "context"

// Handle is the contract a session's underlying transport must satisfy
// (spec.md §6 "Live-channel contract consumed"). The hub does not assume
// anything else about it — a *WebsocketHandle wraps github.com/coder/websocket
// for the real server, a fake handle drives unit tests.
type Handle interface {
	// Send writes text (a JSON-encoded Envelope) to the peer, honoring
	// ctx's deadline/cancellation.
	Send(ctx context.Context, text []byte) error
	// Close tears down the connection with the given close code.
	Close(code int, reason string) error
}
