package hub

import (
	"context"

	"github.com/coder/websocket"
)

// WebsocketHandle adapts a *websocket.Conn (github.com/coder/websocket) to
// the Handle contract, the same library pkg/events.Connection uses
// (see DESIGN.md).
type WebsocketHandle struct {
	conn *websocket.Conn
}

// NewWebsocketHandle wraps conn.
func NewWebsocketHandle(conn *websocket.Conn) *WebsocketHandle {
	return &WebsocketHandle{conn: conn}
}

// Send satisfies Handle.
func (h *WebsocketHandle) Send(ctx context.Context, text []byte) error {
	return h.conn.Write(ctx, websocket.MessageText, text)
}

// Close satisfies Handle.
func (h *WebsocketHandle) Close(code int, reason string) error {
	return h.conn.Close(websocket.StatusCode(code), reason)
}

// Read blocks until a client-issued message arrives, decoding it into an
// Envelope. Callers dispatch on Envelope.Event (spec.md §6).
func (h *WebsocketHandle) Read(ctx context.Context) (*Envelope, error) {
	_, data, err := h.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(data)
}
