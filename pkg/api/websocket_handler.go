package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/approval"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
)

// handleWebsocket upgrades the connection and registers it with the Live
// Channel Hub (spec.md §4.8, §6). Callers identify themselves with
// ?user_id=...&client_type=editor|web|cli query parameters; a request
// without user_id is answered with HTTP 400 before any upgrade. No token is
// checked, so no connection is closed with CloseAuthFailed.
func (s *Server) handleWebsocket(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	clientType := hub.ClientType(c.DefaultQuery("client_type", string(hub.ClientTypeWeb)))

	conn, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("api: websocket upgrade failed", "error", err)
		return
	}

	connectionID := uuid.New().String()
	handle := hub.NewWebsocketHandle(conn)
	s.Hub.RegisterClient(userID, clientType, connectionID, nil, handle)
	defer s.Hub.UnregisterClient(userID, connectionID)

	ctx := c.Request.Context()
	for {
		env, err := handle.Read(ctx)
		if err != nil {
			return
		}
		s.dispatchClientEvent(ctx, env)
	}
}

// dispatchClientEvent routes a client-issued Envelope to the collaborator
// that owns its event name (spec.md §6 client-issued events).
func (s *Server) dispatchClientEvent(ctx context.Context, env *hub.Envelope) {
	switch env.Event {
	case hub.EventApprovalResponse:
		resp, err := decodeApprovalResponse(env.Data)
		if err != nil {
			slog.Warn("api: malformed approval:response envelope", "error", err)
			return
		}
		if err := s.Approval.RespondTo(ctx, *resp); err != nil {
			slog.Warn("api: approval response rejected", "request_id", resp.RequestID, "error", err)
		}
	default:
		slog.Warn("api: unrecognized client event", "event", env.Event)
	}
}

// decodeApprovalResponse round-trips the envelope's generic Data (decoded by
// encoding/json into a map[string]any) into a typed approval.Response.
func decodeApprovalResponse(data any) (*approval.Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var resp approval.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
