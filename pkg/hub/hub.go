package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
)

// session is one registered client connection.
type session struct {
	userID       string
	connectionID string
	clientType   ClientType
	metadata     map[string]string
	handle       Handle
	registeredAt time.Time
}

// Hub is the Live Channel Hub (spec.md §4.8): a multiplexed bidirectional
// transport routing events per-user and per-client-type, plus best-effort
// broadcast. Session lookups take the read lock, so concurrent sends do not
// block each other; register/unregister take the write lock. The lock is a
// plain sync.RWMutex, so while a writer is waiting, new readers wait behind
// it.
//
// The hub must never hold mu while invoking a handle's Send, since
// a slow or stuck peer must not head-of-line-block delivery to every other
// session (spec.md §4.8). SendToUser, Broadcast and SendToUserOtherSessions
// snapshot the target handles under the lock, then call Send on each after
// releasing it.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*session // userID -> connectionID -> session
	metrics  *metrics.Registry
}

// New returns an empty Hub. metrics may be nil to disable connection
// gauge tracking (e.g. in unit tests that don't care about it).
func New(m *metrics.Registry) *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*session),
		metrics:  m,
	}
}

// RegisterClient stores handle under sessions[userID][connectionID]
// (spec.md §4.8).
func (h *Hub) RegisterClient(userID string, clientType ClientType, connectionID string, metadata map[string]string, handle Handle) {
	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[string]*session)
	}
	h.sessions[userID][connectionID] = &session{
		userID:       userID,
		connectionID: connectionID,
		clientType:   clientType,
		metadata:     metadata,
		handle:       handle,
		registeredAt: time.Now(),
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
	slog.Info("hub: client registered", "user_id", userID, "client_type", clientType, "connection_id", connectionID)
}

// UnregisterClient removes and closes the session, if present.
func (h *Hub) UnregisterClient(userID, connectionID string) {
	h.mu.Lock()
	var s *session
	if conns, ok := h.sessions[userID]; ok {
		s = conns[connectionID]
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(h.sessions, userID)
		}
	}
	h.mu.Unlock()

	if s == nil {
		return
	}
	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
	_ = s.handle.Close(CloseNormal, "unregistered")
	slog.Info("hub: client unregistered", "user_id", userID, "connection_id", connectionID)
}

// IsConnected reports whether userID has any open session, optionally
// restricted to clientType.
func (h *Hub) IsConnected(userID string, clientType *ClientType) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.sessions[userID]
	if !ok {
		return false
	}
	if clientType == nil {
		return len(conns) > 0
	}
	for _, s := range conns {
		if s.clientType == *clientType {
			return true
		}
	}
	return false
}

// SendToUser delivers event/data to every session for userID matching
// clientType (nil matches any), silently dropping if none match
// (spec.md §4.8).
func (h *Hub) SendToUser(ctx context.Context, userID string, clientType *ClientType, event string, data any) {
	targets := h.snapshotTargets(userID, clientType)
	h.deliver(ctx, targets, event, data)
}

// Broadcast delivers event/data to every open session, best-effort.
func (h *Hub) Broadcast(ctx context.Context, event string, data any) {
	h.mu.RLock()
	var targets []*session
	for _, conns := range h.sessions {
		for _, s := range conns {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	h.deliver(ctx, targets, event, data)
}

// SendToUserOtherSessions delivers event/data to every open session for
// userID EXCEPT those of primary's client type — the "softer notification
// on every other open session" half of the approval-delivery step
// (spec.md §4.7 step 2).
func (h *Hub) SendToUserOtherSessions(ctx context.Context, userID string, primary ClientType, event string, data any) {
	h.mu.RLock()
	conns, ok := h.sessions[userID]
	var targets []*session
	if ok {
		for _, s := range conns {
			if s.clientType != primary {
				targets = append(targets, s)
			}
		}
	}
	h.mu.RUnlock()

	h.deliver(ctx, targets, event, data)
}

func (h *Hub) snapshotTargets(userID string, clientType *ClientType) []*session {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.sessions[userID]
	if !ok {
		return nil
	}
	var targets []*session
	for _, s := range conns {
		if clientType == nil || s.clientType == *clientType {
			targets = append(targets, s)
		}
	}
	return targets
}

func (h *Hub) deliver(ctx context.Context, targets []*session, event string, data any) {
	if len(targets) == 0 {
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		slog.Error("hub: failed to marshal envelope", "event", event, "error", err)
		return
	}

	for _, s := range targets {
		sendCtx, cancel := context.WithTimeout(ctx, SendTimeout)
		err := s.handle.Send(sendCtx, payload)
		cancel()
		if err != nil {
			slog.Warn("hub: send failed", "user_id", s.userID, "connection_id", s.connectionID, "event", event, "error", err)
		}
	}
}

// EditorSessionOpen reports whether userID has any open editor-class
// session — used by the approval manager's channel-selection rule
// (spec.md §4.7 step 1). Per spec.md §9 Open Question, when multiple
// editor sessions are open for the same user this returns true without
// specifying a tiebreaker among them; SendToUser delivers to all of them.
func (h *Hub) EditorSessionOpen(userID string) bool {
	ct := ClientTypeEditor
	return h.IsConnected(userID, &ct)
}

// WebSessionOpen reports whether userID has any open web-class session.
func (h *Hub) WebSessionOpen(userID string) bool {
	ct := ClientTypeWeb
	return h.IsConnected(userID, &ct)
}
