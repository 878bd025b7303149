package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/metrics"
)

// Notifier is the subset of *hub.Hub the approval manager needs for
// channel selection and delivery (spec.md §4.7 steps 1-2, 6). *hub.Hub
// satisfies this directly; tests supply a fake.
type Notifier interface {
	EditorSessionOpen(userID string) bool
	WebSessionOpen(userID string) bool
	SendToUser(ctx context.Context, userID string, clientType *hub.ClientType, event string, data any)
	SendToUserOtherSessions(ctx context.Context, userID string, primary hub.ClientType, event string, data any)
}

// Completer runs the component that actually applies, rejects, or
// modifies-then-applies a proposal once its approval decision (or
// timeout) is known (spec.md §4.7 step 5) — the orchestrator/engine in
// practice. It returns the mutation result payload the approval manager
// delivers to the user (spec.md §6 "mutation:result").
type Completer interface {
	Complete(ctx context.Context, proposalID string, resp *Response) (*hub.MutationResult, error)
}

type pendingEntry struct {
	request *Request
	timer   *time.Timer
}

// Manager is the Approval Manager (spec.md §4.7). At most one
// ApprovalRequest may be in flight per proposal_id; duplicate issuance
// is a no-op returning the existing request (testable property 4).
type Manager struct {
	mu         sync.Mutex
	pending    map[string]*pendingEntry // request_id -> entry
	byProposal map[string]string        // proposal_id -> request_id (only while pending)

	hub       Notifier
	completer Completer
	metrics   *metrics.Registry
}

// NewManager builds an approval Manager.
func NewManager(notifier Notifier, completer Completer, m *metrics.Registry) *Manager {
	return &Manager{
		pending:    make(map[string]*pendingEntry),
		byProposal: make(map[string]string),
		hub:        notifier,
		completer:  completer,
		metrics:    m,
	}
}

// RequestApproval issues an ApprovalRequest for proposalID, selecting a
// delivery channel and scheduling the timeout deadline (spec.md §4.7
// steps 1-4). If a request is already pending for proposalID, it is
// returned unchanged (no-op, testable property 4).
func (m *Manager) RequestApproval(ctx context.Context, in Request) (*Request, error) {
	m.mu.Lock()
	if existingID, ok := m.byProposal[in.ProposalID]; ok {
		existing := m.pending[existingID].request.Clone()
		m.mu.Unlock()
		return existing, nil
	}

	timeoutSeconds := in.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}

	req := in.Clone()
	req.RequestID = uuid.New().String()
	req.Status = RequestStatusIssued
	req.TimeoutSeconds = timeoutSeconds
	req.CreatedAt = time.Now()
	req.ExpiresAt = req.CreatedAt.Add(time.Duration(timeoutSeconds) * time.Second)
	req.PreferredChannel = m.selectChannel(req.UserID)

	entry := &pendingEntry{request: req}
	entry.timer = time.AfterFunc(time.Duration(timeoutSeconds)*time.Second, func() {
		m.expire(context.Background(), req.RequestID)
	})
	m.pending[req.RequestID] = entry
	m.byProposal[req.ProposalID] = req.RequestID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ApprovalIssued()
	}

	m.deliver(ctx, req)
	return req.Clone(), nil
}

// selectChannel implements spec.md §4.7 step 1: prefer an open
// editor-class session, else a web session, else "auto". Per spec.md §9
// Open Question, when multiple editor sessions are open the tiebreaker
// among them is unspecified — SendToUser delivers to all matching
// sessions regardless of which one "selected" the channel.
func (m *Manager) selectChannel(userID string) Channel {
	if m.hub.EditorSessionOpen(userID) {
		return ChannelLiveEditor
	}
	if m.hub.WebSessionOpen(userID) {
		return ChannelLiveWeb
	}
	return ChannelAuto
}

func (m *Manager) deliver(ctx context.Context, req *Request) {
	primary := clientTypeFor(req.PreferredChannel)
	m.hub.SendToUser(ctx, req.UserID, primary, hub.EventApprovalRequest, req.Clone())
	if primary != nil {
		m.hub.SendToUserOtherSessions(ctx, req.UserID, *primary, hub.EventNotification, hub.Notification{
			Title:    "Mutation awaiting approval",
			Message:  fmt.Sprintf("Proposal %s needs your review", req.ProposalID),
			Priority: string(req.Priority),
		})
	}
}

func clientTypeFor(ch Channel) *hub.ClientType {
	var ct hub.ClientType
	switch ch {
	case ChannelLiveEditor:
		ct = hub.ClientTypeEditor
	case ChannelLiveWeb:
		ct = hub.ClientTypeWeb
	default:
		return nil
	}
	return &ct
}

// RespondTo ingests a client-issued ApprovalResponse (spec.md §4.7 step
// 5). It cancels the deadline, removes the request from the pending
// ledger, and hands the decision to the Completer.
func (m *Manager) RespondTo(ctx context.Context, resp Response) error {
	m.mu.Lock()
	entry, ok := m.pending[resp.RequestID]
	if !ok {
		m.mu.Unlock()
		return &Error{RequestID: resp.RequestID, Err: ErrUnknownRequest}
	}
	if entry.request.Status != RequestStatusIssued {
		m.mu.Unlock()
		return &Error{RequestID: resp.RequestID, Err: ErrAlreadyResolved}
	}
	entry.timer.Stop()
	entry.request.Status = RequestStatusResponded
	entry.request.Decision = resp.Decision
	entry.request.ModifiedContent = resp.ModifiedContent
	delete(m.pending, resp.RequestID)
	delete(m.byProposal, entry.request.ProposalID)
	proposalID := entry.request.ProposalID
	userID := entry.request.UserID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ApprovalResolved()
	}

	result, err := m.completer.Complete(ctx, proposalID, &resp)
	if err != nil {
		slog.Error("approval: completer failed", "proposal_id", proposalID, "request_id", resp.RequestID, "error", err)
		return err
	}
	if result != nil {
		m.hub.SendToUser(ctx, userID, nil, hub.EventMutationResult, result)
	}
	return nil
}

// expire fires when no response arrives within timeout_seconds (spec.md
// §4.7 step 4, testable property 5): it synthesizes a system-issued
// rejection and takes the same completion path as a real response.
func (m *Manager) expire(ctx context.Context, requestID string) {
	m.mu.Lock()
	entry, ok := m.pending[requestID]
	if !ok || entry.request.Status != RequestStatusIssued {
		m.mu.Unlock()
		return
	}
	entry.request.Status = RequestStatusExpired
	delete(m.pending, requestID)
	delete(m.byProposal, entry.request.ProposalID)
	proposalID := entry.request.ProposalID
	userID := entry.request.UserID
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ApprovalResolved()
	}

	resp := &Response{RequestID: requestID, Decision: DecisionRejected, Reason: ReasonTimeout}
	result, err := m.completer.Complete(ctx, proposalID, resp)
	if err != nil {
		slog.Error("approval: completer failed on timeout", "proposal_id", proposalID, "request_id", requestID, "error", err)
		return
	}
	if result != nil {
		m.hub.SendToUser(ctx, userID, nil, hub.EventMutationResult, result)
	}
}

// Cancel removes a pending request for proposalID without running the
// completer — used when the proposal's own execution context is
// cancelled (spec.md §5 "Cancellation").
func (m *Manager) Cancel(proposalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requestID, ok := m.byProposal[proposalID]
	if !ok {
		return
	}
	if entry, ok := m.pending[requestID]; ok {
		entry.timer.Stop()
		delete(m.pending, requestID)
	}
	delete(m.byProposal, proposalID)
	if m.metrics != nil {
		m.metrics.ApprovalResolved()
	}
}

// Pending returns the currently pending request for proposalID, if any.
func (m *Manager) Pending(proposalID string) (*Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	requestID, ok := m.byProposal[proposalID]
	if !ok {
		return nil, false
	}
	return m.pending[requestID].request.Clone(), true
}
