package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/hub"
)

type fakeNotifier struct {
	mu       sync.Mutex
	editor   map[string]bool
	web      map[string]bool
	sent     []sentEvent
}

type sentEvent struct {
	userID string
	event  string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{editor: map[string]bool{}, web: map[string]bool{}}
}

func (f *fakeNotifier) EditorSessionOpen(userID string) bool { return f.editor[userID] }
func (f *fakeNotifier) WebSessionOpen(userID string) bool    { return f.web[userID] }

func (f *fakeNotifier) SendToUser(_ context.Context, userID string, _ *hub.ClientType, event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{userID, event})
}

func (f *fakeNotifier) SendToUserOtherSessions(_ context.Context, userID string, _ hub.ClientType, event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{userID, event})
}

func (f *fakeNotifier) events() []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentEvent(nil), f.sent...)
}

type fakeCompleter struct {
	mu    sync.Mutex
	calls []Response
}

func (f *fakeCompleter) Complete(_ context.Context, proposalID string, resp *Response) (*hub.MutationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, *resp)
	f.mu.Unlock()
	status := "success"
	if resp.Decision != DecisionApproved && resp.Decision != DecisionModified {
		status = "failed"
	}
	return &hub.MutationResult{MutationID: proposalID, Status: status}, nil
}

func TestManager_RequestApproval_EditorChannelPreferred(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.editor["u1"] = true
	notifier.web["u1"] = true
	mgr := NewManager(notifier, &fakeCompleter{}, nil)

	req, err := mgr.RequestApproval(context.Background(), Request{ProposalID: "p1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, ChannelLiveEditor, req.PreferredChannel)
	assert.NotEmpty(t, req.RequestID)
}

func TestManager_RequestApproval_FallsBackToAuto(t *testing.T) {
	notifier := newFakeNotifier()
	mgr := NewManager(notifier, &fakeCompleter{}, nil)

	req, err := mgr.RequestApproval(context.Background(), Request{ProposalID: "p1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, ChannelAuto, req.PreferredChannel)
}

// TestManager_RequestApproval_DuplicateIsNoOp asserts testable property 4:
// issuing two approvals for the same proposal returns the same request_id.
func TestManager_RequestApproval_DuplicateIsNoOp(t *testing.T) {
	notifier := newFakeNotifier()
	mgr := NewManager(notifier, &fakeCompleter{}, nil)

	first, err := mgr.RequestApproval(context.Background(), Request{ProposalID: "p1", UserID: "u1"})
	require.NoError(t, err)
	second, err := mgr.RequestApproval(context.Background(), Request{ProposalID: "p1", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, first.RequestID, second.RequestID)
}

func TestManager_RespondTo_RunsCompleterAndNotifies(t *testing.T) {
	notifier := newFakeNotifier()
	completer := &fakeCompleter{}
	mgr := NewManager(notifier, completer, nil)

	req, err := mgr.RequestApproval(context.Background(), Request{ProposalID: "p1", UserID: "u1"})
	require.NoError(t, err)

	err = mgr.RespondTo(context.Background(), Response{RequestID: req.RequestID, Decision: DecisionApproved})
	require.NoError(t, err)

	completer.mu.Lock()
	require.Len(t, completer.calls, 1)
	assert.Equal(t, DecisionApproved, completer.calls[0].Decision)
	completer.mu.Unlock()

	_, stillPending := mgr.Pending("p1")
	assert.False(t, stillPending)
}

func TestManager_RespondTo_UnknownRequest(t *testing.T) {
	mgr := NewManager(newFakeNotifier(), &fakeCompleter{}, nil)
	err := mgr.RespondTo(context.Background(), Response{RequestID: "missing", Decision: DecisionApproved})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

// TestManager_Timeout_SynthesizesRejection asserts testable property 5: if
// no response arrives within timeout_seconds, the completer is invoked with
// a rejected/timeout decision and the request leaves the pending ledger.
func TestManager_Timeout_SynthesizesRejection(t *testing.T) {
	notifier := newFakeNotifier()
	completer := &fakeCompleter{}
	mgr := NewManager(notifier, completer, nil)

	_, err := mgr.RequestApproval(context.Background(), Request{
		ProposalID:     "p1",
		UserID:         "u1",
		TimeoutSeconds: 1,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		completer.mu.Lock()
		defer completer.mu.Unlock()
		return len(completer.calls) == 1
	}, 3*time.Second, 10*time.Millisecond)

	completer.mu.Lock()
	assert.Equal(t, DecisionRejected, completer.calls[0].Decision)
	assert.Equal(t, ReasonTimeout, completer.calls[0].Reason)
	completer.mu.Unlock()

	_, stillPending := mgr.Pending("p1")
	assert.False(t, stillPending)
}
