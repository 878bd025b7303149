package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	code   int
}

func (f *fakeHandle) Send(_ context.Context, text []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeHandle) Close(code int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.code = code
	return nil
}

func (f *fakeHandle) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, b := range f.sent {
		var env Envelope
		_ = json.Unmarshal(b, &env)
		out[i] = env.Event
	}
	return out
}

func TestHub_RegisterAndIsConnected(t *testing.T) {
	h := New(nil)
	editor := ClientTypeEditor
	web := ClientTypeWeb

	assert.False(t, h.IsConnected("u1", nil))

	h.RegisterClient("u1", ClientTypeEditor, "c1", nil, &fakeHandle{})
	assert.True(t, h.IsConnected("u1", nil))
	assert.True(t, h.IsConnected("u1", &editor))
	assert.False(t, h.IsConnected("u1", &web))
}

func TestHub_SendToUser_MatchesClientType(t *testing.T) {
	h := New(nil)
	editorHandle := &fakeHandle{}
	webHandle := &fakeHandle{}
	h.RegisterClient("u1", ClientTypeEditor, "c1", nil, editorHandle)
	h.RegisterClient("u1", ClientTypeWeb, "c2", nil, webHandle)

	editor := ClientTypeEditor
	h.SendToUser(context.Background(), "u1", &editor, EventApprovalRequest, map[string]string{"x": "y"})

	assert.Equal(t, []string{EventApprovalRequest}, editorHandle.events())
	assert.Empty(t, webHandle.events())
}

func TestHub_SendToUser_NoSessions_SilentlyDrops(t *testing.T) {
	h := New(nil)
	// Must not panic or error when nobody is connected.
	h.SendToUser(context.Background(), "ghost", nil, EventNotification, nil)
}

func TestHub_Broadcast_ReachesEverySession(t *testing.T) {
	h := New(nil)
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}
	h.RegisterClient("u1", ClientTypeWeb, "c1", nil, h1)
	h.RegisterClient("u2", ClientTypeEditor, "c2", nil, h2)

	h.Broadcast(context.Background(), EventNotification, Notification{Title: "hi"})

	assert.Equal(t, []string{EventNotification}, h1.events())
	assert.Equal(t, []string{EventNotification}, h2.events())
}

func TestHub_UnregisterClient_ClosesHandle(t *testing.T) {
	h := New(nil)
	fh := &fakeHandle{}
	h.RegisterClient("u1", ClientTypeWeb, "c1", nil, fh)
	h.UnregisterClient("u1", "c1")

	assert.False(t, h.IsConnected("u1", nil))
	fh.mu.Lock()
	defer fh.mu.Unlock()
	assert.True(t, fh.closed)
	assert.Equal(t, CloseNormal, fh.code)
}

func TestHub_EditorSessionOpen(t *testing.T) {
	h := New(nil)
	require.False(t, h.EditorSessionOpen("u1"))
	h.RegisterClient("u1", ClientTypeEditor, "c1", nil, &fakeHandle{})
	require.True(t, h.EditorSessionOpen("u1"))
}
