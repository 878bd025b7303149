// Package hub implements the Live Channel Hub: a multiplexed bidirectional
// transport carrying approval requests and mutation results to connected
// users (spec.md §4.8, §6). The hub never assumes anything about the
// transport beyond the Handle contract — a session handle supports Send
// and Close — so it is exercised identically by a real websocket.Conn
// adapter and by an in-memory fake in tests.
package hub

import "time"

// ClientType is the closed set of connection kinds a session may register
// under. The approval channel-selection rule (spec.md §4.7 step 1) treats
// ClientTypeEditor as highest priority.
type ClientType string

// Client types.
const (
	ClientTypeEditor ClientType = "editor"
	ClientTypeWeb    ClientType = "web"
	ClientTypeCLI    ClientType = "cli"
)

// Close codes used when tearing down a session (spec.md §6).
const (
	CloseAuthFailed = 1008
	CloseNormal     = 1000
)

// SendTimeout bounds how long a single Handle.Send call may block
// (spec.md §5 — live-channel send timeout, default 30s).
const SendTimeout = 30 * time.Second

// Envelope is the wire framing both directions use: a text message
// {"event": string, "data": any} (spec.md §6).
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Server-issued event names.
const (
	EventApprovalRequest = "approval:request"
	EventNotification    = "notification"
	EventMutationResult  = "mutation:result"
)

// Client-issued event names.
const (
	EventApprovalResponse = "approval:response"
)

// Notification is the payload shape of a "notification" event (spec.md §6).
type Notification struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// MutationResult is the payload shape of a "mutation:result" event
// (spec.md §6).
type MutationResult struct {
	MutationID       string   `json:"mutation_id"`
	Status           string   `json:"status"`
	AppliedChanges   any      `json:"applied_changes,omitempty"`
	NewVersion       string   `json:"new_version,omitempty"`
	ValidationErrors []string `json:"validation_errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	ExecutionTimeMs  int64    `json:"execution_time_ms"`
}
