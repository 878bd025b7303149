package agentrt

import "errors"

// Sentinel errors for the agent runtime.
var (
	// ErrUnknownAgentType is returned when a task names an agent type the
	// runtime has no verdict schema for.
	ErrUnknownAgentType = errors.New("agentrt: unknown agent type")

	// ErrNoBackend is returned when an AgentDefinition names the HTTP
	// backend but carries no endpoint, and config validation somehow let
	// it through (defensive — config.Validate already rejects this).
	ErrNoBackend = errors.New("agentrt: no backend endpoint configured")
)

// TransportError wraps a failure reaching the external analysis service.
// It is never returned to callers of Agent.Execute — it is only used
// internally to trigger the fallback path and is logged, not surfaced.
type TransportError struct {
	AgentType AgentType
	Endpoint  string
	Err       error
}

func (e *TransportError) Error() string {
	return "agentrt: primary path failed for " + string(e.AgentType) + " at " + e.Endpoint + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
