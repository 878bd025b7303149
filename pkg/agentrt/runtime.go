package agentrt

import (
	"context"
	"errors"
	"log/slog"
)

// Runtime is the Agent implementation shared by every agent instance:
// it tries the primary executor (nil for a local-only agent
// definition) and silently engages the deterministic fallback when the
// primary fails with a *TransportError (HTTPExecutor wraps every failure
// that way). Any other error from the primary is returned to the caller.
type Runtime struct {
	agentType          AgentType
	primary            PrimaryExecutor
	fallbackConfidence float64
	fallback           FallbackFunc
}

// NewRuntime builds a Runtime for agentType. primary may be nil, in
// which case every task is executed by the fallback directly (the
// "local" backend kind in pkg/config.AgentBackendKind).
func NewRuntime(agentType AgentType, primary PrimaryExecutor, fallbackConfidence float64) *Runtime {
	return &Runtime{
		agentType:          agentType,
		primary:            primary,
		fallbackConfidence: fallbackConfidence,
		fallback:           fallbackFor(agentType),
	}
}

// Execute satisfies Agent.
func (r *Runtime) Execute(ctx context.Context, task *Task) (Verdict, error) {
	if task.AgentType == "" {
		task.AgentType = r.agentType
	}

	if r.primary == nil {
		return r.fallback(task, r.fallbackConfidence), nil
	}

	verdict, err := r.primary.Execute(ctx, task)
	if err == nil {
		return verdict, nil
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		slog.Warn("agent primary path failed, engaging local fallback",
			"agent_type", r.agentType,
			"task_id", task.TaskID,
			"error", transportErr.Err)
		return r.fallback(task, r.fallbackConfidence), nil
	}

	// Not a transport failure (e.g. unknown agent type) — this is a
	// programming/configuration error, not something a fallback can fix.
	return nil, err
}
