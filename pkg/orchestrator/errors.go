package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAgentAvailable indicates no registered agent of the required
	// type had spare concurrency when SelectAgent was called; SelectAgent
	// does not wait for one to become free.
	ErrNoAgentAvailable = errors.New("orchestrator: no agent available for capability")
)

// AgentTimeoutError is the closed-taxonomy error (spec.md §7) for a task
// that exceeded agent_timeout_seconds. RunTask retries a timed-out attempt
// like any other failed one, up to retryAttempts times; if the last
// attempt timed out, the TaskResult has status timed_out and carries this
// error.
type AgentTimeoutError struct {
	TaskID    string
	AgentID   string
	Timeout   string
}

func (e *AgentTimeoutError) Error() string {
	return fmt.Sprintf("orchestrator: task %s on agent %s exceeded %s", e.TaskID, e.AgentID, e.Timeout)
}
