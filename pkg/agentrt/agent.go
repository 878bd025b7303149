package agentrt

import "context"

// Agent is a bounded function execute(task) -> structured_verdict. An
// implementation owns the choice between its primary path and its
// deterministic fallback; Execute never returns an error for a
// primary-path failure — it silently engages the fallback and marks
// the returned verdict's FallbackMode instead (spec.md §4.4). A
// non-nil error return means the task could not be executed at all
// (unknown agent type, malformed input) and the orchestrator should
// mark the task failed rather than retry into fallback.
type Agent interface {
	Execute(ctx context.Context, task *Task) (Verdict, error)
}

// PrimaryExecutor is the primary, possibly remote, execution path for
// one agent type. A real implementation calls out to an external
// scoring/analysis service; HTTPExecutor is the one shipped here.
type PrimaryExecutor interface {
	Execute(ctx context.Context, task *Task) (Verdict, error)
}

// FallbackFunc produces a deterministic, local-only verdict for a task.
// It must never fail — if the input is insufficient to reason about,
// it returns the lowest-confidence valid verdict for the agent type
// rather than an error, since the fallback is the backstop of last
// resort.
type FallbackFunc func(task *Task, confidence float64) Verdict
