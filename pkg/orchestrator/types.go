// Package orchestrator implements the Agent Orchestrator: capability
// matching, per-agent concurrency gating, retry/timeout handling, and
// verdict aggregation into an auto-apply/approve decision (spec.md §4.5).
package orchestrator

import (
	"time"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/agentrt"
)

// RequiredCapabilities is the fixed set of agent types the orchestrator
// dispatches one task to, in parallel, for every proposal (spec.md §4.5
// "Task dispatch"). The conflict agent is dispatched on demand, not here.
var RequiredCapabilities = []agentrt.AgentType{
	agentrt.AgentTypeValidator,
	agentrt.AgentTypeDependency,
	agentrt.AgentTypeSemantic,
	agentrt.AgentTypeImpact,
	agentrt.AgentTypeMutation,
}

// TaskResult pairs a dispatched task's id/type with its terminal verdict
// (or the error that made it terminal).
type TaskResult struct {
	TaskID    string
	AgentType agentrt.AgentType
	Status    agentrt.TaskStatus
	Verdict   agentrt.Verdict
	Err       error
}

// AggregateResult is the orchestrator's reduction of every contributing
// task's terminal verdict into an apply/approve decision (spec.md §4.5
// "Aggregation").
type AggregateResult struct {
	AutoApplyEligible bool
	HighestSeverity   string // low|medium|high, derived from impact, dependency and mutation verdicts
	MinConfidence     float64
	Results           []TaskResult
	Reasoning         string
}

// Severity ranks, used to find the worst severity across verdicts.
var severityRank = map[string]int{"low": 0, "medium": 1, "high": 2}

func worseSeverity(a, b string) string {
	if severityRank[b] > severityRank[a] {
		return b
	}
	if a == "" {
		return b
	}
	return a
}

// defaults mirrored from pkg/config.OrchestratorConfig/ApprovalConfig so
// callers that don't wire a full config (e.g. unit tests) still get sane
// behavior.
const (
	defaultMaxConcurrentAgents = 10
	defaultAgentTimeout        = 300 * time.Second
	defaultRetryAttempts       = 3
	defaultRetryBaseDelay      = 500 * time.Millisecond
	defaultAutoApproveThreshold = 0.85
)
