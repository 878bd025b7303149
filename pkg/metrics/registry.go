package metrics

import (
	"sync/atomic"
	"time"
)

// Registry holds the engine's live counters. All fields are accessed
// via atomic operations so it can be shared across orchestrator,
// mutation store, and hub goroutines without a lock, the same narrow
// atomic-counter shape pkg/queue/worker.go uses for independent fields
// like its sessionsProcessed counter.
type Registry struct {
	proposalsProposed   atomic.Int64
	proposalsCompleted  atomic.Int64
	proposalsFailed     atomic.Int64
	proposalsRolledBack atomic.Int64
	proposalsPending    atomic.Int64
	pendingApprovals    atomic.Int64
	activeConnections   atomic.Int64
	agentTasksDispatched atomic.Int64
	agentTasksFailed    atomic.Int64
}

// New returns an empty Registry ready for use.
func New() *Registry {
	return &Registry{}
}

// RecordProposed increments the proposed and pending counters when a
// new mutation proposal enters the lifecycle.
func (r *Registry) RecordProposed() {
	r.proposalsProposed.Add(1)
	r.proposalsPending.Add(1)
}

// RecordCompleted moves a proposal out of pending into completed.
func (r *Registry) RecordCompleted() {
	r.proposalsCompleted.Add(1)
	r.proposalsPending.Add(-1)
}

// RecordFailed moves a proposal out of pending into failed.
func (r *Registry) RecordFailed() {
	r.proposalsFailed.Add(1)
	r.proposalsPending.Add(-1)
}

// RecordRolledBack records a rollback of a previously applied proposal.
// Rollbacks happen after completion, so pending is not touched.
func (r *Registry) RecordRolledBack() {
	r.proposalsRolledBack.Add(1)
}

// ApprovalIssued increments the pending-approvals gauge when a new
// ApprovalRequest enters the ledger (spec.md §4.7 step 3, S2).
func (r *Registry) ApprovalIssued() {
	r.pendingApprovals.Add(1)
}

// ApprovalResolved decrements the pending-approvals gauge when a
// request is responded to or times out (spec.md §4.7 step 5).
func (r *Registry) ApprovalResolved() {
	r.pendingApprovals.Add(-1)
}

// ConnectionOpened increments the live connection gauge.
func (r *Registry) ConnectionOpened() {
	r.activeConnections.Add(1)
}

// ConnectionClosed decrements the live connection gauge.
func (r *Registry) ConnectionClosed() {
	r.activeConnections.Add(-1)
}

// RecordAgentTaskDispatched increments the dispatched-task counter.
func (r *Registry) RecordAgentTaskDispatched() {
	r.agentTasksDispatched.Add(1)
}

// RecordAgentTaskFailed increments the failed-task counter.
func (r *Registry) RecordAgentTaskFailed() {
	r.agentTasksFailed.Add(1)
}

// Snapshot returns a consistent-enough point-in-time copy of all
// counters. Individual fields may be read a few nanoseconds apart
// under concurrent writes, which is acceptable for a health/debug
// surface (PoolHealth accepts the same tradeoff).
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		ProposalsProposed:    r.proposalsProposed.Load(),
		ProposalsCompleted:   r.proposalsCompleted.Load(),
		ProposalsFailed:      r.proposalsFailed.Load(),
		ProposalsRolledBack:  r.proposalsRolledBack.Load(),
		ProposalsPending:     r.proposalsPending.Load(),
		PendingApprovals:     r.pendingApprovals.Load(),
		ActiveConnections:    r.activeConnections.Load(),
		AgentTasksDispatched: r.agentTasksDispatched.Load(),
		AgentTasksFailed:     r.agentTasksFailed.Load(),
		TakenAt:              time.Now(),
	}
}
