// Package mutation implements the Mutation Store: the single-writer
// lifecycle ledger for MutationProposals (spec.md §3, §4.6). It keeps one
// record per proposal, which each transition updates in place; earlier
// states of a proposal are not kept. Only the component currently holding a proposal (orchestrator,
// then approval manager, then applier) may transition it; illegal or
// concurrent transitions fail with ConflictError.
package mutation

import "time"

// OperationType is the closed set of mutation kinds a proposal may carry.
type OperationType string

// Operation types.
const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// Status is a proposal's lifecycle state (spec.md §3).
type Status string

// Lifecycle states.
const (
	StatusProposed        Status = "proposed"
	StatusValidating      Status = "validating"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApplying        Status = "applying"
	StatusApplied         Status = "applied"
	StatusFailed          Status = "failed"
	StatusRolledBack      Status = "rolled_back"
	StatusCancelled       Status = "cancelled"
)

// terminal reports whether a status has no further valid transitions.
func (s Status) terminal() bool {
	switch s {
	case StatusApplied, StatusFailed, StatusRolledBack, StatusCancelled:
		return true
	default:
		return false
	}
}

// ImpactAnalysis is the nested structure a proposal carries describing
// its blast radius, populated by the impact agent's verdict once
// available (spec.md §3).
type ImpactAnalysis struct {
	DirectlyAffected     []string `json:"directly_affected,omitempty"`
	TransitivelyAffected []string `json:"transitively_affected,omitempty"`
	ImpactRatio          float64  `json:"impact_ratio,omitempty"`
	Severity             string   `json:"severity,omitempty"`
}

// Proposal is a MutationProposal (spec.md §3): a request to change the
// spec graph, subject to agent review and possibly human approval.
type Proposal struct {
	ProposalID      string            `json:"proposal_id"`
	SpecID          string            `json:"spec_id"`
	OperationType   OperationType     `json:"operation_type"`
	CurrentVersion  string            `json:"current_version"`
	ProposedChanges map[string]any    `json:"proposed_changes"`
	Reasoning       string            `json:"reasoning"`
	Confidence      float64           `json:"confidence"`
	ImpactAnalysis  ImpactAnalysis    `json:"impact_analysis"`
	Status          Status            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`

	// owner is never set or read: the Store implementations track the
	// current owner themselves (MemoryStore's owners map, PostgresStore's
	// owner column), and Get/List do not return it.
	owner string
}

// Clone returns a deep copy so callers cannot mutate store-owned state
// through a returned pointer.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.ProposedChanges != nil {
		clone.ProposedChanges = make(map[string]any, len(p.ProposedChanges))
		for k, v := range p.ProposedChanges {
			clone.ProposedChanges[k] = v
		}
	}
	return &clone
}

// allowedTransitions enumerates the legal lifecycle state machine
// (spec.md §3). A transition not listed here is rejected with
// ConflictError regardless of ownership.
var allowedTransitions = map[Status]map[Status]bool{
	StatusProposed: {
		StatusValidating: true,
		StatusCancelled:  true,
	},
	StatusValidating: {
		StatusAwaitingApproval: true,
		StatusApplying:         true,
		StatusFailed:           true,
		StatusCancelled:        true,
	},
	StatusAwaitingApproval: {
		StatusApplying:  true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusApplying: {
		StatusApplied:    true,
		StatusFailed:     true,
		StatusRolledBack: true,
	},
}

// Filters selects proposals for List.
type Filters struct {
	Status *Status
	SpecID string
}

func (f Filters) matches(p *Proposal) bool {
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.SpecID != "" && p.SpecID != f.SpecID {
		return false
	}
	return true
}
