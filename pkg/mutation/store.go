package mutation

import "context"

// Store is the contract the mutation engine core requires from its
// lifecycle-ledger collaborator (spec.md §4.6, §6). Transitions are
// validated against the allowed state machine; illegal transitions, or
// a transition attempted by a caller that does not currently own the
// proposal, fail with *ConflictError.
type Store interface {
	// Create inserts a new proposal in StatusProposed, owned by owner.
	Create(ctx context.Context, p *Proposal, owner string) error

	// Get returns the proposal identified by proposalID.
	Get(ctx context.Context, proposalID string) (*Proposal, error)

	// List returns every proposal matching filters.
	List(ctx context.Context, filters Filters) ([]*Proposal, error)

	// Transition moves proposalID from "from" to "to", applying payload
	// (a partial update merged onto the stored proposal) atomically with
	// the state change. owner must match the proposal's current owner or
	// the transition fails with *ConflictError wrapping ErrNotOwner.
	// Reaching a terminal status clears ownership. nextOwner, when
	// non-empty, reassigns ownership to the next pipeline stage (e.g.
	// orchestrator -> approval manager -> applier) in the same atomic step.
	Transition(ctx context.Context, proposalID string, from, to Status, owner, nextOwner string, payload Patch) (*Proposal, error)
}

// Patch carries the fields a Transition call may update alongside the
// status change. Nil fields are left unchanged.
type Patch struct {
	ImpactAnalysis  *ImpactAnalysis
	ProposedChanges map[string]any
	Confidence      *float64
}
