package mutation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a proposal_id does not resolve in the store.
	ErrNotFound = errors.New("mutation: proposal not found")

	// ErrIllegalTransition indicates a transition is not in the allowed
	// state machine regardless of ownership.
	ErrIllegalTransition = errors.New("mutation: illegal lifecycle transition")

	// ErrNotOwner indicates a caller attempted to transition a proposal it
	// does not currently own — the single-writer invariant (spec.md §3).
	ErrNotOwner = errors.New("mutation: caller does not own this proposal")
)

// ConflictError is the closed-taxonomy error (spec.md §7) surfaced for an
// illegal state transition or a concurrent-writer conflict. It is never
// retried at the component boundary — callers must re-read current state.
type ConflictError struct {
	ProposalID string
	From       Status
	To         Status
	Err        error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("mutation: proposal %s: %s -> %s: %v", e.ProposalID, e.From, e.To, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// MutationError is the catch-all closed-taxonomy error for applier
// failures (spec.md §7). It carries enough context to drive rollback.
type MutationError struct {
	ProposalID string
	Stage      string // e.g. "apply", "rollback"
	Err        error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("mutation: proposal %s: %s failed: %v", e.ProposalID, e.Stage, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }
