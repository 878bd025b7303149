package mutation

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store backed by a mutex-guarded map. It is
// the reference implementation used by unit tests and by deployments that
// do not need cross-process durability; PostgresStore exercises the same
// contract against the mutation_proposals table (pkg/database/migrations).
// Transitions are serialized per proposal via the single mu, satisfying
// the single-writer lifecycle invariant (spec.md §3, property 3).
type MemoryStore struct {
	mu        sync.Mutex
	proposals map[string]*Proposal
	owners    map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[string]*Proposal),
		owners:    make(map[string]string),
	}
}

// Create satisfies Store.
func (s *MemoryStore) Create(_ context.Context, p *Proposal, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	p.Status = StatusProposed
	s.proposals[p.ProposalID] = p.Clone()
	s.owners[p.ProposalID] = owner
	return nil
}

// Get satisfies Store.
func (s *MemoryStore) Get(_ context.Context, proposalID string) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// List satisfies Store.
func (s *MemoryStore) List(_ context.Context, filters Filters) ([]*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		if filters.matches(p) {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// Transition satisfies Store. It is the sole mutating entry point for
// proposal lifecycle state and is therefore where the single-writer and
// legal-transition invariants are enforced (spec.md §3, testable
// properties 1-3).
func (s *MemoryStore) Transition(_ context.Context, proposalID string, from, to Status, owner, nextOwner string, payload Patch) (*Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[proposalID]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Status != from {
		return nil, &ConflictError{ProposalID: proposalID, From: from, To: to, Err: ErrIllegalTransition}
	}
	if currentOwner := s.owners[proposalID]; currentOwner != owner {
		return nil, &ConflictError{ProposalID: proposalID, From: from, To: to, Err: ErrNotOwner}
	}
	if !allowedTransitions[from][to] {
		return nil, &ConflictError{ProposalID: proposalID, From: from, To: to, Err: ErrIllegalTransition}
	}

	updated := p.Clone()
	updated.Status = to
	updated.UpdatedAt = time.Now()
	if payload.ImpactAnalysis != nil {
		updated.ImpactAnalysis = *payload.ImpactAnalysis
	}
	if payload.ProposedChanges != nil {
		updated.ProposedChanges = payload.ProposedChanges
	}
	if payload.Confidence != nil {
		updated.Confidence = *payload.Confidence
	}

	s.proposals[proposalID] = updated
	if to.terminal() {
		delete(s.owners, proposalID)
	} else if nextOwner != "" {
		s.owners[proposalID] = nextOwner
	}
	return updated.Clone(), nil
}
