package graph

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository backed by mutex-guarded maps.
// It is the reference implementation used by unit tests and exercises the
// exact same contract as PostgresRepository — callers must not be able to
// tell the two apart. Writes are serialized per node via the single mu.
type MemoryRepository struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string]*Edge

	// incident indexes edges by node id (both source and target) for O(1)
	// cascade delete instead of a full table scan.
	incident map[string]map[string]bool
}

// NewMemoryRepository creates an empty in-memory graph repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		incident: make(map[string]map[string]bool),
	}
}

// CreateNode inserts n, assigning an id and timestamps if not already set.
func (r *MemoryRepository) CreateNode(_ context.Context, n *Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if _, exists := r.nodes[n.ID]; exists {
		return fmt.Errorf("node %s already exists", n.ID)
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	r.nodes[n.ID] = n.Clone()
	return nil
}

// GetNode returns the node with the given id.
func (r *MemoryRepository) GetNode(_ context.Context, id string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return n.Clone(), nil
}

// UpdateNode applies patch to the node in place, preserving unset fields.
func (r *MemoryRepository) UpdateNode(_ context.Context, id string, patch NodePatch) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	updated := n.Clone()
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.Content != nil {
		updated.Content = *patch.Content
	}
	if patch.Metadata != nil {
		if updated.Metadata == nil {
			updated.Metadata = make(map[string]string, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			updated.Metadata[k] = v
		}
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
	}
	if patch.Embedding != nil {
		updated.Embedding = patch.Embedding
	}
	updated.UpdatedAt = time.Now()

	r.nodes[id] = updated
	return updated.Clone(), nil
}

// DeleteNode removes the node and every edge incident to it, atomically
// under the repository's single write lock.
func (r *MemoryRepository) DeleteNode(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	for edgeID := range r.incident[id] {
		e := r.edges[edgeID]
		delete(r.edges, edgeID)
		if e == nil {
			continue
		}
		r.removeIncident(e.SourceID, edgeID)
		r.removeIncident(e.TargetID, edgeID)
	}
	delete(r.incident, id)
	delete(r.nodes, id)
	return nil
}

// CreateEdge inserts e after verifying both endpoints resolve — referential
// integrity invariant (spec.md §3).
func (r *MemoryRepository) CreateEdge(_ context.Context, e *Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[e.SourceID]; !ok {
		return &ReferenceError{EdgeID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, Missing: "source"}
	}
	if _, ok := r.nodes[e.TargetID]; !ok {
		return &ReferenceError{EdgeID: e.ID, SourceID: e.SourceID, TargetID: e.TargetID, Missing: "target"}
	}

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	r.edges[e.ID] = e.Clone()
	r.addIncident(e.SourceID, e.ID)
	r.addIncident(e.TargetID, e.ID)
	return nil
}

// DeleteEdge removes a single edge by id.
func (r *MemoryRepository) DeleteEdge(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.edges[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	delete(r.edges, id)
	r.removeIncident(e.SourceID, id)
	r.removeIncident(e.TargetID, id)
	return nil
}

// QueryNodes returns all nodes matching filter. An empty filter matches all.
func (r *MemoryRepository) QueryNodes(_ context.Context, filter NodeFilter) ([]*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		if filter.Status != "" && n.Status != filter.Status {
			continue
		}
		if !matchesMetadata(n.Metadata, filter.Metadata) {
			continue
		}
		out = append(out, n.Clone())
	}
	return out, nil
}

// QueryEdges returns all edges matching filter. An empty filter matches all.
func (r *MemoryRepository) QueryEdges(_ context.Context, filter EdgeFilter) ([]*Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Edge, 0, len(r.edges))
	for _, e := range r.edges {
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if filter.SourceID != "" && e.SourceID != filter.SourceID {
			continue
		}
		if filter.TargetID != "" && e.TargetID != filter.TargetID {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

// Snapshot returns an immutable copy of the requested subset (or everything
// when both slices are empty).
func (r *MemoryRepository) Snapshot(_ context.Context, nodeIDs, edgeIDs []string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := &Snapshot{
		Nodes:   make(map[string]*Node),
		Edges:   make(map[string]*Edge),
		TakenAt: time.Now(),
	}

	if len(nodeIDs) == 0 {
		for id, n := range r.nodes {
			snap.Nodes[id] = n.Clone()
		}
	} else {
		for _, id := range nodeIDs {
			if n, ok := r.nodes[id]; ok {
				snap.Nodes[id] = n.Clone()
			}
		}
	}

	if len(edgeIDs) == 0 {
		for id, e := range r.edges {
			snap.Edges[id] = e.Clone()
		}
	} else {
		for _, id := range edgeIDs {
			if e, ok := r.edges[id]; ok {
				snap.Edges[id] = e.Clone()
			}
		}
	}

	return snap, nil
}

func (r *MemoryRepository) addIncident(nodeID, edgeID string) {
	if r.incident[nodeID] == nil {
		r.incident[nodeID] = make(map[string]bool)
	}
	r.incident[nodeID][edgeID] = true
}

func (r *MemoryRepository) removeIncident(nodeID, edgeID string) {
	if set, ok := r.incident[nodeID]; ok {
		delete(set, edgeID)
	}
}

func matchesMetadata(have, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	for k, v := range want {
		if have[k] != v {
			return false
		}
	}
	return true
}
