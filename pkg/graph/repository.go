package graph

import "context"

// Repository is the contract the mutation engine core requires from its
// graph-storage collaborator (spec.md §4.1, §6). All mutating operations
// are transactional: either the full operation applies or nothing does.
// Reads are consistent with the last committed write.
type Repository interface {
	CreateNode(ctx context.Context, n *Node) error
	GetNode(ctx context.Context, id string) (*Node, error)
	// UpdateNode applies patch to the node identified by id. Fields left nil
	// in patch are preserved unchanged.
	UpdateNode(ctx context.Context, id string, patch NodePatch) (*Node, error)
	// DeleteNode removes the node and, atomically, every edge incident to
	// it (cascade delete — spec.md §4.1, S5).
	DeleteNode(ctx context.Context, id string) error

	CreateEdge(ctx context.Context, e *Edge) error
	DeleteEdge(ctx context.Context, id string) error

	QueryNodes(ctx context.Context, filter NodeFilter) ([]*Node, error)
	QueryEdges(ctx context.Context, filter EdgeFilter) ([]*Edge, error)

	// Snapshot returns an immutable view restricted to nodeIDs/edgeIDs. A
	// nil/empty slice means "all".
	Snapshot(ctx context.Context, nodeIDs, edgeIDs []string) (*Snapshot, error)
}
