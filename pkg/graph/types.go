// Package graph defines the typed spec-graph data model: nodes and edges
// describing the system under mutation, plus the Repository contract the
// rest of the mutation engine consumes. Implementations are plug-in — an
// in-memory backing (see MemoryRepository) must behave identically to a
// persistent one (see PostgresRepository) modulo latency.
package graph

import "time"

// NodeKind is the closed set of node types a spec graph may contain.
type NodeKind string

// Node kinds.
const (
	NodeKindSpec          NodeKind = "spec"
	NodeKindModule        NodeKind = "module"
	NodeKindController    NodeKind = "controller"
	NodeKindModel         NodeKind = "model"
	NodeKindRoute         NodeKind = "route"
	NodeKindTask          NodeKind = "task"
	NodeKindTest          NodeKind = "test"
	NodeKindAgent         NodeKind = "agent"
	NodeKindGoal          NodeKind = "goal"
	NodeKindConstraint    NodeKind = "constraint"
	NodeKindDocumentation NodeKind = "documentation"
)

// NodeStatus is the lifecycle status of a node.
type NodeStatus string

// Node statuses.
const (
	NodeStatusActive     NodeStatus = "active"
	NodeStatusDraft      NodeStatus = "draft"
	NodeStatusDeprecated NodeStatus = "deprecated"
	NodeStatusPending    NodeStatus = "pending"
)

// Node is a single entity in the spec graph. Embedding is maintained by the
// semantic index only — callers must never set it directly.
type Node struct {
	ID          string            `json:"id"`
	Kind        NodeKind          `json:"kind"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Content     string            `json:"content"`
	SpecSource  string            `json:"spec_source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      NodeStatus        `json:"status"`
	Embedding   []float32         `json:"embedding,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate repository-owned state
// through a returned pointer.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := *n
	if n.Metadata != nil {
		clone.Metadata = make(map[string]string, len(n.Metadata))
		for k, v := range n.Metadata {
			clone.Metadata[k] = v
		}
	}
	if n.Embedding != nil {
		clone.Embedding = append([]float32(nil), n.Embedding...)
	}
	return &clone
}

// EdgeKind is the closed set of relationship types between two nodes.
type EdgeKind string

// Edge kinds.
const (
	EdgeKindDependsOn    EdgeKind = "depends_on"
	EdgeKindImplements   EdgeKind = "implements"
	EdgeKindRefines      EdgeKind = "refines"
	EdgeKindTestedBy     EdgeKind = "tested_by"
	EdgeKindOwnedBy      EdgeKind = "owned_by"
	EdgeKindProduces     EdgeKind = "produces"
	EdgeKindConsumes     EdgeKind = "consumes"
	EdgeKindMonitors     EdgeKind = "monitors"
	EdgeKindConflictsWith EdgeKind = "conflicts_with"
)

// DependencyEdgeKinds is the closure considered by dependency resolution —
// depends_on, implements, refines, tested_by (see GLOSSARY).
var DependencyEdgeKinds = map[EdgeKind]bool{
	EdgeKindDependsOn:  true,
	EdgeKindImplements: true,
	EdgeKindRefines:    true,
	EdgeKindTestedBy:   true,
}

// AcyclicEdgeKinds is the subset of dependency edges that must never form a
// cycle once a proposal reaches applied (spec.md Invariants, §8 property 1).
var AcyclicEdgeKinds = map[EdgeKind]bool{
	EdgeKindDependsOn:  true,
	EdgeKindImplements: true,
}

// Edge is a directed, typed relationship between two existing nodes.
type Edge struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	TargetID    string    `json:"target_id"`
	Kind        EdgeKind  `json:"kind"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a shallow copy (Edge has no reference fields worth deep
// copying beyond the struct itself).
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// NodePatch carries only the fields being changed by UpdateNode; nil means
// "leave as-is". Status/Metadata use pointers/explicit-set maps for the same
// reason.
type NodePatch struct {
	Name        *string
	Description *string
	Content     *string
	Metadata    map[string]string
	Status      *NodeStatus
	Embedding   []float32
}

// NodeFilter restricts QueryNodes results.
type NodeFilter struct {
	Kind     NodeKind
	Status   NodeStatus
	Metadata map[string]string // equality match on all given keys
}

// EdgeFilter restricts QueryEdges results.
type EdgeFilter struct {
	Kind     EdgeKind
	SourceID string
	TargetID string
}

// Snapshot is an immutable point-in-time view of a subset of the graph,
// taken by the engine before agent dispatch and before an apply. It is not
// compared against MutationProposal.CurrentVersion.
type Snapshot struct {
	Nodes     map[string]*Node `json:"nodes"`
	Edges     map[string]*Edge `json:"edges"`
	TakenAt   time.Time        `json:"taken_at"`
}
