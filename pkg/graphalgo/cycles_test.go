package graphalgo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

func node(id string) *graph.Node {
	return &graph.Node{ID: id, Kind: graph.NodeKindModule, Name: id}
}

func edge(id, src, tgt string, kind graph.EdgeKind) *graph.Edge {
	return &graph.Edge{ID: id, SourceID: src, TargetID: tgt, Kind: kind}
}

func snapshotOf(nodes []*graph.Node, edges []*graph.Edge) *graph.Snapshot {
	snap := &graph.Snapshot{Nodes: map[string]*graph.Node{}, Edges: map[string]*graph.Edge{}}
	for _, n := range nodes {
		snap.Nodes[n.ID] = n
	}
	for _, e := range edges {
		snap.Edges[e.ID] = e
	}
	return snap
}

func TestFindCycle_EmptyGraph(t *testing.T) {
	snap := snapshotOf(nil, nil)
	assert.Nil(t, FindCycle(snap, graph.DependencyEdgeKinds))
	assert.False(t, HasCycle(snap, graph.DependencyEdgeKinds))
}

func TestFindCycle_SelfLoop(t *testing.T) {
	snap := snapshotOf([]*graph.Node{node("a")}, []*graph.Edge{edge("e1", "a", "a", graph.EdgeKindDependsOn)})
	cycle := FindCycle(snap, graph.DependencyEdgeKinds)
	require.NotNil(t, cycle)
	assert.Equal(t, []string{"a"}, cycle.NodeIDs)
	assert.Equal(t, CycleSeverityHigh, cycle.Severity)
}

func TestFindCycle_TwoNodeCycle(t *testing.T) {
	snap := snapshotOf(
		[]*graph.Node{node("a"), node("b")},
		[]*graph.Edge{
			edge("e1", "a", "b", graph.EdgeKindDependsOn),
			edge("e2", "b", "a", graph.EdgeKindDependsOn),
		},
	)
	cycle := FindCycle(snap, graph.DependencyEdgeKinds)
	require.NotNil(t, cycle)
	assert.Equal(t, CycleSeverityHigh, cycle.Severity)
}

func TestFindCycle_DependencyScopeCatchesTestedByOnlyCycle(t *testing.T) {
	// tested_by is one of the four dependency edge kinds — a cycle formed
	// solely of tested_by edges must still be reported when scoped to
	// graph.DependencyEdgeKinds (spec.md Testable Property 7).
	snap := snapshotOf(
		[]*graph.Node{node("a"), node("b")},
		[]*graph.Edge{
			edge("e1", "a", "b", graph.EdgeKindTestedBy),
			edge("e2", "b", "a", graph.EdgeKindTestedBy),
		},
	)
	assert.True(t, HasCycle(snap, graph.DependencyEdgeKinds))
}

func TestFindCycle_AcyclicScopeIgnoresTestedByOnlyCycle(t *testing.T) {
	// The narrower post-apply acyclicity invariant only watches depends_on
	// and implements edges — a cycle through tested_by alone is out of its
	// scope.
	snap := snapshotOf(
		[]*graph.Node{node("a"), node("b")},
		[]*graph.Edge{
			edge("e1", "a", "b", graph.EdgeKindTestedBy),
			edge("e2", "b", "a", graph.EdgeKindTestedBy),
		},
	)
	assert.False(t, HasCycle(snap, graph.AcyclicEdgeKinds))
}

func TestFindAllCycles_DedupesRotations(t *testing.T) {
	snap := snapshotOf(
		[]*graph.Node{node("a"), node("b"), node("c")},
		[]*graph.Edge{
			edge("e1", "a", "b", graph.EdgeKindDependsOn),
			edge("e2", "b", "c", graph.EdgeKindDependsOn),
			edge("e3", "c", "a", graph.EdgeKindDependsOn),
		},
	)
	cycles := FindAllCycles(snap, graph.DependencyEdgeKinds)
	require.Len(t, cycles, 1)
	assert.Equal(t, CycleSeverityMedium, cycles[0].Severity)
}

func TestFindAllCycles_Acyclic(t *testing.T) {
	snap := snapshotOf(
		[]*graph.Node{node("a"), node("b")},
		[]*graph.Edge{edge("e1", "a", "b", graph.EdgeKindDependsOn)},
	)
	assert.Empty(t, FindAllCycles(snap, graph.DependencyEdgeKinds))
}
