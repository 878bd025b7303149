package graphalgo

import (
	"fmt"
	"sort"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// CircularDependencyError reports that resolving a node's dependency
// closure ran into one or more cycles among graph.DependencyEdgeKinds edges.
type CircularDependencyError struct {
	NodeID string
	Cycles []Cycle
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency involving node %s (%d cycle(s) found)", e.NodeID, len(e.Cycles))
}

// ResolveDependencies returns the transitive closure of nodeID's
// dependencies — everything reachable by following depends_on, implements,
// refines, and tested_by edges (graph.DependencyEdgeKinds) — in topological
// order (deepest first, so a node precedes the nodes it depends on), along
// with each node's resolution depth
// (memoized DFS depth, used for UI ordering / "how deep" reporting). An
// error is returned if any cycle threads through the closure.
func ResolveDependencies(snap *graph.Snapshot, nodeID string) ([]string, map[string]int, error) {
	adj := adjacency(snap, graph.DependencyEdgeKinds)

	closure := map[string]bool{}
	var collect func(id string)
	visited := map[string]bool{}
	collect = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, dep := range adj[id] {
			closure[dep] = true
			collect(dep)
		}
	}
	collect(nodeID)

	if len(closure) == 0 {
		return nil, map[string]int{}, nil
	}

	restricted := &graph.Snapshot{Nodes: map[string]*graph.Node{}, Edges: map[string]*graph.Edge{}}
	for id := range closure {
		if n, ok := snap.Nodes[id]; ok {
			restricted.Nodes[id] = n
		}
	}
	restricted.Nodes[nodeID] = snap.Nodes[nodeID]
	for id, e := range snap.Edges {
		if restricted.Nodes[e.SourceID] != nil && restricted.Nodes[e.TargetID] != nil {
			restricted.Edges[id] = e
		}
	}

	if cycles := FindAllCycles(restricted, graph.DependencyEdgeKinds); len(cycles) > 0 {
		return nil, nil, &CircularDependencyError{NodeID: nodeID, Cycles: cycles}
	}

	depth := memoizedDepth(adj, nodeID)

	order := make([]string, 0, len(closure))
	for id := range closure {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		if depth[order[i]] != depth[order[j]] {
			return depth[order[i]] > depth[order[j]]
		}
		return order[i] < order[j]
	})

	return order, depth, nil
}

// memoizedDepth computes, for every node reachable from root, the length of
// the longest dependency chain beneath it (0 for a leaf with no further
// dependencies), memoizing each node's depth on first computation.
func memoizedDepth(adj map[string][]string, root string) map[string]int {
	memo := map[string]int{}
	var compute func(id string) int
	computing := map[string]bool{}
	compute = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		if computing[id] {
			return 0 // cycle guard — ResolveDependencies already rejects true cycles.
		}
		computing[id] = true
		max := 0
		for _, dep := range adj[id] {
			if d := compute(dep) + 1; d > max {
				max = d
			}
		}
		computing[id] = false
		memo[id] = max
		return max
	}
	compute(root)
	return memo
}
