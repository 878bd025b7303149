package graphalgo

import (
	"fmt"
	"sort"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// ErrCycle is returned by DFSTopologicalSort when the graph is not a DAG.
// TopologicalSort and LayeredTopologicalSort do not return it; they report
// the unorderable nodes as Stranded instead.
type ErrCycle struct {
	Cycle Cycle
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Cycle.NodeIDs)
}

// TopoResult is the outcome of a topological sort: a flat Order plus the
// Stranded set — nodes that could never be scheduled because they sit
// downstream of a cycle. An empty graph yields an empty Order and IsAcyclic
// true.
type TopoResult struct {
	Order     []string
	IsAcyclic bool
	Stranded  []string
}

// TopologicalSort produces a flat order via Kahn's algorithm restricted to
// kinds, grounded on the wave-based Kahn's sort the engine uses for workflow
// scheduling, generalized here to also report the unschedulable remainder
// instead of failing outright. Dependency resolution passes
// graph.DependencyEdgeKinds; the narrower graph.AcyclicEdgeKinds set is only
// for the post-apply acyclicity invariant.
func TopologicalSort(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) (*TopoResult, error) {
	layers, err := LayeredTopologicalSort(snap, kinds)
	if err != nil {
		return nil, err
	}
	result := &TopoResult{IsAcyclic: layers.IsAcyclic, Stranded: layers.Stranded}
	for _, layer := range layers.Layers {
		result.Order = append(result.Order, layer...)
	}
	return result, nil
}

// LayeredResult groups nodes into parallel-safe rounds: every edge into a node
// in Layers[i] comes from a node in Layers[0..i-1], so an edge's source is
// always in an earlier layer than its target. CriticalPathLength is len(Layers),
// the minimum number of sequential rounds required to apply the whole graph.
type LayeredResult struct {
	Layers             [][]string
	IsAcyclic          bool
	Stranded           []string
	CriticalPathLength int
}

// LayeredTopologicalSort runs Kahn's algorithm wave by wave over the
// subgraph restricted to kinds: each wave is every currently-zero-in-degree
// node, processed together, then removed. Nodes that never reach zero
// in-degree (because they are inside, or downstream of, a cycle) are
// reported as Stranded rather than causing the whole sort to fail — callers
// (impact analysis, mutation validation) need to know which part of the
// graph is still orderable.
func LayeredTopologicalSort(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) (*LayeredResult, error) {
	adj := adjacency(snap, kinds)

	inDegree := make(map[string]int, len(snap.Nodes))
	for id := range snap.Nodes {
		inDegree[id] = 0
	}
	for _, targets := range adj {
		for _, t := range targets {
			inDegree[t]++
		}
	}

	remaining := make(map[string]bool, len(snap.Nodes))
	for id := range snap.Nodes {
		remaining[id] = true
	}

	var layers [][]string
	for len(remaining) > 0 {
		var layer []string
		for id := range remaining {
			if inDegree[id] == 0 {
				layer = append(layer, id)
			}
		}
		if len(layer) == 0 {
			break
		}
		sort.Strings(layer)
		layers = append(layers, layer)

		for _, id := range layer {
			delete(remaining, id)
			neighbors := append([]string(nil), adj[id]...)
			sort.Strings(neighbors)
			for _, next := range neighbors {
				inDegree[next]--
			}
		}
	}

	stranded := make([]string, 0, len(remaining))
	for id := range remaining {
		stranded = append(stranded, id)
	}
	sort.Strings(stranded)

	return &LayeredResult{
		Layers:             layers,
		IsAcyclic:          len(stranded) == 0,
		Stranded:           stranded,
		CriticalPathLength: len(layers),
	}, nil
}

// DFSTopologicalSort produces a topological order via post-order DFS with
// reversal over the subgraph restricted to kinds, using the same 3-color
// scheme as FindCycle. Unlike LayeredTopologicalSort it returns an error
// (wrapping the offending Cycle) instead of a partial/stranded result — some
// callers want a hard failure.
func DFSTopologicalSort(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) ([]string, error) {
	if cycle := FindCycle(snap, kinds); cycle != nil {
		return nil, &ErrCycle{Cycle: *cycle}
	}

	adj := adjacency(snap, kinds)
	colors := make(map[string]color, len(snap.Nodes))
	for id := range snap.Nodes {
		colors[id] = white
	}

	var order []string
	var visit func(id string)
	visit = func(id string) {
		colors[id] = gray
		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if colors[next] == white {
				visit(next)
			}
		}
		colors[id] = black
		order = append(order, id)
	}

	ids := make(map[string]bool, len(snap.Nodes))
	for id := range snap.Nodes {
		ids[id] = true
	}
	for _, id := range sortedIDs(ids) {
		if colors[id] == white {
			visit(id)
		}
	}

	// Post-order DFS emits a node after every node it points to — reverse it
	// so each edge's source precedes its target.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
