// Package graphalgo implements the read-only graph algorithms the mutation
// engine runs over a graph.Snapshot: cycle detection, topological ordering,
// traversal, dependency resolution, and impact analysis (spec.md §4.2-§4.4).
// Every algorithm here is pure — it never mutates the snapshot it is given.
package graphalgo

import (
	"sort"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// adjacency builds a source-id -> target-ids adjacency list restricted to
// edges whose Kind is present in kinds (nil kinds means "all edges").
func adjacency(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) map[string][]string {
	adj := make(map[string][]string, len(snap.Nodes))
	for id := range snap.Nodes {
		adj[id] = nil
	}
	for _, e := range snap.Edges {
		if kinds != nil && !kinds[e.Kind] {
			continue
		}
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
	}
	return adj
}

// reverseAdjacency builds a target-id -> source-ids adjacency list, used by
// impact analysis to walk "what depends on this node" in reverse.
func reverseAdjacency(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) map[string][]string {
	radj := make(map[string][]string, len(snap.Nodes))
	for id := range snap.Nodes {
		radj[id] = nil
	}
	for _, e := range snap.Edges {
		if kinds != nil && !kinds[e.Kind] {
			continue
		}
		radj[e.TargetID] = append(radj[e.TargetID], e.SourceID)
	}
	return radj
}

// sortedIDs returns node IDs in a fixed deterministic order. Map iteration
// order in Go is randomized, and several of our algorithms (topological
// layering, BFS frontier expansion) must produce identical output across
// runs given identical input — spec.md's "deterministic ordering" testable
// property applies to graph algorithms as well as to the semantic index.
func sortedIDs(ids map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
