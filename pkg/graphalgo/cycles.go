package graphalgo

import (
	"sort"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// CycleSeverity classifies a detected cycle by how many nodes it threads
// through — a 2-node cycle (mutual dependency) is the sharpest signal of a
// modeling mistake, while long cycles are more often an artifact of loosely
// typed "refines" chains.
type CycleSeverity string

const (
	CycleSeverityHigh   CycleSeverity = "high"
	CycleSeverityMedium CycleSeverity = "medium"
	CycleSeverityLow    CycleSeverity = "low"
)

// Cycle is one simple cycle (no repeated node except the closing edge back
// to NodeIDs[0]) found in the acyclic-edge-kind subgraph.
type Cycle struct {
	NodeIDs  []string
	Severity CycleSeverity
}

func severityForLength(n int) CycleSeverity {
	switch {
	case n <= 2:
		return CycleSeverityHigh
	case n >= 3 && n <= 4:
		return CycleSeverityMedium
	default:
		return CycleSeverityLow
	}
}

// color marks DFS visitation state for the 3-color cycle-detection scheme:
// white = unvisited, gray = on the current recursion stack, black = fully
// explored (all descendants resolved, cannot participate in a new cycle).
type color int

const (
	white color = iota
	gray
	black
)

// HasCycle reports whether the subgraph restricted to kinds contains any
// cycle, walking edges in deterministic node order so the result is
// reproducible across runs. Pass graph.DependencyEdgeKinds for the general
// dependency-resolution cycle check (spec.md §1 "Dependency resolver") or
// graph.AcyclicEdgeKinds for the narrower post-apply invariant (spec.md
// Invariants, §8 property 1).
func HasCycle(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) bool {
	return FindCycle(snap, kinds) != nil
}

// FindCycle returns the first cycle discovered by a 3-color DFS over the
// subgraph restricted to kinds, or nil if that subgraph is acyclic. A
// self-loop (an edge whose source equals its target) is reported as a
// length-1 cycle.
func FindCycle(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) *Cycle {
	adj := adjacency(snap, kinds)
	colors := make(map[string]color, len(snap.Nodes))
	for id := range snap.Nodes {
		colors[id] = white
	}

	var stack []string
	var found *Cycle

	ids := make(map[string]bool, len(snap.Nodes))
	for id := range snap.Nodes {
		ids[id] = true
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		stack = append(stack, id)

		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			switch colors[next] {
			case gray:
				// Closing edge back to an ancestor on the stack: extract the
				// cycle as the suffix of stack from that ancestor onward.
				start := 0
				for i, v := range stack {
					if v == next {
						start = i
						break
					}
				}
				cycleNodes := append([]string(nil), stack[start:]...)
				found = &Cycle{NodeIDs: cycleNodes, Severity: severityForLength(len(cycleNodes))}
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}

		colors[id] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for _, id := range sortedIDs(ids) {
		if colors[id] == white {
			if visit(id) {
				return found
			}
		}
	}
	return nil
}

// FindAllCycles enumerates every simple cycle in the subgraph restricted to
// kinds via repeated DFS from each node, deduplicating rotations of the same
// cycle. Intended for diagnostics/reporting (spec.md §4.2) — callers that
// only need a yes/no answer should prefer HasCycle.
func FindAllCycles(snap *graph.Snapshot, kinds map[graph.EdgeKind]bool) []Cycle {
	adj := adjacency(snap, kinds)
	ids := make(map[string]bool, len(snap.Nodes))
	for id := range snap.Nodes {
		ids[id] = true
	}
	order := sortedIDs(ids)

	seen := make(map[string]bool)
	var cycles []Cycle

	var path []string
	onPath := make(map[string]bool)

	var dfs func(start, current string)
	dfs = func(start, current string) {
		neighbors := append([]string(nil), adj[current]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if next == start {
				cycle := append([]string(nil), path...)
				key := canonicalCycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, Cycle{NodeIDs: cycle, Severity: severityForLength(len(cycle))})
				}
				continue
			}
			if onPath[next] {
				continue
			}
			// Only explore nodes that sort >= start to avoid re-deriving the
			// same cycle starting from a different member.
			if next < start {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			dfs(start, next)
			onPath[next] = false
			path = path[:len(path)-1]
		}
	}

	for _, start := range order {
		path = []string{start}
		onPath[start] = true
		dfs(start, start)
		onPath[start] = false
	}

	return cycles
}

func canonicalCycleKey(nodes []string) string {
	if len(nodes) == 0 {
		return ""
	}
	minIdx := 0
	for i, n := range nodes {
		if n < nodes[minIdx] {
			minIdx = i
		}
	}
	rotated := append(append([]string(nil), nodes[minIdx:]...), nodes[:minIdx]...)
	key := ""
	for _, n := range rotated {
		key += n + "\x00"
	}
	return key
}
