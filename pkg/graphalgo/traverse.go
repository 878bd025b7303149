package graphalgo

import (
	"sort"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// edgeWeight derives a traversal weight from edge kind — conflicts_with
// edges are the heaviest since a path crossing one represents the sharpest
// possible semantic tension between two nodes (spec.md GLOSSARY).
func edgeWeight(kind graph.EdgeKind) int {
	if kind == graph.EdgeKindConflictsWith {
		return 5
	}
	if graph.DependencyEdgeKinds[kind] {
		return 1
	}
	return 2
}

// BFS walks outward from start following every edge kind, returning visited
// node IDs in the order they were first reached.
func BFS(snap *graph.Snapshot, start string) []string {
	adj := adjacency(snap, nil)
	visited := map[string]bool{start: true}
	queue := []string{start}
	var order []string

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return order
}

// DFS walks depth-first from start following every edge kind, returning
// visited node IDs in pre-order.
func DFS(snap *graph.Snapshot, start string) []string {
	adj := adjacency(snap, nil)
	visited := map[string]bool{}
	var order []string

	var visit func(id string)
	visit = func(id string) {
		visited[id] = true
		order = append(order, id)
		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if !visited[next] {
				visit(next)
			}
		}
	}
	visit(start)
	return order
}

// Reachable reports whether target is reachable from start via any edge.
func Reachable(snap *graph.Snapshot, start, target string) bool {
	if start == target {
		return true
	}
	for _, id := range BFS(snap, start) {
		if id == target {
			return true
		}
	}
	return false
}

// ShortestPath returns the minimum-edge-count path from start to target
// (BFS shortest path, ties broken by deterministic neighbor ordering), or
// nil if no path exists.
func ShortestPath(snap *graph.Snapshot, start, target string) []string {
	if start == target {
		return []string{start}
	}
	adj := adjacency(snap, nil)
	visited := map[string]bool{start: true}
	prev := map[string]string{}
	queue := []string{start}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		neighbors := append([]string(nil), adj[id]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = id
			if next == target {
				return reconstructPath(prev, start, target)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstructPath(prev map[string]string, start, target string) []string {
	path := []string{target}
	for path[len(path)-1] != start {
		path = append(path, prev[path[len(path)-1]])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// AllPaths enumerates every simple path from start to target up to maxDepth
// hops, bounded DFS with a visited-on-current-path set to avoid cycles.
func AllPaths(snap *graph.Snapshot, start, target string, maxDepth int) [][]string {
	adj := adjacency(snap, nil)
	var paths [][]string
	path := []string{start}
	onPath := map[string]bool{start: true}

	var dfs func(current string, depth int)
	dfs = func(current string, depth int) {
		if current == target {
			paths = append(paths, append([]string(nil), path...))
			return
		}
		if depth >= maxDepth {
			return
		}
		neighbors := append([]string(nil), adj[current]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if onPath[next] {
				continue
			}
			path = append(path, next)
			onPath[next] = true
			dfs(next, depth+1)
			onPath[next] = false
			path = path[:len(path)-1]
		}
	}
	dfs(start, 0)
	return paths
}

// StronglyConnectedComponents computes Tarjan's SCCs over every edge kind.
// Components are returned sorted by their smallest member ID, and members
// within a component are sorted, so output is deterministic.
func StronglyConnectedComponents(snap *graph.Snapshot) [][]string {
	adj := adjacency(snap, nil)

	index := 0
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	var components [][]string

	ids := make(map[string]bool, len(snap.Nodes))
	for id := range snap.Nodes {
		ids[id] = true
	}

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := append([]string(nil), adj[v]...)
		sort.Strings(neighbors)
		for _, w := range neighbors {
			if _, ok := indices[w]; !ok {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			sort.Strings(component)
			components = append(components, component)
		}
	}

	for _, id := range sortedIDs(ids) {
		if _, ok := indices[id]; !ok {
			strongconnect(id)
		}
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}
