// Package index implements the Semantic Index: query-by-text over node
// content with a pluggable vector-store-shaped primary backend and a
// deterministic local TF-IDF fallback ranker (spec.md §4.3, feature
// supplement #4). Indexing text for a node is always the concatenation
// of name, description, and content.
package index

import (
	"context"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// Result is one ranked hit from Search.
type Result struct {
	Node       *graph.Node
	Similarity float64
}

// Filters restricts candidates by metadata equality before ranking
// (spec.md §4.3 "Filters... restrict candidates by metadata equality").
type Filters struct {
	Metadata map[string]string
}

func (f Filters) matches(n *graph.Node) bool {
	for k, v := range f.Metadata {
		if n.Metadata[k] != v {
			return false
		}
	}
	return true
}

// Backend is a pluggable ranking engine — a vector-store-shaped primary
// implementation (e.g. Qdrant-style) or the built-in lexical ranker. A
// Backend must return results in deterministic order for identical
// corpus+query (spec.md §4.3(a)).
type Backend interface {
	// Index (re)builds the backend's internal representation from docs.
	Index(ctx context.Context, docs []Document) error
	// Search returns up to k ranked results for query among docs passing
	// filters. Implementations may return ErrBackendUnavailable to signal
	// the Index should degrade to the fallback ranker.
	Search(ctx context.Context, query string, k int, filters Filters) ([]Result, error)
}

// Document is the indexed representation of one node: its concatenated
// text plus the fields Filters can match against.
type Document struct {
	Node *graph.Node
	Text string
}

func documentFor(n *graph.Node) Document {
	return Document{
		Node: n,
		Text: n.Name + " " + n.Description + " " + n.Content,
	}
}
