package index

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// NodeSource is the subset of graph.Repository the index needs to
// rebuild its corpus. graph.Repository satisfies this directly.
type NodeSource interface {
	QueryNodes(ctx context.Context, filter graph.NodeFilter) ([]*graph.Node, error)
}

// Index is the Semantic Index (spec.md §4.3): it tries an optional
// pluggable primary Backend first and silently degrades to the built-in
// lexical ranker whenever the primary is unavailable, without raising.
// Refresh() invalidates and rebuilds both rankers from the current
// repository contents.
type Index struct {
	mu       sync.RWMutex
	source   NodeSource
	primary  Backend // nil when no primary backend is configured
	fallback *LexicalBackend
}

// New builds an Index over source. primary may be nil to run
// lexical-only (still satisfies the full Backend contract).
func New(source NodeSource, primary Backend) *Index {
	return &Index{
		source:   source,
		primary:  primary,
		fallback: NewLexicalBackend(),
	}
}

// Refresh rebuilds the index's corpus from source (spec.md §4.3 "refresh()
// invalidates and rebuilds").
func (idx *Index) Refresh(ctx context.Context) error {
	nodes, err := idx.source.QueryNodes(ctx, graph.NodeFilter{})
	if err != nil {
		return err
	}

	docs := make([]Document, len(nodes))
	for i, n := range nodes {
		docs[i] = documentFor(n)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.fallback.Index(ctx, docs); err != nil {
		return err
	}
	if idx.primary != nil {
		if err := idx.primary.Index(ctx, docs); err != nil {
			slog.Warn("index: primary backend failed to index, fallback remains authoritative", "error", err)
		}
	}
	return nil
}

// Search ranks nodes by similarity to query, trying the primary backend
// first and falling back to the lexical ranker on any failure (spec.md
// §4.3(b)). filters restrict candidates by metadata equality when the
// backend supports it.
func (idx *Index) Search(ctx context.Context, query string, k int, filters Filters) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.primary != nil {
		results, err := idx.primary.Search(ctx, query, k, filters)
		if err == nil {
			return results, nil
		}
		if !errors.Is(err, ErrBackendUnavailable) {
			slog.Warn("index: primary backend returned a non-availability error, degrading anyway", "error", err)
		}
		slog.Info("index: primary backend unavailable, degrading to lexical ranker")
	}
	return idx.fallback.Search(ctx, query, k, filters)
}
