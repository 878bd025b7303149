package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/freelancing-solutions/lattice-mutation-engine/pkg/graph"
)

// CachingBackend decorates a primary Backend with a redis-backed cache of
// full Search result sets, keyed by query+filters and expiring after ttl
// (the embedding_cache_ttl config option, spec.md §6). Any redis error —
// unreachable server, timeout, serialization failure — fails open: the
// call falls through to the wrapped backend rather than surfacing an
// error, exactly as the Index itself degrades to the lexical ranker
// (spec.md §4.3(b)).
type CachingBackend struct {
	inner  Backend
	client *redis.Client
	ttl    time.Duration
}

// NewCachingBackend wraps inner with a redis cache at addr.
func NewCachingBackend(inner Backend, addr string, ttl time.Duration) *CachingBackend {
	return &CachingBackend{
		inner:  inner,
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

// Index satisfies Backend by delegating to inner and invalidating the
// entire cache, since any corpus change can change every query's results.
func (c *CachingBackend) Index(ctx context.Context, docs []Document) error {
	if err := c.inner.Index(ctx, docs); err != nil {
		return err
	}
	if err := c.client.FlushDB(ctx).Err(); err != nil {
		slog.Warn("index: redis cache flush failed, stale entries may linger until ttl", "error", err)
	}
	return nil
}

// Search satisfies Backend: cache hit returns cached results; miss (or
// any cache error) falls through to inner and best-effort populates the
// cache for next time.
func (c *CachingBackend) Search(ctx context.Context, query string, k int, filters Filters) ([]Result, error) {
	key := cacheKey(query, k, filters)

	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var results []cachedResult
		if jsonErr := json.Unmarshal(cached, &results); jsonErr == nil {
			return decodeCached(results), nil
		}
	}

	results, err := c.inner.Search(ctx, query, k, filters)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(encodeCached(results)); err == nil {
		if err := c.client.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
			slog.Warn("index: redis cache write failed", "error", err)
		}
	}
	return results, nil
}

// cachedResult is the JSON-serializable shape stored in redis — just the
// node id and similarity, since redis only caches rankings, not the node
// bodies themselves; decodeCached restores only the id.
type cachedResult struct {
	NodeID     string  `json:"node_id"`
	Similarity float64 `json:"similarity"`
}

func encodeCached(results []Result) []cachedResult {
	out := make([]cachedResult, len(results))
	for i, r := range results {
		out[i] = cachedResult{NodeID: r.Node.ID, Similarity: r.Similarity}
	}
	return out
}

// decodeCached returns Results carrying only a stub Node with the cached
// id populated — callers that need full node bodies should treat a cache
// hit as an id+similarity hint and re-resolve via the graph repository.
func decodeCached(cached []cachedResult) []Result {
	out := make([]Result, len(cached))
	for i, c := range cached {
		out[i] = Result{Node: &graph.Node{ID: c.NodeID}, Similarity: c.Similarity}
	}
	return out
}

func cacheKey(query string, k int, filters Filters) string {
	h := sha256.New()
	h.Write([]byte(query))
	_ = json.NewEncoder(h).Encode(filters)
	h.Write([]byte{byte(k)})
	return "lattice:index:" + hex.EncodeToString(h.Sum(nil))
}
