package index

import (
	"context"
	"math"
	"sort"
	"strings"
)

// LexicalBackend is the built-in TF-IDF + cosine-similarity fallback
// ranker (spec.md §4.3(b)). It never fails — Search always returns a
// (possibly empty) result set — so it also serves as the Index's
// terminal fallback when every pluggable Backend is unavailable.
type LexicalBackend struct {
	docs       []Document
	vocab      map[string]int   // term -> index
	idf        []float64        // idf per term
	vectors    [][]float64      // tf-idf vector per doc, aligned with docs
}

// NewLexicalBackend returns an empty LexicalBackend; call Index before
// Search.
func NewLexicalBackend() *LexicalBackend {
	return &LexicalBackend{}
}

// Index satisfies Backend: builds the term vocabulary and per-document
// TF-IDF vectors from docs.
func (b *LexicalBackend) Index(_ context.Context, docs []Document) error {
	b.docs = docs
	b.vocab = make(map[string]int)

	tokenized := make([][]string, len(docs))
	for i, d := range docs {
		tokens := tokenize(d.Text)
		tokenized[i] = tokens
		for _, t := range tokens {
			if _, ok := b.vocab[t]; !ok {
				b.vocab[t] = len(b.vocab)
			}
		}
	}

	docFreq := make([]int, len(b.vocab))
	for _, tokens := range tokenized {
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				docFreq[b.vocab[t]]++
				seen[t] = true
			}
		}
	}

	n := float64(len(docs))
	b.idf = make([]float64, len(b.vocab))
	for term, idx := range b.vocab {
		_ = term
		// Smoothed idf: log(N/(1+df)) + 1, always positive, never divides
		// by zero for an empty corpus.
		b.idf[idx] = math.Log(n/(1+float64(docFreq[idx]))) + 1
	}

	b.vectors = make([][]float64, len(docs))
	for i, tokens := range tokenized {
		b.vectors[i] = b.tfidfVector(tokens)
	}
	return nil
}

// Search satisfies Backend: ranks docs by cosine similarity to query's
// TF-IDF vector, breaking ties by node id for deterministic ordering
// (spec.md §4.3(a)). Documents that share no indexed term with the query
// (similarity 0) are not returned.
func (b *LexicalBackend) Search(_ context.Context, query string, k int, filters Filters) ([]Result, error) {
	queryVec := b.tfidfVector(tokenize(query))

	type scored struct {
		result Result
	}
	var candidates []scored
	for i, d := range b.docs {
		if !filters.matches(d.Node) {
			continue
		}
		sim := cosineSimilarity(queryVec, b.vectors[i])
		if sim == 0 {
			continue
		}
		candidates = append(candidates, scored{Result{Node: d.Node, Similarity: sim}})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].result.Similarity != candidates[j].result.Similarity {
			return candidates[i].result.Similarity > candidates[j].result.Similarity
		}
		return candidates[i].result.Node.ID < candidates[j].result.Node.ID
	})

	if k > 0 && len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = c.result
	}
	return out, nil
}

func (b *LexicalBackend) tfidfVector(tokens []string) []float64 {
	vec := make([]float64, len(b.vocab))
	if len(tokens) == 0 {
		return vec
	}
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	for term, count := range counts {
		idx, ok := b.vocab[term]
		if !ok {
			continue // out-of-vocabulary term (not present at index time)
		}
		tf := float64(count) / float64(len(tokens))
		vec[idx] = tf * b.idf[idx]
	}
	return vec
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}
