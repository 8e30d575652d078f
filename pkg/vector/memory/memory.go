// Package memory provides an exact-cosine in-memory vector index for tests
// and embedded graphs.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

type entry struct {
	ref      string
	entityID string
	vec      []float32
}

// Index brute-forces cosine similarity over all stored vectors. Fine for
// the graph sizes tests and embedded deployments work with; the pgx
// backend covers the rest.
type Index struct {
	mu      sync.RWMutex
	entries []entry
	dim     int
	next    int
}

func NewIndex() *Index {
	return &Index{}
}

// Add registers a vector. The first vector fixes the index dimension.
func (i *Index) Add(_ context.Context, vec []float32, entityID string) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("%w: empty vector", common.ErrInvalidArgument)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dim == 0 {
		i.dim = len(vec)
	} else if len(vec) != i.dim {
		return "", fmt.Errorf("%w: vector dimension %d, index dimension %d", common.ErrInvalidArgument, len(vec), i.dim)
	}

	i.next++
	ref := fmt.Sprintf("v%d", i.next)
	buf := make([]float32, len(vec))
	copy(buf, vec)
	i.entries = append(i.entries, entry{ref: ref, entityID: entityID, vec: buf})
	return ref, nil
}

// Search returns the topK nearest vectors by cosine similarity, ties broken
// by ref for determinism.
func (i *Index) Search(_ context.Context, query []float32, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(i.entries) == 0 {
		return nil, nil
	}
	if len(query) != i.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", common.ErrInvalidArgument, len(query), i.dim)
	}

	matches := make([]vector.Match, 0, len(i.entries))
	for _, e := range i.entries {
		matches = append(matches, vector.Match{
			Ref:        e.ref,
			EntityID:   e.entityID,
			Similarity: cosine(query, e.vec),
		})
	}

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Similarity != matches[b].Similarity {
			return matches[a].Similarity > matches[b].Similarity
		}
		return matches[a].Ref < matches[b].Ref
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
