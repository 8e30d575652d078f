// Package vector defines the vector-index contract the graph core consumes
// for similarity seeding. The index is a shared service: vectors are added
// once and searched by many graph instances. Implementations live in the
// subpackages: memory (exact cosine, embedded) and pgx (pgvector).
package vector

import "context"

// Match is one search hit: the opaque ref handed out by Add, the entity it
// was registered for, and the similarity to the query in [-1, 1], higher
// is more similar.
type Match struct {
	Ref        string
	EntityID   string
	Similarity float64
}

// Index is an append-only vector index.
type Index interface {
	// Add registers a vector for an entity and returns an opaque ref the
	// graph stores on the entity.
	Add(ctx context.Context, vec []float32, entityID string) (string, error)

	// Search returns up to topK matches ordered by similarity descending.
	// An empty index yields an empty slice, not an error.
	Search(ctx context.Context, query []float32, topK int) ([]Match, error)
}
