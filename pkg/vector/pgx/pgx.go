// Package pgx provides a pgvector-backed vector index over PostgreSQL.
// The graph_vectors schema is created by the migrations in migrations/.
package pgx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pgvector/pgvector-go"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

// Index stores vectors in the graph_vectors table and ranks searches with
// the pgvector cosine operator.
type Index struct {
	conn pgxIConn
}

type NewIndexParams struct {
	Conn pgxIConn
}

func NewIndex(params NewIndexParams) (*Index, error) {
	if params.Conn == nil {
		return nil, fmt.Errorf("%w: pgx connection is required", common.ErrInvalidArgument)
	}
	return &Index{conn: params.Conn}, nil
}

// Add inserts the vector and returns a fresh opaque ref.
func (i *Index) Add(ctx context.Context, vec []float32, entityID string) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("%w: empty vector", common.ErrInvalidArgument)
	}

	ref, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("failed to generate vector ref: %w", err)
	}

	_, err = i.conn.Exec(
		ctx,
		`INSERT INTO graph_vectors (ref, entity_id, embedding) VALUES ($1, $2, $3)`,
		ref,
		entityID,
		pgvector.NewVector(vec),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert vector: %w", err)
	}

	return ref, nil
}

// Search returns up to topK matches ordered by cosine similarity
// descending, ties broken by ref.
func (i *Index) Search(ctx context.Context, query []float32, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := i.conn.Query(
		ctx,
		`SELECT ref, entity_id, 1 - (embedding <=> $1) AS similarity
		 FROM graph_vectors
		 ORDER BY embedding <=> $1, ref
		 LIMIT $2`,
		pgvector.NewVector(query),
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	matches := make([]vector.Match, 0, topK)
	for rows.Next() {
		var m vector.Match
		if err := rows.Scan(&m.Ref, &m.EntityID, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan vector match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vector matches: %w", err)
	}

	return matches, nil
}
