// Package query implements the read side of a knowledge graph: multi-hop
// traversal, directed path matching, vector-seeded ranking, and
// cross-document reasoning. Every operation is read-only and safe to run
// concurrently with other reads on the same graph.
package query

import (
	"fmt"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

const (
	defaultDecay          = 0.5
	defaultSeedCandidates = 10
	defaultMaxParallel    = 4
)

// Client bundles a graph with the vector index and tuning knobs shared by
// all query operations. A Client is immutable after construction and safe
// for concurrent use.
type Client struct {
	graph   *graph.Graph
	vectors vector.Index
	tracer  Tracer

	decay          float64
	seedCandidates int
	maxParallel    int
}

// NewClientParams configures a query client. Vectors defaults to the
// graph's own index; Decay, SeedCandidates, and MaxParallel fall back to
// package defaults when zero.
type NewClientParams struct {
	Graph          *graph.Graph
	Vectors        vector.Index
	Tracer         Tracer
	Decay          float64
	SeedCandidates int
	MaxParallel    int
}

func NewClient(params NewClientParams) (*Client, error) {
	if params.Graph == nil {
		return nil, fmt.Errorf("%w: graph is required", common.ErrInvalidArgument)
	}

	vectors := params.Vectors
	if vectors == nil {
		vectors = params.Graph.Vectors()
	}

	decay := params.Decay
	if decay == 0 {
		decay = defaultDecay
	}
	if decay < 0 || decay >= 1 {
		return nil, fmt.Errorf("%w: decay %v outside [0, 1)", common.ErrInvalidArgument, decay)
	}

	seedCandidates := params.SeedCandidates
	if seedCandidates == 0 {
		seedCandidates = defaultSeedCandidates
	}
	if seedCandidates < 0 {
		return nil, fmt.Errorf("%w: seed candidates %d must be positive", common.ErrInvalidArgument, seedCandidates)
	}

	maxParallel := params.MaxParallel
	if maxParallel == 0 {
		maxParallel = defaultMaxParallel
	}
	if maxParallel < 0 {
		return nil, fmt.Errorf("%w: max parallel %d must be positive", common.ErrInvalidArgument, maxParallel)
	}

	return &Client{
		graph:          params.Graph,
		vectors:        vectors,
		tracer:         params.Tracer,
		decay:          decay,
		seedCandidates: seedCandidates,
		maxParallel:    maxParallel,
	}, nil
}

// Graph returns the underlying graph.
func (c *Client) Graph() *graph.Graph { return c.graph }
