package query

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/endomorphosis/kgraph/pkg/common"
)

// HopConstraint restricts one hop of a ranked expansion. Types, when
// non-empty, is an allow-list of relationship types; Direction defaults to
// both.
type HopConstraint struct {
	Types     []string
	Direction common.Direction
}

// VectorQueryParams configures a vector-seeded, hop-decayed ranking.
// RelationshipConstraints[i] applies to hop i+1; hops beyond the list are
// unconstrained.
type VectorQueryParams struct {
	QueryVector             []float32
	RelationshipConstraints []HopConstraint
	TopK                    int
	MaxHops                 int
	MinConfidence           float64
}

// RankedEntity is one ranked result: the entity, its combined score, the
// hop distance and seed that produced that score, and the entity ID path
// from seed to entity for provenance.
type RankedEntity struct {
	Entity     *common.Entity
	Score      float64
	Similarity float64
	Hops       int
	SeedID     string
	Path       []string
}

// RankResult holds ranked entities in descending score order.
type RankResult struct {
	Entities   []RankedEntity
	Incomplete bool
}

type reachedEntity struct {
	entityID string
	score    float64
	hops     int
	path     []string
}

type seedExpansion struct {
	seedID     string
	similarity float64
	reached    []reachedEntity
	incomplete bool
}

// VectorAugmentedQuery seeds from the vector index's nearest neighbors and
// expands a bounded BFS from each seed, scoring every reached entity as
// similarity * decay^hops. An entity reachable from multiple seeds keeps
// only its best score. Seed expansions run in parallel; results are merged
// in seed order so output is deterministic. An empty candidate set is an
// empty result, not an error; MaxHops of zero degenerates to pure vector
// search.
func (c *Client) VectorAugmentedQuery(ctx context.Context, params VectorQueryParams) (*RankResult, error) {
	if len(params.QueryVector) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", common.ErrInvalidArgument)
	}
	if params.TopK <= 0 {
		return nil, fmt.Errorf("%w: top k %d must be positive", common.ErrInvalidArgument, params.TopK)
	}
	if params.MaxHops < 0 {
		return nil, fmt.Errorf("%w: max hops %d must not be negative", common.ErrInvalidArgument, params.MaxHops)
	}
	if params.MinConfidence < 0 || params.MinConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence %v outside [0, 1]", common.ErrInvalidArgument, params.MinConfidence)
	}
	for i, constraint := range params.RelationshipConstraints {
		if constraint.Direction != "" && !constraint.Direction.Valid() {
			return nil, fmt.Errorf("%w: constraint %d direction %q", common.ErrInvalidArgument, i, constraint.Direction)
		}
	}
	if c.vectors == nil {
		return nil, fmt.Errorf("%w: client has no vector index", common.ErrInvalidArgument)
	}

	matches, err := c.vectors.Search(ctx, params.QueryVector, c.seedCandidates)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var seeds []seedExpansion
	for _, match := range matches {
		entity, ok := c.graph.EntityByVectorRef(match.Ref)
		if !ok {
			continue
		}
		if entity.Confidence < params.MinConfidence {
			RecordSeedRejected(c.tracer, entity.ID, match.Similarity, "below min confidence")
			continue
		}
		RecordSeedSelected(c.tracer, entity.ID, match.Similarity)
		seeds = append(seeds, seedExpansion{seedID: entity.ID, similarity: match.Similarity})
	}
	if len(seeds) == 0 {
		return &RankResult{Entities: []RankedEntity{}}, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.maxParallel)
	for i := range seeds {
		group.Go(func() error {
			return c.expandSeed(groupCtx, &seeds[i], params)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// Merge in seed order so ties resolve the same way on every run.
	best := make(map[string]RankedEntity)
	incomplete := false
	for _, seed := range seeds {
		if seed.incomplete {
			incomplete = true
		}
		for _, reached := range seed.reached {
			candidate := RankedEntity{
				Score:      reached.score,
				Similarity: seed.similarity,
				Hops:       reached.hops,
				SeedID:     seed.seedID,
				Path:       reached.path,
			}
			current, seen := best[reached.entityID]
			if !seen || betterRank(candidate, current) {
				best[reached.entityID] = candidate
			}
		}
	}

	ranked := make([]RankedEntity, 0, len(best))
	for entityID, candidate := range best {
		entity, err := c.graph.GetEntity(entityID)
		if err != nil {
			return nil, err
		}
		candidate.Entity = entity
		ranked = append(ranked, candidate)
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].Score != ranked[b].Score {
			return ranked[a].Score > ranked[b].Score
		}
		if ranked[a].Hops != ranked[b].Hops {
			return ranked[a].Hops < ranked[b].Hops
		}
		return ranked[a].Entity.ID < ranked[b].Entity.ID
	})
	if len(ranked) > params.TopK {
		ranked = ranked[:params.TopK]
	}

	return &RankResult{Entities: ranked, Incomplete: incomplete}, nil
}

// expandSeed runs the bounded BFS for one seed, scoring reached entities
// with per-hop decay. The seed itself is reported at hop zero.
func (c *Client) expandSeed(ctx context.Context, seed *seedExpansion, params VectorQueryParams) error {
	visited := map[string]struct{}{seed.seedID: {}}
	seed.reached = append(seed.reached, reachedEntity{
		entityID: seed.seedID,
		score:    seed.similarity,
		hops:     0,
		path:     []string{seed.seedID},
	})

	frontier := []reachedEntity{seed.reached[0]}
	for hop := 1; hop <= params.MaxHops && len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			seed.incomplete = true
			return nil
		}

		direction := common.DirectionBoth
		var types []string
		if hop-1 < len(params.RelationshipConstraints) {
			constraint := params.RelationshipConstraints[hop-1]
			types = constraint.Types
			if constraint.Direction != "" {
				direction = constraint.Direction
			}
		}

		score := seed.similarity * math.Pow(c.decay, float64(hop))
		var next []reachedEntity
		for _, current := range frontier {
			relationships, err := c.graph.GetEntityRelationships(current.entityID, direction, types...)
			if err != nil {
				return err
			}
			for _, relationship := range relationships {
				if relationship.Confidence < params.MinConfidence {
					continue
				}
				neighborID := relationship.Other(current.entityID)
				if _, seen := visited[neighborID]; seen {
					continue
				}
				neighbor, err := c.graph.GetEntity(neighborID)
				if err != nil {
					return err
				}
				if neighbor.Confidence < params.MinConfidence {
					continue
				}
				visited[neighborID] = struct{}{}
				reached := reachedEntity{
					entityID: neighborID,
					score:    score,
					hops:     hop,
					path:     appendCopy(current.path, neighborID),
				}
				seed.reached = append(seed.reached, reached)
				next = append(next, reached)
			}
		}
		frontier = next
	}

	return nil
}

// betterRank reports whether a beats b for the same entity: higher score,
// then fewer hops, then the lexically smaller seed ID.
func betterRank(a, b RankedEntity) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Hops != b.Hops {
		return a.Hops < b.Hops
	}
	return a.SeedID < b.SeedID
}
