package query

import (
	"context"
	"fmt"

	"github.com/endomorphosis/kgraph/pkg/common"
)

// TraverseParams configures a multi-source breadth-first traversal.
// RelationshipTypes, when non-empty, restricts which edges are followed.
type TraverseParams struct {
	Seeds             []string
	RelationshipTypes []string
	MaxDepth          int
}

// TraversalResult holds the reached entities in discovery order. Incomplete
// is set when the traversal was cancelled mid-flight and the entity list
// covers only the frontiers expanded so far.
type TraversalResult struct {
	Entities   []*common.Entity
	Incomplete bool
}

// TraverseFromEntities expands outward from the seed entities, following
// relationships in both directions up to MaxDepth hops. The visited set is
// pre-seeded with the seeds, so seeds never reappear in the output and
// cyclic graphs terminate. MaxDepth of zero yields an empty result.
func (c *Client) TraverseFromEntities(ctx context.Context, params TraverseParams) (*TraversalResult, error) {
	if len(params.Seeds) == 0 {
		return nil, fmt.Errorf("%w: at least one seed entity is required", common.ErrInvalidArgument)
	}
	if params.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: max depth %d must not be negative", common.ErrInvalidArgument, params.MaxDepth)
	}
	for _, seed := range params.Seeds {
		if !c.graph.HasEntity(seed) {
			return nil, fmt.Errorf("%w: seed %s", common.ErrEntityNotFound, seed)
		}
	}

	visited := make(map[string]struct{}, len(params.Seeds))
	frontier := make([]string, 0, len(params.Seeds))
	for _, seed := range params.Seeds {
		if _, dup := visited[seed]; dup {
			continue
		}
		visited[seed] = struct{}{}
		frontier = append(frontier, seed)
	}

	result := &TraversalResult{Entities: []*common.Entity{}}

	for depth := 0; depth < params.MaxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			RecordCancelled(c.tracer, fmt.Sprintf("traversal cancelled at depth %d", depth))
			result.Incomplete = true
			return result, nil
		}

		var next []string
		for _, entityID := range frontier {
			relationships, err := c.graph.GetEntityRelationships(entityID, common.DirectionBoth, params.RelationshipTypes...)
			if err != nil {
				return nil, err
			}
			for _, relationship := range relationships {
				neighborID := relationship.Other(entityID)
				if _, seen := visited[neighborID]; seen {
					continue
				}
				visited[neighborID] = struct{}{}
				neighbor, err := c.graph.GetEntity(neighborID)
				if err != nil {
					return nil, err
				}
				result.Entities = append(result.Entities, neighbor)
				next = append(next, neighborID)
			}
		}
		frontier = next
	}

	return result, nil
}
