package query

import (
	"context"
	"fmt"

	"github.com/endomorphosis/kgraph/pkg/common"
)

// PathParams configures a directed path-pattern match. RelationshipPath
// lists the relationship type required at each hop, in order.
type PathParams struct {
	StartEntityID    string
	RelationshipPath []string
	MaxResults       int
	MinConfidence    float64
}

// PathMatch is one completed branch: the terminal entity plus the full
// entity and relationship chain that produced it, starting at the start
// entity.
type PathMatch struct {
	Entity          *common.Entity
	EntityIDs       []string
	RelationshipIDs []string
}

// PathResult holds the completed branches in discovery order.
type PathResult struct {
	Matches    []PathMatch
	Incomplete bool
}

type partialPath struct {
	entityID        string
	entityIDs       []string
	relationshipIDs []string
}

// Query matches an ordered relationship-type pattern starting from one
// entity. At step i the frontier expands only along outgoing relationships
// of type RelationshipPath[i] whose confidence clears MinConfidence, into
// destination entities that also clear it. Branches that find no match are
// pruned silently. An empty pattern returns the start entity itself when it
// clears the confidence bar. MaxResults of zero or less means unlimited.
func (c *Client) Query(ctx context.Context, params PathParams) (*PathResult, error) {
	if params.MinConfidence < 0 || params.MinConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence %v outside [0, 1]", common.ErrInvalidArgument, params.MinConfidence)
	}

	start, err := c.graph.GetEntity(params.StartEntityID)
	if err != nil {
		return nil, fmt.Errorf("%w: start entity %s", common.ErrEntityNotFound, params.StartEntityID)
	}

	result := &PathResult{Matches: []PathMatch{}}

	if len(params.RelationshipPath) == 0 {
		if start.Confidence >= params.MinConfidence {
			result.Matches = append(result.Matches, PathMatch{
				Entity:    start,
				EntityIDs: []string{start.ID},
			})
		}
		return result, nil
	}

	frontier := []partialPath{{
		entityID:  start.ID,
		entityIDs: []string{start.ID},
	}}

	for step, relationshipType := range params.RelationshipPath {
		if len(frontier) == 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			RecordCancelled(c.tracer, fmt.Sprintf("path match cancelled at step %d", step))
			result.Incomplete = true
			return result, nil
		}

		// On the final step each expansion completes a branch, so the
		// result cap also bounds the work done here.
		finalStep := step == len(params.RelationshipPath)-1

		var next []partialPath
	expand:
		for _, branch := range frontier {
			relationships, err := c.graph.GetEntityRelationships(branch.entityID, common.DirectionOutgoing, relationshipType)
			if err != nil {
				return nil, err
			}
			for _, relationship := range relationships {
				if relationship.Confidence < params.MinConfidence {
					continue
				}
				target, err := c.graph.GetEntity(relationship.TargetID)
				if err != nil {
					return nil, err
				}
				if target.Confidence < params.MinConfidence {
					continue
				}
				next = append(next, partialPath{
					entityID:        target.ID,
					entityIDs:       appendCopy(branch.entityIDs, target.ID),
					relationshipIDs: appendCopy(branch.relationshipIDs, relationship.ID),
				})
				if finalStep && params.MaxResults > 0 && len(next) >= params.MaxResults {
					break expand
				}
			}
		}
		frontier = next
	}

	for _, branch := range frontier {
		if params.MaxResults > 0 && len(result.Matches) >= params.MaxResults {
			break
		}
		entity, err := c.graph.GetEntity(branch.entityID)
		if err != nil {
			return nil, err
		}
		result.Matches = append(result.Matches, PathMatch{
			Entity:          entity,
			EntityIDs:       branch.entityIDs,
			RelationshipIDs: branch.relationshipIDs,
		})
	}

	return result, nil
}

// appendCopy extends a path slice without aliasing the parent branch's
// backing array.
func appendCopy(path []string, next string) []string {
	extended := make([]string, len(path)+1)
	copy(extended, path)
	extended[len(path)] = next
	return extended
}
