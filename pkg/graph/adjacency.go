package graph

import "github.com/endomorphosis/kgraph/pkg/common"

type edge struct {
	relID   string
	relType string
}

// adjacencyIndex keeps per-entity ordered edge lists for both directions.
// Edges are appended in addition order, which gives traversal a
// deterministic iteration order. Self-loops appear in both lists.
type adjacencyIndex struct {
	outgoing map[string][]edge
	incoming map[string][]edge
}

func newAdjacencyIndex() *adjacencyIndex {
	return &adjacencyIndex{
		outgoing: make(map[string][]edge),
		incoming: make(map[string][]edge),
	}
}

func (a *adjacencyIndex) add(r *common.Relationship) {
	e := edge{relID: r.ID, relType: r.Type}
	a.outgoing[r.SourceID] = append(a.outgoing[r.SourceID], e)
	a.incoming[r.TargetID] = append(a.incoming[r.TargetID], e)
}

// ids returns the relationship IDs attached to entityID for the given
// direction, filtered by relationshipTypes when non-empty. Direction both
// concatenates outgoing then incoming.
func (a *adjacencyIndex) ids(entityID string, direction common.Direction, relationshipTypes []string) []string {
	var filter map[string]struct{}
	if len(relationshipTypes) > 0 {
		filter = make(map[string]struct{}, len(relationshipTypes))
		for _, t := range relationshipTypes {
			filter[t] = struct{}{}
		}
	}

	var ids []string
	collect := func(edges []edge) {
		for _, e := range edges {
			if filter != nil {
				if _, ok := filter[e.relType]; !ok {
					continue
				}
			}
			ids = append(ids, e.relID)
		}
	}

	switch direction {
	case common.DirectionOutgoing:
		collect(a.outgoing[entityID])
	case common.DirectionIncoming:
		collect(a.incoming[entityID])
	case common.DirectionBoth:
		collect(a.outgoing[entityID])
		collect(a.incoming[entityID])
	}

	return ids
}
