package query

import (
	"context"
	"testing"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	memorystore "github.com/endomorphosis/kgraph/pkg/store/memory"
	memoryvec "github.com/endomorphosis/kgraph/pkg/vector/memory"
)

type testEntity struct {
	id         string
	entityType string
	confidence float64
	vector     []float32
}

type testRelationship struct {
	id               string
	relationshipType string
	source           string
	target           string
	confidence       float64
}

// buildGraph assembles a graph from fixture rows. Confidence zero means 1.
func buildGraph(t *testing.T, entities []testEntity, relationships []testRelationship) *graph.Graph {
	t.Helper()
	ctx := context.Background()

	g, err := graph.NewGraph(ctx, graph.NewGraphParams{
		Name:    "fixture",
		Store:   memorystore.NewBlockStore(),
		Vectors: memoryvec.NewIndex(),
	})
	if err != nil {
		t.Fatalf("failed to create graph: %v", err)
	}

	for _, e := range entities {
		confidence := e.confidence
		if confidence == 0 {
			confidence = 1
		}
		_, err := g.AddEntity(ctx, graph.AddEntityParams{
			ID:         e.id,
			Type:       e.entityType,
			Name:       e.id,
			Confidence: confidence,
			Vector:     e.vector,
		})
		if err != nil {
			t.Fatalf("failed to add entity %s: %v", e.id, err)
		}
	}

	for _, r := range relationships {
		confidence := r.confidence
		if confidence == 0 {
			confidence = 1
		}
		_, err := g.AddRelationship(ctx, graph.AddRelationshipParams{
			ID:         r.id,
			Type:       r.relationshipType,
			SourceID:   r.source,
			TargetID:   r.target,
			Confidence: confidence,
		})
		if err != nil {
			t.Fatalf("failed to add relationship %s: %v", r.id, err)
		}
	}

	return g
}

func newTestClient(t *testing.T, g *graph.Graph) *Client {
	t.Helper()
	client, err := NewClient(NewClientParams{Graph: g})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func entityIDs(entities []*common.Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	return ids
}
