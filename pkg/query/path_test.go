package query

import (
	"context"
	"errors"
	"testing"

	"github.com/endomorphosis/kgraph/pkg/common"
)

func socialGraph(t *testing.T) *Client {
	t.Helper()
	g := buildGraph(t,
		[]testEntity{
			{id: "alice", entityType: "person"},
			{id: "bob", entityType: "person"},
			{id: "carol", entityType: "person", confidence: 0.3},
			{id: "acme", entityType: "organization"},
			{id: "globex", entityType: "organization"},
		},
		[]testRelationship{
			{id: "r1", relationshipType: "knows", source: "alice", target: "bob", confidence: 0.9},
			{id: "r2", relationshipType: "knows", source: "alice", target: "carol", confidence: 0.4},
			{id: "r3", relationshipType: "works_at", source: "bob", target: "acme", confidence: 0.8},
			{id: "r4", relationshipType: "works_at", source: "carol", target: "globex", confidence: 0.9},
		},
	)
	return newTestClient(t, g)
}

func TestPathQuery_TwoHopPattern(t *testing.T) {
	client := socialGraph(t)

	result, err := client.Query(context.Background(), PathParams{
		StartEntityID:    "alice",
		RelationshipPath: []string{"knows", "works_at"},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(result.Matches))
	}

	first := result.Matches[0]
	if first.Entity.ID != "acme" {
		t.Fatalf("expected acme first, got %s", first.Entity.ID)
	}
	wantEntities := []string{"alice", "bob", "acme"}
	for i, id := range wantEntities {
		if first.EntityIDs[i] != id {
			t.Fatalf("expected path %v, got %v", wantEntities, first.EntityIDs)
		}
	}
	wantRelationships := []string{"r1", "r3"}
	for i, id := range wantRelationships {
		if first.RelationshipIDs[i] != id {
			t.Fatalf("expected relationships %v, got %v", wantRelationships, first.RelationshipIDs)
		}
	}
}

func TestPathQuery_MinConfidencePrunesBranches(t *testing.T) {
	client := socialGraph(t)

	// carol and her edges sit below the bar, so only the bob branch survives.
	result, err := client.Query(context.Background(), PathParams{
		StartEntityID:    "alice",
		RelationshipPath: []string{"knows", "works_at"},
		MinConfidence:    0.5,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].Entity.ID != "acme" {
		t.Fatalf("expected only acme, got %d matches", len(result.Matches))
	}
}

func TestPathQuery_EmptyPatternReturnsStart(t *testing.T) {
	client := socialGraph(t)

	result, err := client.Query(context.Background(), PathParams{StartEntityID: "alice"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 1 || result.Matches[0].Entity.ID != "alice" {
		t.Fatalf("expected the start entity, got %+v", result.Matches)
	}

	// The start entity itself must clear the confidence bar.
	result, err = client.Query(context.Background(), PathParams{
		StartEntityID: "carol",
		MinConfidence: 0.5,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches for low-confidence start, got %d", len(result.Matches))
	}
}

func TestPathQuery_NoMatchingEdgesIsEmpty(t *testing.T) {
	client := socialGraph(t)

	result, err := client.Query(context.Background(), PathParams{
		StartEntityID:    "alice",
		RelationshipPath: []string{"owns"},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(result.Matches))
	}
}

func TestPathQuery_MaxResultsCaps(t *testing.T) {
	client := socialGraph(t)

	result, err := client.Query(context.Background(), PathParams{
		StartEntityID:    "alice",
		RelationshipPath: []string{"knows", "works_at"},
		MaxResults:       1,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(result.Matches))
	}
}

func TestPathQuery_MaxResultsBoundsFinalExpansion(t *testing.T) {
	// A wide fan-out on the last step must stop as soon as the cap is
	// reached, keeping the first branches in discovery order.
	g := buildGraph(t,
		[]testEntity{
			{id: "hub", entityType: "person"},
			{id: "n1", entityType: "person"},
			{id: "n2", entityType: "person"},
			{id: "n3", entityType: "person"},
		},
		[]testRelationship{
			{id: "e1", relationshipType: "knows", source: "hub", target: "n1", confidence: 0.9},
			{id: "e2", relationshipType: "knows", source: "hub", target: "n2", confidence: 0.9},
			{id: "e3", relationshipType: "knows", source: "hub", target: "n3", confidence: 0.9},
		},
	)
	client := newTestClient(t, g)

	result, err := client.Query(context.Background(), PathParams{
		StartEntityID:    "hub",
		RelationshipPath: []string{"knows"},
		MaxResults:       2,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(result.Matches))
	}
	if result.Matches[0].Entity.ID != "n1" || result.Matches[1].Entity.ID != "n2" {
		t.Fatalf("expected the first branches in discovery order, got %s and %s",
			result.Matches[0].Entity.ID, result.Matches[1].Entity.ID)
	}
}

func TestPathQuery_DirectedOnly(t *testing.T) {
	client := socialGraph(t)

	// works_at points from bob to acme; starting at acme must find nothing.
	result, err := client.Query(context.Background(), PathParams{
		StartEntityID:    "acme",
		RelationshipPath: []string{"works_at"},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches against edge direction, got %d", len(result.Matches))
	}
}

func TestPathQuery_Validation(t *testing.T) {
	client := socialGraph(t)
	ctx := context.Background()

	if _, err := client.Query(ctx, PathParams{StartEntityID: "ghost"}); !errors.Is(err, common.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
	if _, err := client.Query(ctx, PathParams{StartEntityID: "alice", MinConfidence: 1.5}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
