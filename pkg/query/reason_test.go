package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/endomorphosis/kgraph/pkg/common"
)

// reasoningGraph links two documents through a shared organization and a
// third document through a longer chain.
func reasoningGraph(t *testing.T) *Client {
	t.Helper()
	g := buildGraph(t,
		[]testEntity{
			{id: "docA", entityType: "document", vector: []float32{1, 0}},
			{id: "docB", entityType: "document", vector: []float32{0.8, 0.6}},
			{id: "acme", entityType: "organization"},
			{id: "alice", entityType: "person"},
		},
		[]testRelationship{
			{id: "ra", relationshipType: "mentions", source: "docA", target: "acme", confidence: 0.9},
			{id: "rb", relationshipType: "mentions", source: "docB", target: "acme", confidence: 0.8},
			{id: "rc", relationshipType: "mentions", source: "docA", target: "alice", confidence: 0.7},
		},
	)
	return newTestClient(t, g)
}

func TestReasoning_BasicSharedEntity(t *testing.T) {
	client := reasoningGraph(t)

	result, err := client.CrossDocumentReasoning(context.Background(), ReasoningParams{
		Query:             "what links the reports",
		QueryVector:       []float32{1, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           2,
		MaxDocuments:      2,
		ReasoningDepth:    ReasoningBasic,
	})
	if err != nil {
		t.Fatalf("reasoning failed: %v", err)
	}

	if len(result.Paths) != 1 {
		t.Fatalf("expected 1 evidence path, got %d", len(result.Paths))
	}
	path := result.Paths[0]
	if len(path.EntityIDs) != 3 || path.EntityIDs[1] != "acme" {
		t.Fatalf("expected a path through acme, got %v", path.EntityIDs)
	}
	if math.Abs(path.Confidence-0.72) > 1e-9 {
		t.Fatalf("expected path confidence 0.72, got %v", path.Confidence)
	}

	if len(result.Documents) != 2 {
		t.Fatalf("expected both documents connected, got %d", len(result.Documents))
	}

	// Confidence blends document similarity, path confidence, and the
	// connected fraction: ((1.0+0.8)/2 + 0.72 + 1.0) / 3.
	wantConfidence := (0.9 + 0.72 + 1.0) / 3
	if math.Abs(result.Confidence-wantConfidence) > 1e-6 {
		t.Fatalf("expected confidence %v, got %v", wantConfidence, result.Confidence)
	}

	if result.Query != "what links the reports" {
		t.Fatalf("query not echoed: %s", result.Query)
	}
}

func TestReasoning_BasicNeedsTwoHops(t *testing.T) {
	client := reasoningGraph(t)

	result, err := client.CrossDocumentReasoning(context.Background(), ReasoningParams{
		QueryVector:       []float32{1, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           1,
		MaxDocuments:      2,
		ReasoningDepth:    ReasoningBasic,
	})
	if err != nil {
		t.Fatalf("reasoning failed: %v", err)
	}
	if len(result.Paths) != 0 {
		t.Fatalf("expected no paths with one hop, got %d", len(result.Paths))
	}
	if result.Confidence != 0 {
		t.Fatalf("expected zero confidence, got %v", result.Confidence)
	}
}

func TestReasoning_TraceIsOrdered(t *testing.T) {
	client := reasoningGraph(t)

	run := func() []TraceEvent {
		result, err := client.CrossDocumentReasoning(context.Background(), ReasoningParams{
			QueryVector:       []float32{1, 0},
			DocumentNodeTypes: []string{"document"},
			MaxHops:           2,
			MaxDocuments:      2,
			ReasoningDepth:    ReasoningBasic,
		})
		if err != nil {
			t.Fatalf("reasoning failed: %v", err)
		}
		return result.Trace
	}

	first := run()
	second := run()

	if len(first) == 0 {
		t.Fatal("expected trace events")
	}
	if len(first) != len(second) {
		t.Fatalf("trace length not reproducible: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Kind != second[i].Kind || first[i].Detail != second[i].Detail {
			t.Fatalf("trace event %d differs between runs", i)
		}
	}
	if first[len(first)-1].Kind != TraceEventScoreComputed {
		t.Fatalf("expected final score event, got %s", first[len(first)-1].Kind)
	}
}

func TestReasoning_ModerateFindsLongerPaths(t *testing.T) {
	// docA and docB share no direct entity; the chain runs through two
	// intermediate entities.
	g := buildGraph(t,
		[]testEntity{
			{id: "docA", entityType: "document", vector: []float32{1, 0}},
			{id: "docB", entityType: "document", vector: []float32{0.8, 0.6}},
			{id: "alice", entityType: "person"},
			{id: "bob", entityType: "person"},
		},
		[]testRelationship{
			{id: "ra", relationshipType: "mentions", source: "docA", target: "alice", confidence: 0.9},
			{id: "rk", relationshipType: "knows", source: "alice", target: "bob", confidence: 0.9},
			{id: "rb", relationshipType: "mentions", source: "docB", target: "bob", confidence: 0.9},
		},
	)
	client := newTestClient(t, g)
	ctx := context.Background()

	basic, err := client.CrossDocumentReasoning(ctx, ReasoningParams{
		QueryVector:       []float32{1, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           3,
		MaxDocuments:      2,
		ReasoningDepth:    ReasoningBasic,
	})
	if err != nil {
		t.Fatalf("reasoning failed: %v", err)
	}
	if len(basic.Paths) != 0 {
		t.Fatalf("basic depth should not find three-hop paths, got %d", len(basic.Paths))
	}

	moderate, err := client.CrossDocumentReasoning(ctx, ReasoningParams{
		QueryVector:       []float32{1, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           3,
		MaxDocuments:      2,
		ReasoningDepth:    ReasoningModerate,
	})
	if err != nil {
		t.Fatalf("reasoning failed: %v", err)
	}
	if len(moderate.Paths) != 1 {
		t.Fatalf("expected 1 path at moderate depth, got %d", len(moderate.Paths))
	}
	path := moderate.Paths[0]
	if len(path.EntityIDs) != 4 {
		t.Fatalf("expected a four-entity chain, got %v", path.EntityIDs)
	}
	if math.Abs(path.Confidence-0.9*0.9*0.9) > 1e-9 {
		t.Fatalf("expected confidence 0.729, got %v", path.Confidence)
	}
}

func TestReasoning_DirectDocumentEdgeIsNotEvidence(t *testing.T) {
	// docA and docB are linked both directly and through a shared entity;
	// only the mediated route counts as evidence.
	g := buildGraph(t,
		[]testEntity{
			{id: "docA", entityType: "document", vector: []float32{1, 0}},
			{id: "docB", entityType: "document", vector: []float32{0.8, 0.6}},
			{id: "acme", entityType: "organization"},
		},
		[]testRelationship{
			{id: "rd", relationshipType: "cites", source: "docA", target: "docB", confidence: 0.9},
			{id: "r1", relationshipType: "mentions", source: "docA", target: "acme", confidence: 0.9},
			{id: "r2", relationshipType: "mentions", source: "docB", target: "acme", confidence: 0.8},
		},
	)
	client := newTestClient(t, g)
	ctx := context.Background()

	for _, depth := range []ReasoningDepth{ReasoningModerate, ReasoningDeep} {
		result, err := client.CrossDocumentReasoning(ctx, ReasoningParams{
			QueryVector:       []float32{1, 0},
			DocumentNodeTypes: []string{"document"},
			MaxHops:           3,
			MaxDocuments:      2,
			ReasoningDepth:    depth,
		})
		if err != nil {
			t.Fatalf("%s reasoning failed: %v", depth, err)
		}
		if len(result.Paths) != 1 {
			t.Fatalf("%s: expected only the mediated path, got %d paths", depth, len(result.Paths))
		}
		path := result.Paths[0]
		if len(path.EntityIDs) != 3 || path.EntityIDs[1] != "acme" {
			t.Fatalf("%s: expected a path through acme, got %v", depth, path.EntityIDs)
		}
		if math.Abs(path.Confidence-0.72) > 1e-9 {
			t.Fatalf("%s: expected confidence 0.72, got %v", depth, path.Confidence)
		}
	}
}

func TestReasoning_ModerateRejectsCandidateIntermediates(t *testing.T) {
	// The only route between docA and docC passes through docB, itself a
	// candidate. Moderate refuses it, deep accepts it.
	g := buildGraph(t,
		[]testEntity{
			{id: "docA", entityType: "document", vector: []float32{1, 0, 0}},
			{id: "docB", entityType: "document", vector: []float32{0.9, 0.1, 0}},
			{id: "docC", entityType: "document", vector: []float32{0.8, 0.2, 0}},
			{id: "alice", entityType: "person"},
			{id: "bob", entityType: "person"},
		},
		[]testRelationship{
			{id: "r1", relationshipType: "mentions", source: "docA", target: "alice", confidence: 0.9},
			{id: "r2", relationshipType: "mentions", source: "docB", target: "alice", confidence: 0.9},
			{id: "r3", relationshipType: "mentions", source: "docB", target: "bob", confidence: 0.9},
			{id: "r4", relationshipType: "mentions", source: "docC", target: "bob", confidence: 0.9},
		},
	)
	client := newTestClient(t, g)
	ctx := context.Background()

	pathsBetween := func(result *ReasoningResult, a, b string) int {
		count := 0
		for _, path := range result.Paths {
			if len(path.EntityIDs) < 2 {
				continue
			}
			first, last := path.EntityIDs[0], path.EntityIDs[len(path.EntityIDs)-1]
			if (first == a && last == b) || (first == b && last == a) {
				count++
			}
		}
		return count
	}

	moderate, err := client.CrossDocumentReasoning(ctx, ReasoningParams{
		QueryVector:       []float32{1, 0, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           4,
		MaxDocuments:      3,
		ReasoningDepth:    ReasoningModerate,
	})
	if err != nil {
		t.Fatalf("reasoning failed: %v", err)
	}
	if pathsBetween(moderate, "docA", "docC") != 0 {
		t.Fatal("moderate depth accepted a path through a candidate document")
	}

	deep, err := client.CrossDocumentReasoning(ctx, ReasoningParams{
		QueryVector:       []float32{1, 0, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           4,
		MaxDocuments:      3,
		ReasoningDepth:    ReasoningDeep,
	})
	if err != nil {
		t.Fatalf("reasoning failed: %v", err)
	}
	if pathsBetween(deep, "docA", "docC") == 0 {
		t.Fatal("deep depth should chain evidence through docB")
	}
}

func TestReasoning_NoCandidatesIsEmptyResult(t *testing.T) {
	client := reasoningGraph(t)

	result, err := client.CrossDocumentReasoning(context.Background(), ReasoningParams{
		QueryVector:       []float32{1, 0},
		DocumentNodeTypes: []string{"document"},
		MaxHops:           2,
		MinRelevance:      1.1,
		MaxDocuments:      2,
		ReasoningDepth:    ReasoningBasic,
	})
	if err != nil {
		t.Fatalf("expected empty result, got error %v", err)
	}
	if len(result.Documents) != 0 || len(result.Paths) != 0 || result.Confidence != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if len(result.Trace) == 0 {
		t.Fatal("expected trace events explaining the empty result")
	}
}

func TestReasoning_Validation(t *testing.T) {
	client := reasoningGraph(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params ReasoningParams
	}{
		{"missing vector", ReasoningParams{DocumentNodeTypes: []string{"document"}, MaxDocuments: 1, ReasoningDepth: ReasoningBasic}},
		{"missing types", ReasoningParams{QueryVector: []float32{1, 0}, MaxDocuments: 1, ReasoningDepth: ReasoningBasic}},
		{"zero documents", ReasoningParams{QueryVector: []float32{1, 0}, DocumentNodeTypes: []string{"document"}, ReasoningDepth: ReasoningBasic}},
		{"bad depth", ReasoningParams{QueryVector: []float32{1, 0}, DocumentNodeTypes: []string{"document"}, MaxDocuments: 1, ReasoningDepth: "extreme"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := client.CrossDocumentReasoning(ctx, tc.params); !errors.Is(err, common.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}
