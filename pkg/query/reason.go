package query

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

// ReasoningDepth controls how far evidence search may range between
// document pairs.
type ReasoningDepth string

const (
	// ReasoningBasic accepts only direct shared-entity paths, one
	// intermediate entity between two documents.
	ReasoningBasic ReasoningDepth = "basic"
	// ReasoningModerate permits longer entity-mediated paths between a
	// document pair, but never through another candidate document.
	ReasoningModerate ReasoningDepth = "moderate"
	// ReasoningDeep additionally permits paths through other candidate
	// documents, chaining evidence across more than two documents.
	ReasoningDeep ReasoningDepth = "deep"
)

func (d ReasoningDepth) Valid() bool {
	switch d {
	case ReasoningBasic, ReasoningModerate, ReasoningDeep:
		return true
	}
	return false
}

// pathsPerPairLimit caps accepted evidence paths per document pair so a
// densely connected pair cannot flood the result.
const pathsPerPairLimit = 5

// ReasoningParams configures a cross-document reasoning run.
type ReasoningParams struct {
	Query             string
	QueryVector       []float32
	DocumentNodeTypes []string
	MaxHops           int
	MinRelevance      float64
	MaxDocuments      int
	ReasoningDepth    ReasoningDepth
}

// EvidencePath is one accepted connecting path between candidate
// documents. Confidence is the product of the edge confidences along it.
type EvidencePath struct {
	EntityIDs       []string
	RelationshipIDs []string
	Confidence      float64
}

// ReasoningResult is the synthesized answer: the candidate documents that
// ended up connected by at least one evidence path, the paths themselves,
// an aggregate confidence, and the ordered trace of every decision taken.
type ReasoningResult struct {
	Query      string
	Documents  []*common.Entity
	Paths      []EvidencePath
	Confidence float64
	Trace      []TraceEvent
	Incomplete bool
}

type reasoningCandidate struct {
	entity     *common.Entity
	similarity float64
}

type pairSearchResult struct {
	paths      []EvidencePath
	events     []TraceEvent
	incomplete bool
}

// CrossDocumentReasoning selects candidate documents by vector similarity,
// searches for entity-mediated paths between every candidate pair, and
// synthesizes a confidence from document similarity, path confidence, and
// the fraction of candidates connected. Pair searches run in parallel;
// their trace events are replayed in pair order so the trace is
// reproducible for identical graph state and inputs. No candidates
// clearing MinRelevance is an empty result with zero confidence, not an
// error.
func (c *Client) CrossDocumentReasoning(ctx context.Context, params ReasoningParams) (*ReasoningResult, error) {
	if len(params.QueryVector) == 0 {
		return nil, fmt.Errorf("%w: query vector is required", common.ErrInvalidArgument)
	}
	if len(params.DocumentNodeTypes) == 0 {
		return nil, fmt.Errorf("%w: at least one document node type is required", common.ErrInvalidArgument)
	}
	if params.MaxHops < 0 {
		return nil, fmt.Errorf("%w: max hops %d must not be negative", common.ErrInvalidArgument, params.MaxHops)
	}
	if params.MaxDocuments <= 0 {
		return nil, fmt.Errorf("%w: max documents %d must be positive", common.ErrInvalidArgument, params.MaxDocuments)
	}
	if !params.ReasoningDepth.Valid() {
		return nil, fmt.Errorf("%w: reasoning depth %q", common.ErrInvalidArgument, params.ReasoningDepth)
	}
	if c.vectors == nil {
		return nil, fmt.Errorf("%w: client has no vector index", common.ErrInvalidArgument)
	}

	trace := NewCollectingTracer()
	sink := MultiTracer{trace, c.tracer}

	result := &ReasoningResult{
		Query:     params.Query,
		Documents: []*common.Entity{},
		Paths:     []EvidencePath{},
	}

	candidates, err := c.selectCandidates(ctx, params, sink)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		sink.Record(TraceEvent{Kind: TraceEventScoreComputed, Score: 0, Detail: "no candidate documents cleared the relevance threshold"})
		result.Trace = trace.Events()
		return result, nil
	}

	candidateIDs := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		candidateIDs[candidate.entity.ID] = struct{}{}
	}

	type pair struct{ a, b int }
	var pairs []pair
	for a := 0; a < len(candidates); a++ {
		for b := a + 1; b < len(candidates); b++ {
			pairs = append(pairs, pair{a, b})
		}
	}

	pairResults := make([]pairSearchResult, len(pairs))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(c.maxParallel)
	for i, p := range pairs {
		group.Go(func() error {
			return c.searchPair(groupCtx, candidates[p.a].entity.ID, candidates[p.b].entity.ID, candidateIDs, params, &pairResults[i])
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	connected := make(map[string]struct{})
	for _, pairResult := range pairResults {
		for _, event := range pairResult.events {
			sink.Record(event)
		}
		if pairResult.incomplete {
			result.Incomplete = true
		}
		for _, path := range pairResult.paths {
			result.Paths = append(result.Paths, path)
			for _, entityID := range path.EntityIDs {
				if _, ok := candidateIDs[entityID]; ok {
					connected[entityID] = struct{}{}
				}
			}
		}
	}
	if result.Incomplete {
		RecordCancelled(sink, "pair search cancelled before all pairs completed")
	}

	var similaritySum float64
	for _, candidate := range candidates {
		if _, ok := connected[candidate.entity.ID]; !ok {
			continue
		}
		result.Documents = append(result.Documents, candidate.entity)
		similaritySum += candidate.similarity
	}

	if len(result.Paths) > 0 {
		var pathConfidenceSum float64
		for _, path := range result.Paths {
			pathConfidenceSum += path.Confidence
		}
		meanSimilarity := similaritySum / float64(len(result.Documents))
		meanPathConfidence := pathConfidenceSum / float64(len(result.Paths))
		connectedFraction := float64(len(result.Documents)) / float64(len(candidates))
		result.Confidence = (meanSimilarity + meanPathConfidence + connectedFraction) / 3
	}
	sink.Record(TraceEvent{Kind: TraceEventScoreComputed, Score: result.Confidence, Detail: fmt.Sprintf("%d of %d candidates connected by %d paths", len(result.Documents), len(candidates), len(result.Paths))})

	result.Trace = trace.Events()

	logger.Debug("[Query] Cross-document reasoning finished",
		"graph", c.graph.Name(), "candidates", len(candidates), "connected", len(result.Documents), "paths", len(result.Paths), "confidence", result.Confidence)

	return result, nil
}

// selectCandidates resolves the vector index's nearest neighbors to
// document entities and keeps the most similar ones that clear the
// relevance threshold.
func (c *Client) selectCandidates(ctx context.Context, params ReasoningParams, sink Tracer) ([]reasoningCandidate, error) {
	limit := c.seedCandidates
	if params.MaxDocuments > limit {
		limit = params.MaxDocuments
	}
	matches, err := c.vectors.Search(ctx, params.QueryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	documentTypes := make(map[string]struct{}, len(params.DocumentNodeTypes))
	for _, t := range params.DocumentNodeTypes {
		documentTypes[t] = struct{}{}
	}

	var candidates []reasoningCandidate
	for _, match := range matches {
		entity, ok := c.graph.EntityByVectorRef(match.Ref)
		if !ok {
			continue
		}
		if _, ok := documentTypes[entity.Type]; !ok {
			continue
		}
		if match.Similarity < params.MinRelevance {
			RecordCandidateRejected(sink, entity.ID, match.Similarity, "below relevance threshold")
			continue
		}
		if len(candidates) >= params.MaxDocuments {
			RecordCandidateRejected(sink, entity.ID, match.Similarity, "document cap reached")
			continue
		}
		RecordCandidateSelected(sink, entity.ID, match.Similarity)
		candidates = append(candidates, reasoningCandidate{entity: entity, similarity: match.Similarity})
	}
	return candidates, nil
}

// searchPair finds evidence paths between two candidate documents. Events
// are buffered locally so the orchestrator can replay them in pair order.
func (c *Client) searchPair(ctx context.Context, fromID, toID string, candidateIDs map[string]struct{}, params ReasoningParams, out *pairSearchResult) error {
	if params.ReasoningDepth == ReasoningBasic {
		return c.searchPairBasic(fromID, toID, candidateIDs, params, out)
	}

	maxHops := params.MaxHops
	frontier := []partialPath{{
		entityID:  fromID,
		entityIDs: []string{fromID},
	}}

	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		if err := ctx.Err(); err != nil {
			out.incomplete = true
			return nil
		}

		var next []partialPath
		for _, branch := range frontier {
			relationships, err := c.graph.GetEntityRelationships(branch.entityID, common.DirectionBoth)
			if err != nil {
				return err
			}
			for _, relationship := range relationships {
				neighborID := relationship.Other(branch.entityID)
				if containsID(branch.entityIDs, neighborID) {
					continue
				}
				extended := partialPath{
					entityID:        neighborID,
					entityIDs:       appendCopy(branch.entityIDs, neighborID),
					relationshipIDs: appendCopy(branch.relationshipIDs, relationship.ID),
				}
				if neighborID == toID {
					// Evidence must be entity-mediated; a bare edge between
					// the two documents proves nothing.
					if hop == 1 {
						out.events = append(out.events, TraceEvent{
							Kind:      TraceEventPathRejected,
							EntityIDs: extended.entityIDs,
							Detail:    "direct edge between documents, no mediating entity",
						})
						continue
					}
					if len(out.paths) < pathsPerPairLimit {
						path, err := c.buildEvidencePath(extended)
						if err != nil {
							return err
						}
						out.paths = append(out.paths, path)
						out.events = append(out.events, TraceEvent{
							Kind:            TraceEventPathAccepted,
							EntityIDs:       path.EntityIDs,
							RelationshipIDs: path.RelationshipIDs,
							Confidence:      path.Confidence,
							Hops:            hop,
						})
					}
					continue
				}
				if _, isCandidate := candidateIDs[neighborID]; isCandidate && params.ReasoningDepth == ReasoningModerate {
					out.events = append(out.events, TraceEvent{
						Kind:      TraceEventPathRejected,
						EntityIDs: extended.entityIDs,
						Detail:    "path through another candidate document",
					})
					continue
				}
				next = append(next, extended)
			}
		}
		frontier = next
	}

	return nil
}

// searchPairBasic accepts only document-entity-document paths through a
// non-candidate intermediate.
func (c *Client) searchPairBasic(fromID, toID string, candidateIDs map[string]struct{}, params ReasoningParams, out *pairSearchResult) error {
	if params.MaxHops < 2 {
		return nil
	}

	fromRelationships, err := c.graph.GetEntityRelationships(fromID, common.DirectionBoth)
	if err != nil {
		return err
	}
	toRelationships, err := c.graph.GetEntityRelationships(toID, common.DirectionBoth)
	if err != nil {
		return err
	}

	type toEdge struct {
		relationshipID string
		confidence     float64
	}
	toNeighbors := make(map[string]toEdge)
	for _, relationship := range toRelationships {
		neighborID := relationship.Other(toID)
		if _, seen := toNeighbors[neighborID]; seen {
			continue
		}
		toNeighbors[neighborID] = toEdge{relationshipID: relationship.ID, confidence: relationship.Confidence}
	}

	for _, relationship := range fromRelationships {
		if len(out.paths) >= pathsPerPairLimit {
			break
		}
		intermediateID := relationship.Other(fromID)
		back, shared := toNeighbors[intermediateID]
		if !shared || intermediateID == fromID || intermediateID == toID {
			continue
		}
		if _, isCandidate := candidateIDs[intermediateID]; isCandidate {
			out.events = append(out.events, TraceEvent{
				Kind:      TraceEventPathRejected,
				EntityIDs: []string{fromID, intermediateID, toID},
				Detail:    "shared entity is itself a candidate document",
			})
			continue
		}
		path := EvidencePath{
			EntityIDs:       []string{fromID, intermediateID, toID},
			RelationshipIDs: []string{relationship.ID, back.relationshipID},
			Confidence:      relationship.Confidence * back.confidence,
		}
		out.paths = append(out.paths, path)
		out.events = append(out.events, TraceEvent{
			Kind:            TraceEventPathAccepted,
			EntityIDs:       path.EntityIDs,
			RelationshipIDs: path.RelationshipIDs,
			Confidence:      path.Confidence,
			Hops:            2,
		})
	}

	return nil
}

// buildEvidencePath fills in the path confidence as the product of edge
// confidences.
func (c *Client) buildEvidencePath(branch partialPath) (EvidencePath, error) {
	confidence := 1.0
	for _, relationshipID := range branch.relationshipIDs {
		relationship, err := c.graph.GetRelationship(relationshipID)
		if err != nil {
			return EvidencePath{}, err
		}
		confidence *= relationship.Confidence
	}
	return EvidencePath{
		EntityIDs:       branch.entityIDs,
		RelationshipIDs: branch.relationshipIDs,
		Confidence:      confidence,
	}, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
