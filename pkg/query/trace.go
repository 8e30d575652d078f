package query

import "sync"

type TraceEventKind string

const (
	TraceEventCandidateSelected TraceEventKind = "candidate_selected"
	TraceEventCandidateRejected TraceEventKind = "candidate_rejected"
	TraceEventSeedSelected      TraceEventKind = "seed_selected"
	TraceEventSeedRejected      TraceEventKind = "seed_rejected"
	TraceEventPathAccepted      TraceEventKind = "path_accepted"
	TraceEventPathRejected      TraceEventKind = "path_rejected"
	TraceEventScoreComputed     TraceEventKind = "score_computed"
	TraceEventCancelled         TraceEventKind = "cancelled"
)

// TraceEvent is an extensible event envelope for query tracing. Additive
// changes to this struct are backward compatible for implementers.
type TraceEvent struct {
	Kind TraceEventKind

	EntityID        string
	EntityIDs       []string
	RelationshipIDs []string

	Similarity float64
	Confidence float64
	Score      float64
	Hops       int

	Detail string
}

// Tracer is a sink for query tracing events.
//
// Implementers can forward events to logs, telemetry, or custom
// post-processing pipelines.
type Tracer interface {
	Record(event TraceEvent)
}

// MultiTracer fan-outs trace events to multiple tracers.
type MultiTracer []Tracer

func (m MultiTracer) Record(event TraceEvent) {
	for _, t := range m {
		if t == nil {
			continue
		}
		t.Record(event)
	}
}

func RecordCandidateSelected(t Tracer, entityID string, similarity float64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventCandidateSelected, EntityID: entityID, Similarity: similarity})
}

func RecordCandidateRejected(t Tracer, entityID string, similarity float64, detail string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventCandidateRejected, EntityID: entityID, Similarity: similarity, Detail: detail})
}

func RecordSeedSelected(t Tracer, entityID string, similarity float64) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventSeedSelected, EntityID: entityID, Similarity: similarity})
}

func RecordSeedRejected(t Tracer, entityID string, similarity float64, detail string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventSeedRejected, EntityID: entityID, Similarity: similarity, Detail: detail})
}

func RecordCancelled(t Tracer, detail string) {
	if t == nil {
		return
	}
	t.Record(TraceEvent{Kind: TraceEventCancelled, Detail: detail})
}

// CollectingTracer accumulates events in arrival order.
//
// CollectingTracer is safe for concurrent use, but callers that need a
// reproducible event order must record from a single goroutine.
type CollectingTracer struct {
	mu     sync.Mutex
	events []TraceEvent
}

func NewCollectingTracer() *CollectingTracer {
	return &CollectingTracer{}
}

func (t *CollectingTracer) Record(event TraceEvent) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

// Events returns a snapshot of the recorded events.
func (t *CollectingTracer) Events() []TraceEvent {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	events := make([]TraceEvent, len(t.events))
	copy(events, t.events)
	return events
}
