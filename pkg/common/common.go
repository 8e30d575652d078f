package common

// Entity represents a node in the knowledge graph. An entity can be an
// organization, person, document, or any other relevant concept. Entities
// are immutable once added: the graph is append-only and the content
// address of an entity never changes.
//
// VectorRef is an opaque handle into the external vector index, present
// only when the entity was registered with an embedding.
type Entity struct {
	ID         string           `json:"id"`
	Type       string           `json:"entity_type"`
	Name       string           `json:"name"`
	Properties map[string]Value `json:"properties,omitempty"`
	Confidence float64          `json:"confidence"`
	SourceText string           `json:"source_text,omitempty"`
	VectorRef  string           `json:"vector_ref,omitempty"`
}

// Relationship represents a directed edge between two entities. Both
// endpoints must already exist in the graph when the relationship is added.
// Self-loops and parallel edges of the same type are permitted and are
// distinguished by ID.
type Relationship struct {
	ID         string           `json:"id"`
	Type       string           `json:"relationship_type"`
	SourceID   string           `json:"source_id"`
	TargetID   string           `json:"target_id"`
	Properties map[string]Value `json:"properties,omitempty"`
	Confidence float64          `json:"confidence"`
	SourceText string           `json:"source_text,omitempty"`
}

// Direction selects which adjacency lists of an entity to follow.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Valid reports whether d is one of the three recognized directions.
func (d Direction) Valid() bool {
	switch d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// Other returns the endpoint of r opposite to entityID. For self-loops both
// endpoints are the same and that ID is returned.
func (r *Relationship) Other(entityID string) string {
	if r.SourceID == entityID {
		return r.TargetID
	}
	return r.SourceID
}
