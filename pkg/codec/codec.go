// Package codec implements the canonical encoding and content addressing
// for graph blocks. The canonical form of an entity or relationship is
// deterministic JSON: struct fields in a fixed order, property map keys
// sorted by the encoder. The logical ID is never part of the encoding, so
// byte-identical content always yields the same address regardless of the
// ID it was registered under.
package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/endomorphosis/kgraph/pkg/common"
)

type entityContent struct {
	Confidence float64                 `json:"confidence"`
	EntityType string                  `json:"entity_type"`
	Name       string                  `json:"name"`
	Properties map[string]common.Value `json:"properties"`
	SourceText string                  `json:"source_text"`
	VectorRef  string                  `json:"vector_ref"`
}

type relationshipContent struct {
	Confidence       float64                 `json:"confidence"`
	Properties       map[string]common.Value `json:"properties"`
	RelationshipType string                  `json:"relationship_type"`
	SourceID         string                  `json:"source_id"`
	SourceText       string                  `json:"source_text"`
	TargetID         string                  `json:"target_id"`
}

// Address computes the content address of a block: lowercase hex SHA-256
// over the raw bytes.
func Address(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EncodeEntity returns the canonical encoding of an entity.
func EncodeEntity(e *common.Entity) ([]byte, error) {
	props := e.Properties
	if props == nil {
		props = map[string]common.Value{}
	}
	data, err := json.Marshal(entityContent{
		Confidence: e.Confidence,
		EntityType: e.Type,
		Name:       e.Name,
		Properties: props,
		SourceText: e.SourceText,
		VectorRef:  e.VectorRef,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity: %w", err)
	}
	return data, nil
}

// DecodeEntity parses a canonical entity encoding. The logical ID is not
// part of the encoding and is attached from the caller's registry.
func DecodeEntity(data []byte, id string) (*common.Entity, error) {
	var content entityContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to decode entity block: %w", err)
	}
	props := content.Properties
	if len(props) == 0 {
		props = nil
	}
	return &common.Entity{
		ID:         id,
		Type:       content.EntityType,
		Name:       content.Name,
		Properties: props,
		Confidence: content.Confidence,
		SourceText: content.SourceText,
		VectorRef:  content.VectorRef,
	}, nil
}

// EncodeRelationship returns the canonical encoding of a relationship.
func EncodeRelationship(r *common.Relationship) ([]byte, error) {
	props := r.Properties
	if props == nil {
		props = map[string]common.Value{}
	}
	data, err := json.Marshal(relationshipContent{
		Confidence:       r.Confidence,
		Properties:       props,
		RelationshipType: r.Type,
		SourceID:         r.SourceID,
		SourceText:       r.SourceText,
		TargetID:         r.TargetID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode relationship: %w", err)
	}
	return data, nil
}

// DecodeRelationship parses a canonical relationship encoding.
func DecodeRelationship(data []byte, id string) (*common.Relationship, error) {
	var content relationshipContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to decode relationship block: %w", err)
	}
	props := content.Properties
	if len(props) == 0 {
		props = nil
	}
	return &common.Relationship{
		ID:         id,
		Type:       content.RelationshipType,
		SourceID:   content.SourceID,
		TargetID:   content.TargetID,
		Properties: props,
		Confidence: content.Confidence,
		SourceText: content.SourceText,
	}, nil
}

// Ref pairs a logical ID with the content address it resolves to.
type Ref struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Manifest is the root block of a graph: the full sorted (id, address)
// sets for entities and relationships plus the type indices, with every
// list sorted so the encoding is independent of insertion order. Its
// content address is the graph's root address.
type Manifest struct {
	Name              string              `json:"name"`
	Entities          []Ref               `json:"entities"`
	Relationships     []Ref               `json:"relationships"`
	EntityTypes       map[string][]string `json:"entity_types"`
	RelationshipTypes map[string][]string `json:"relationship_types"`
}

// EncodeManifest returns the canonical encoding of a root manifest. The
// caller must pass refs and type-index ID lists already sorted.
func EncodeManifest(m *Manifest) ([]byte, error) {
	if m.Entities == nil {
		m.Entities = []Ref{}
	}
	if m.Relationships == nil {
		m.Relationships = []Ref{}
	}
	if m.EntityTypes == nil {
		m.EntityTypes = map[string][]string{}
	}
	if m.RelationshipTypes == nil {
		m.RelationshipTypes = map[string][]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// DecodeManifest parses a root manifest block.
func DecodeManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest block: %w", err)
	}
	return &m, nil
}
