// Package graph implements the content-addressed knowledge graph: entity
// and relationship registries with decoded-object caches, per-type
// indices, an adjacency index, and a root address recomputed after every
// mutation.
//
// A Graph is single-writer, multi-reader: mutations serialize behind a
// write lock, reads share a read lock. The blob store and vector index are
// shared collaborators referenced but not owned.
package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/endomorphosis/kgraph/pkg/codec"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/logger"
	"github.com/endomorphosis/kgraph/pkg/store"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

// Graph is an append-only knowledge graph. All blocks (entities,
// relationships, the root manifest) are persisted through the block store
// under their content addresses; the decoded objects are cached in the
// registries for O(1) reads.
type Graph struct {
	mu      sync.RWMutex
	name    string
	store   store.BlockStore
	vectors vector.Index

	entities          map[string]*common.Entity
	entityAddrs       map[string]string
	relationships     map[string]*common.Relationship
	relationshipAddrs map[string]string

	entitiesByType      map[string][]string
	relationshipsByType map[string][]string

	adjacency  *adjacencyIndex
	vectorRefs map[string]string

	rootAddress string
}

// NewGraphParams configures a new empty graph. Vectors is optional; a
// graph without a vector index rejects entities that carry embeddings.
type NewGraphParams struct {
	Name    string
	Store   store.BlockStore
	Vectors vector.Index
}

// NewGraph creates an empty graph and persists its initial root manifest.
func NewGraph(ctx context.Context, params NewGraphParams) (*Graph, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: graph name is required", common.ErrInvalidArgument)
	}
	if params.Store == nil {
		return nil, fmt.Errorf("%w: block store is required", common.ErrInvalidArgument)
	}

	g := &Graph{
		name:                params.Name,
		store:               params.Store,
		vectors:             params.Vectors,
		entities:            make(map[string]*common.Entity),
		entityAddrs:         make(map[string]string),
		relationships:       make(map[string]*common.Relationship),
		relationshipAddrs:   make(map[string]string),
		entitiesByType:      make(map[string][]string),
		relationshipsByType: make(map[string][]string),
		adjacency:           newAdjacencyIndex(),
		vectorRefs:          make(map[string]string),
	}

	if err := g.recomputeRootLocked(ctx); err != nil {
		return nil, err
	}

	return g, nil
}

// AddEntityParams describes an entity to add. ID is generated when empty.
// Vector, when set, is registered with the graph's vector index and the
// returned ref becomes part of the entity's content.
type AddEntityParams struct {
	ID         string
	Type       string
	Name       string
	Properties map[string]common.Value
	Confidence float64
	SourceText string
	Vector     []float32
}

// AddEntity validates, persists, and indexes a new entity, then recomputes
// the root address. Validation failures leave the graph untouched.
func (g *Graph) AddEntity(ctx context.Context, params AddEntityParams) (*common.Entity, error) {
	if params.Type == "" {
		return nil, fmt.Errorf("%w: entity type is required", common.ErrInvalidArgument)
	}
	if params.Confidence < 0 || params.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0, 1]", common.ErrInvalidArgument, params.Confidence)
	}
	if params.Vector != nil && g.vectors == nil {
		return nil, fmt.Errorf("%w: graph has no vector index", common.ErrInvalidArgument)
	}

	id := params.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate entity ID: %w", err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.entities[id]; exists {
		return nil, fmt.Errorf("%w: entity ID %s already registered", common.ErrInvalidArgument, id)
	}

	vectorRef := ""
	if params.Vector != nil {
		ref, err := g.vectors.Add(ctx, params.Vector, id)
		if err != nil {
			return nil, fmt.Errorf("failed to register entity vector: %w", err)
		}
		vectorRef = ref
	}

	entity := &common.Entity{
		ID:         id,
		Type:       params.Type,
		Name:       params.Name,
		Properties: params.Properties,
		Confidence: params.Confidence,
		SourceText: params.SourceText,
		VectorRef:  vectorRef,
	}

	data, err := codec.EncodeEntity(entity)
	if err != nil {
		return nil, err
	}
	address, err := g.store.Store(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to persist entity block: %w", err)
	}

	g.entities[id] = entity
	g.entityAddrs[id] = address
	g.entitiesByType[entity.Type] = append(g.entitiesByType[entity.Type], id)
	if vectorRef != "" {
		g.vectorRefs[vectorRef] = id
	}

	if err := g.recomputeRootLocked(ctx); err != nil {
		return nil, err
	}

	logger.Debug("[Graph] Added entity", "graph", g.name, "id", id, "type", entity.Type, "address", address)

	return entity, nil
}

// AddRelationshipParams describes a relationship to add. Both endpoints
// must already exist in the graph.
type AddRelationshipParams struct {
	ID         string
	Type       string
	SourceID   string
	TargetID   string
	Properties map[string]common.Value
	Confidence float64
	SourceText string
}

// AddRelationship validates, persists, and indexes a new relationship,
// updates the adjacency index, and recomputes the root address. A missing
// endpoint fails with ErrEntityNotFound and changes nothing.
func (g *Graph) AddRelationship(ctx context.Context, params AddRelationshipParams) (*common.Relationship, error) {
	if params.Type == "" {
		return nil, fmt.Errorf("%w: relationship type is required", common.ErrInvalidArgument)
	}
	if params.Confidence < 0 || params.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0, 1]", common.ErrInvalidArgument, params.Confidence)
	}

	id := params.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate relationship ID: %w", err)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.relationships[id]; exists {
		return nil, fmt.Errorf("%w: relationship ID %s already registered", common.ErrInvalidArgument, id)
	}
	if _, ok := g.entities[params.SourceID]; !ok {
		return nil, fmt.Errorf("%w: source %s", common.ErrEntityNotFound, params.SourceID)
	}
	if _, ok := g.entities[params.TargetID]; !ok {
		return nil, fmt.Errorf("%w: target %s", common.ErrEntityNotFound, params.TargetID)
	}

	relationship := &common.Relationship{
		ID:         id,
		Type:       params.Type,
		SourceID:   params.SourceID,
		TargetID:   params.TargetID,
		Properties: params.Properties,
		Confidence: params.Confidence,
		SourceText: params.SourceText,
	}

	data, err := codec.EncodeRelationship(relationship)
	if err != nil {
		return nil, err
	}
	address, err := g.store.Store(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("failed to persist relationship block: %w", err)
	}

	g.relationships[id] = relationship
	g.relationshipAddrs[id] = address
	g.relationshipsByType[relationship.Type] = append(g.relationshipsByType[relationship.Type], id)
	g.adjacency.add(relationship)

	if err := g.recomputeRootLocked(ctx); err != nil {
		return nil, err
	}

	logger.Debug("[Graph] Added relationship", "graph", g.name, "id", id, "type", relationship.Type)

	return relationship, nil
}

// GetEntity returns the entity registered under id.
func (g *Graph) GetEntity(id string) (*common.Entity, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entity, ok := g.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: entity %s", common.ErrNotFound, id)
	}
	return entity, nil
}

// GetRelationship returns the relationship registered under id.
func (g *Graph) GetRelationship(id string) (*common.Relationship, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	relationship, ok := g.relationships[id]
	if !ok {
		return nil, fmt.Errorf("%w: relationship %s", common.ErrNotFound, id)
	}
	return relationship, nil
}

// GetEntitiesByType returns a snapshot of all entities of the given type in
// addition order. An unknown type yields an empty slice.
func (g *Graph) GetEntitiesByType(entityType string) []*common.Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.entitiesByType[entityType]
	entities := make([]*common.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, g.entities[id])
	}
	return entities
}

// GetRelationshipsByType returns a snapshot of all relationships of the
// given type in addition order. An unknown type yields an empty slice.
func (g *Graph) GetRelationshipsByType(relationshipType string) []*common.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := g.relationshipsByType[relationshipType]
	relationships := make([]*common.Relationship, 0, len(ids))
	for _, id := range ids {
		relationships = append(relationships, g.relationships[id])
	}
	return relationships
}

// GetEntityRelationships returns the relationships attached to an entity in
// addition order. Direction both concatenates outgoing then incoming.
// Filter types that match nothing contribute nothing.
func (g *Graph) GetEntityRelationships(entityID string, direction common.Direction, relationshipTypes ...string) ([]*common.Relationship, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: direction %q", common.ErrInvalidArgument, direction)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.entities[entityID]; !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrEntityNotFound, entityID)
	}

	ids := g.adjacency.ids(entityID, direction, relationshipTypes)
	relationships := make([]*common.Relationship, 0, len(ids))
	for _, id := range ids {
		relationships = append(relationships, g.relationships[id])
	}
	return relationships, nil
}

// EntityByVectorRef resolves a vector-index ref back to its owning entity.
func (g *Graph) EntityByVectorRef(ref string) (*common.Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.vectorRefs[ref]
	if !ok {
		return nil, false
	}
	return g.entities[id], true
}

// HasEntity reports whether id is registered.
func (g *Graph) HasEntity(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.entities[id]
	return ok
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// EntityCount returns the number of registered entities.
func (g *Graph) EntityCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities)
}

// RelationshipCount returns the number of registered relationships.
func (g *Graph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.relationships)
}

// RootAddress returns the current root address.
func (g *Graph) RootAddress() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rootAddress
}

// EntityIDs returns all entity IDs sorted.
func (g *Graph) EntityIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.entities)
}

// RelationshipIDs returns all relationship IDs sorted.
func (g *Graph) RelationshipIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.relationships)
}

// Store returns the shared block store backing this graph.
func (g *Graph) Store() store.BlockStore { return g.store }

// Vectors returns the shared vector index, or nil.
func (g *Graph) Vectors() vector.Index { return g.vectors }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
