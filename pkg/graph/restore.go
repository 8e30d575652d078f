package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/endomorphosis/kgraph/pkg/codec"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/store"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

// RestoreParams carries the decoded content of an imported graph. The
// archive codec verifies block integrity before calling Restore; Restore
// verifies referential integrity and that the recomputed root matches the
// claimed one.
type RestoreParams struct {
	Store         store.BlockStore
	Vectors       vector.Index
	Manifest      *codec.Manifest
	ExpectedRoot  string
	Entities      []*common.Entity
	Relationships []*common.Relationship
}

// Restore rebuilds a graph from decoded blocks. Indices are rebuilt in
// sorted-ID order; the original insertion order is not serialized, and the
// root address is insertion-order independent, so the recomputed root must
// equal the expected one. Nothing is installed on failure.
func Restore(ctx context.Context, params RestoreParams) (*Graph, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("%w: block store is required", common.ErrInvalidArgument)
	}
	if params.Manifest == nil || params.Manifest.Name == "" {
		return nil, fmt.Errorf("%w: manifest with graph name is required", common.ErrInvalidArgument)
	}

	g := &Graph{
		name:                params.Manifest.Name,
		store:               params.Store,
		vectors:             params.Vectors,
		entities:            make(map[string]*common.Entity, len(params.Entities)),
		entityAddrs:         make(map[string]string, len(params.Entities)),
		relationships:       make(map[string]*common.Relationship, len(params.Relationships)),
		relationshipAddrs:   make(map[string]string, len(params.Relationships)),
		entitiesByType:      make(map[string][]string),
		relationshipsByType: make(map[string][]string),
		adjacency:           newAdjacencyIndex(),
		vectorRefs:          make(map[string]string),
	}

	entityAddrs := make(map[string]string, len(params.Manifest.Entities))
	for _, ref := range params.Manifest.Entities {
		entityAddrs[ref.ID] = ref.Address
	}
	relationshipAddrs := make(map[string]string, len(params.Manifest.Relationships))
	for _, ref := range params.Manifest.Relationships {
		relationshipAddrs[ref.ID] = ref.Address
	}

	entities := make([]*common.Entity, len(params.Entities))
	copy(entities, params.Entities)
	sort.Slice(entities, func(a, b int) bool { return entities[a].ID < entities[b].ID })

	for _, entity := range entities {
		address, ok := entityAddrs[entity.ID]
		if !ok {
			return nil, fmt.Errorf("%w: entity %s not listed in manifest", common.ErrCorruptArchive, entity.ID)
		}
		if _, dup := g.entities[entity.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate entity %s", common.ErrCorruptArchive, entity.ID)
		}
		g.entities[entity.ID] = entity
		g.entityAddrs[entity.ID] = address
		g.entitiesByType[entity.Type] = append(g.entitiesByType[entity.Type], entity.ID)
		if entity.VectorRef != "" {
			g.vectorRefs[entity.VectorRef] = entity.ID
		}
	}
	if len(g.entities) != len(entityAddrs) {
		return nil, fmt.Errorf("%w: manifest lists %d entities, archive carries %d", common.ErrCorruptArchive, len(entityAddrs), len(g.entities))
	}

	relationships := make([]*common.Relationship, len(params.Relationships))
	copy(relationships, params.Relationships)
	sort.Slice(relationships, func(a, b int) bool { return relationships[a].ID < relationships[b].ID })

	for _, relationship := range relationships {
		address, ok := relationshipAddrs[relationship.ID]
		if !ok {
			return nil, fmt.Errorf("%w: relationship %s not listed in manifest", common.ErrCorruptArchive, relationship.ID)
		}
		if _, dup := g.relationships[relationship.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate relationship %s", common.ErrCorruptArchive, relationship.ID)
		}
		if _, ok := g.entities[relationship.SourceID]; !ok {
			return nil, fmt.Errorf("%w: relationship %s references missing source %s", common.ErrCorruptArchive, relationship.ID, relationship.SourceID)
		}
		if _, ok := g.entities[relationship.TargetID]; !ok {
			return nil, fmt.Errorf("%w: relationship %s references missing target %s", common.ErrCorruptArchive, relationship.ID, relationship.TargetID)
		}
		g.relationships[relationship.ID] = relationship
		g.relationshipAddrs[relationship.ID] = address
		g.relationshipsByType[relationship.Type] = append(g.relationshipsByType[relationship.Type], relationship.ID)
		g.adjacency.add(relationship)
	}
	if len(g.relationships) != len(relationshipAddrs) {
		return nil, fmt.Errorf("%w: manifest lists %d relationships, archive carries %d", common.ErrCorruptArchive, len(relationshipAddrs), len(g.relationships))
	}

	// Compare the recomputed root before persisting the manifest block, so
	// a mismatched import writes nothing to the shared store.
	data, err := codec.EncodeManifest(g.manifestLocked())
	if err != nil {
		return nil, err
	}
	recomputed := codec.Address(data)
	if params.ExpectedRoot != "" && recomputed != params.ExpectedRoot {
		return nil, fmt.Errorf("%w: recomputed root %s does not match claimed root %s", common.ErrCorruptArchive, recomputed, params.ExpectedRoot)
	}
	if _, err := g.store.Store(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to persist root manifest: %w", err)
	}
	g.rootAddress = recomputed

	return g, nil
}
