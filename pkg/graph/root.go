package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/endomorphosis/kgraph/pkg/codec"
)

// Manifest builds the current root manifest: sorted (id, address) refs for
// every entity and relationship plus the type indices with sorted ID
// lists. Two graphs holding the same logical content produce identical
// manifests regardless of insertion order.
func (g *Graph) Manifest() *codec.Manifest {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.manifestLocked()
}

func (g *Graph) manifestLocked() *codec.Manifest {
	return &codec.Manifest{
		Name:              g.name,
		Entities:          sortedRefs(g.entityAddrs),
		Relationships:     sortedRefs(g.relationshipAddrs),
		EntityTypes:       sortedTypeIndex(g.entitiesByType),
		RelationshipTypes: sortedTypeIndex(g.relationshipsByType),
	}
}

// recomputeRootLocked re-derives the root address from the manifest and
// persists the manifest block. Caller holds the write lock (or has
// exclusive access during construction).
func (g *Graph) recomputeRootLocked(ctx context.Context) error {
	data, err := codec.EncodeManifest(g.manifestLocked())
	if err != nil {
		return err
	}
	address, err := g.store.Store(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to persist root manifest: %w", err)
	}
	g.rootAddress = address
	return nil
}

func sortedRefs(addrs map[string]string) []codec.Ref {
	refs := make([]codec.Ref, 0, len(addrs))
	for id, address := range addrs {
		refs = append(refs, codec.Ref{ID: id, Address: address})
	}
	sort.Slice(refs, func(a, b int) bool { return refs[a].ID < refs[b].ID })
	return refs
}

func sortedTypeIndex(index map[string][]string) map[string][]string {
	out := make(map[string][]string, len(index))
	for t, ids := range index {
		sorted := make([]string, len(ids))
		copy(sorted, ids)
		sort.Strings(sorted)
		out[t] = sorted
	}
	return out
}
