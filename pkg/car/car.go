// Package car implements the portable archive format: a self-contained
// JSON container of content-addressed blocks plus a designated root. An
// archive is a pure function of graph state, so repeated exports of an
// unchanged graph are byte-identical, and every block is re-verified
// against its claimed address on import.
package car

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/endomorphosis/kgraph/pkg/codec"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	"github.com/endomorphosis/kgraph/pkg/logger"
	"github.com/endomorphosis/kgraph/pkg/store"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

const formatVersion = 1

// verifyParallelism bounds concurrent block hashing on import.
const verifyParallelism = 8

type archiveBlock struct {
	Address string `json:"address"`
	Data    []byte `json:"data"`
}

type archiveFile struct {
	Version int            `json:"version"`
	Root    string         `json:"root"`
	Blocks  []archiveBlock `json:"blocks"`
}

// Export writes every reachable block of the graph (root manifest plus all
// entity and relationship blocks) to path.
func Export(ctx context.Context, g *graph.Graph, path string) error {
	return ExportRoot(ctx, g.Store(), g.RootAddress(), path)
}

// ExportRoot writes the block set reachable from root out of the given
// store to path. Blocks are sorted by address so the output depends only on
// graph content.
func ExportRoot(ctx context.Context, blocks store.BlockStore, root string, path string) error {
	if root == "" {
		return fmt.Errorf("%w: root address is required", common.ErrInvalidArgument)
	}

	rootData, err := blocks.Retrieve(ctx, root)
	if err != nil {
		return fmt.Errorf("failed to retrieve root block %s: %w", root, err)
	}
	manifest, err := codec.DecodeManifest(rootData)
	if err != nil {
		return err
	}

	collected := map[string][]byte{root: rootData}
	refs := make([]codec.Ref, 0, len(manifest.Entities)+len(manifest.Relationships))
	refs = append(refs, manifest.Entities...)
	refs = append(refs, manifest.Relationships...)
	for _, ref := range refs {
		if _, seen := collected[ref.Address]; seen {
			continue
		}
		data, err := blocks.Retrieve(ctx, ref.Address)
		if err != nil {
			return fmt.Errorf("failed to retrieve block %s for %s: %w", ref.Address, ref.ID, err)
		}
		collected[ref.Address] = data
	}

	archive := archiveFile{Version: formatVersion, Root: root}
	archive.Blocks = make([]archiveBlock, 0, len(collected))
	for address, data := range collected {
		archive.Blocks = append(archive.Blocks, archiveBlock{Address: address, Data: data})
	}
	sort.Slice(archive.Blocks, func(a, b int) bool { return archive.Blocks[a].Address < archive.Blocks[b].Address })

	encoded, err := json.Marshal(archive)
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	logger.Debug("[CAR] Exported archive", "path", path, "root", root, "blocks", len(archive.Blocks))

	return nil
}

// ImportParams supplies the collaborators for a rebuilt graph. Store is
// required and receives every verified block; Vectors is optional and only
// consulted by later queries, imported vector refs stay valid against it.
type ImportParams struct {
	Store   store.BlockStore
	Vectors vector.Index
}

// FromCAR reads an archive, verifies every block's recomputed address
// against its claimed address, and reconstructs the graph. Any mismatch or
// missing block aborts the whole import and leaves nothing installed.
func FromCAR(ctx context.Context, path string, params ImportParams) (*graph.Graph, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var archive archiveFile
	if err := json.Unmarshal(encoded, &archive); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
	}
	if archive.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported archive version %d", common.ErrCorruptArchive, archive.Version)
	}
	if archive.Root == "" {
		return nil, fmt.Errorf("%w: archive has no root address", common.ErrCorruptArchive)
	}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(verifyParallelism)
	for _, block := range archive.Blocks {
		group.Go(func() error {
			if recomputed := codec.Address(block.Data); recomputed != block.Address {
				return fmt.Errorf("%w: block claims %s but hashes to %s", common.ErrContentMismatch, block.Address, recomputed)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	blocks := make(map[string][]byte, len(archive.Blocks))
	for _, block := range archive.Blocks {
		blocks[block.Address] = block.Data
	}
	lookup := func(ctx context.Context, address string) ([]byte, error) {
		data, ok := blocks[address]
		if !ok {
			return nil, fmt.Errorf("%w: archive missing block %s", common.ErrCorruptArchive, address)
		}
		return data, nil
	}

	g, err := rebuild(ctx, archive.Root, lookup, params)
	if err != nil {
		return nil, err
	}

	// Persist the verified blocks only once the rebuild succeeded, so a
	// corrupt archive leaves the store untouched.
	for _, block := range archive.Blocks {
		if _, err := params.Store.Store(ctx, block.Data); err != nil {
			return nil, fmt.Errorf("failed to persist imported block %s: %w", block.Address, err)
		}
	}

	logger.Debug("[CAR] Imported archive", "path", path, "root", archive.Root, "blocks", len(archive.Blocks))

	return g, nil
}

// FromCID reconstructs a graph from blocks already present in the store,
// resolving them on demand by address starting at root. Every block is
// verified against the address it was requested under.
func FromCID(ctx context.Context, root string, params ImportParams) (*graph.Graph, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: root address is required", common.ErrInvalidArgument)
	}

	lookup := func(ctx context.Context, address string) ([]byte, error) {
		data, err := params.Store.Retrieve(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve block %s: %w", address, err)
		}
		if recomputed := codec.Address(data); recomputed != address {
			return nil, fmt.Errorf("%w: block claims %s but hashes to %s", common.ErrContentMismatch, address, recomputed)
		}
		return data, nil
	}

	return rebuild(ctx, root, lookup, params)
}

// rebuild decodes the manifest and every referenced block, then hands the
// decoded sets to graph.Restore, which re-verifies referential integrity
// and the recomputed root.
func rebuild(ctx context.Context, root string, lookup func(context.Context, string) ([]byte, error), params ImportParams) (*graph.Graph, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("%w: block store is required", common.ErrInvalidArgument)
	}

	rootData, err := lookup(ctx, root)
	if err != nil {
		return nil, err
	}
	manifest, err := codec.DecodeManifest(rootData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
	}
	if manifest.Name == "" {
		return nil, fmt.Errorf("%w: root block is not a graph manifest", common.ErrCorruptArchive)
	}

	entities := make([]*common.Entity, 0, len(manifest.Entities))
	for _, ref := range manifest.Entities {
		data, err := lookup(ctx, ref.Address)
		if err != nil {
			return nil, err
		}
		entity, err := codec.DecodeEntity(data, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
		}
		entities = append(entities, entity)
	}

	relationships := make([]*common.Relationship, 0, len(manifest.Relationships))
	for _, ref := range manifest.Relationships {
		data, err := lookup(ctx, ref.Address)
		if err != nil {
			return nil, err
		}
		relationship, err := codec.DecodeRelationship(data, ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrCorruptArchive, err)
		}
		relationships = append(relationships, relationship)
	}

	return graph.Restore(ctx, graph.RestoreParams{
		Store:         params.Store,
		Vectors:       params.Vectors,
		Manifest:      manifest,
		ExpectedRoot:  root,
		Entities:      entities,
		Relationships: relationships,
	})
}
