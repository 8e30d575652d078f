package car

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/graph"
	memorystore "github.com/endomorphosis/kgraph/pkg/store/memory"
)

func exportFixture(t *testing.T) (*graph.Graph, string) {
	t.Helper()
	ctx := context.Background()

	g, err := graph.NewGraph(ctx, graph.NewGraphParams{
		Name:  "fixture",
		Store: memorystore.NewBlockStore(),
	})
	if err != nil {
		t.Fatalf("failed to create graph: %v", err)
	}

	for _, id := range []string{"alice", "bob"} {
		if _, err := g.AddEntity(ctx, graph.AddEntityParams{
			ID:         id,
			Type:       "person",
			Name:       id,
			Properties: map[string]common.Value{"tag": common.String(id)},
			Confidence: 0.9,
		}); err != nil {
			t.Fatalf("failed to add entity: %v", err)
		}
	}
	if _, err := g.AddRelationship(ctx, graph.AddRelationshipParams{
		ID:         "r1",
		Type:       "knows",
		SourceID:   "alice",
		TargetID:   "bob",
		Confidence: 0.8,
	}); err != nil {
		t.Fatalf("failed to add relationship: %v", err)
	}

	path := filepath.Join(t.TempDir(), "fixture.car.json")
	if err := Export(ctx, g, path); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	return g, path
}

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	original, path := exportFixture(t)

	imported, err := FromCAR(ctx, path, ImportParams{Store: memorystore.NewBlockStore()})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if imported.RootAddress() != original.RootAddress() {
		t.Fatalf("root changed across the archive boundary: %s vs %s", imported.RootAddress(), original.RootAddress())
	}
	if imported.Name() != "fixture" {
		t.Fatalf("expected name fixture, got %s", imported.Name())
	}
	if imported.EntityCount() != 2 || imported.RelationshipCount() != 1 {
		t.Fatalf("counts changed: %d entities, %d relationships", imported.EntityCount(), imported.RelationshipCount())
	}

	alice, err := imported.GetEntity("alice")
	if err != nil {
		t.Fatalf("imported entity missing: %v", err)
	}
	if !alice.Properties["tag"].Equal(common.String("alice")) {
		t.Fatalf("properties changed: %+v", alice.Properties)
	}

	edges, err := imported.GetEntityRelationships("alice", common.DirectionOutgoing)
	if err != nil {
		t.Fatalf("adjacency lookup failed: %v", err)
	}
	if len(edges) != 1 || edges[0].TargetID != "bob" {
		t.Fatalf("adjacency not rebuilt: %+v", edges)
	}
}

func TestExport_Deterministic(t *testing.T) {
	_, first := exportFixture(t)
	_, second := exportFixture(t)

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("identical graphs exported different archives")
	}
}

func TestImport_CorruptBlockRejected(t *testing.T) {
	ctx := context.Background()
	_, path := exportFixture(t)

	encoded, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var archive archiveFile
	if err := json.Unmarshal(encoded, &archive); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	archive.Blocks[0].Data[0] ^= 0xff
	tampered, err := json.Marshal(archive)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	target := memorystore.NewBlockStore()
	_, err = FromCAR(ctx, path, ImportParams{Store: target})
	if !errors.Is(err, common.ErrContentMismatch) {
		t.Fatalf("expected ErrContentMismatch, got %v", err)
	}
	if target.Len() != 0 {
		t.Fatalf("corrupt import leaked %d blocks into the store", target.Len())
	}
}

func TestImport_WrongRootRejected(t *testing.T) {
	ctx := context.Background()
	_, path := exportFixture(t)

	encoded, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var archive archiveFile
	if err := json.Unmarshal(encoded, &archive); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Point the archive at one of its entity blocks instead of the manifest.
	for _, block := range archive.Blocks {
		if block.Address != archive.Root {
			archive.Root = block.Address
			break
		}
	}
	tampered, err := json.Marshal(archive)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	target := memorystore.NewBlockStore()
	if _, err := FromCAR(ctx, path, ImportParams{Store: target}); !errors.Is(err, common.ErrCorruptArchive) {
		t.Fatalf("expected ErrCorruptArchive, got %v", err)
	}
	if target.Len() != 0 {
		t.Fatalf("rejected import leaked %d blocks into the store", target.Len())
	}
}

func TestImport_UnsupportedVersionRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.car.json")
	archive := archiveFile{Version: 99, Root: "whatever"}
	encoded, err := json.Marshal(archive)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, err = FromCAR(context.Background(), path, ImportParams{Store: memorystore.NewBlockStore()})
	if !errors.Is(err, common.ErrCorruptArchive) {
		t.Fatalf("expected ErrCorruptArchive, got %v", err)
	}
}

func TestFromCID_ResolvesFromStore(t *testing.T) {
	ctx := context.Background()
	original, _ := exportFixture(t)

	restored, err := FromCID(ctx, original.RootAddress(), ImportParams{Store: original.Store()})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if restored.RootAddress() != original.RootAddress() {
		t.Fatalf("root changed: %s vs %s", restored.RootAddress(), original.RootAddress())
	}
	if restored.EntityCount() != original.EntityCount() {
		t.Fatalf("entity count changed: %d vs %d", restored.EntityCount(), original.EntityCount())
	}
}

func TestFromCID_MissingRoot(t *testing.T) {
	_, err := FromCID(context.Background(), "0000000000000000000000000000000000000000000000000000000000000000", ImportParams{Store: memorystore.NewBlockStore()})
	if err == nil {
		t.Fatal("expected error for missing root block")
	}
}
