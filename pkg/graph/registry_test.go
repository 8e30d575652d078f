package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/endomorphosis/kgraph/pkg/common"
	memorystore "github.com/endomorphosis/kgraph/pkg/store/memory"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry(NewRegistryParams{Store: memorystore.NewBlockStore()})
	if err != nil {
		t.Fatalf("failed to create registry: %v", err)
	}
	return registry
}

func TestRegistry_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	created, err := registry.Create(ctx, "alpha")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := registry.Get("alpha")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != created {
		t.Fatal("expected the same graph instance")
	}

	if _, err := registry.Get("missing"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	if _, err := registry.Create(ctx, "alpha"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := registry.Create(ctx, "alpha"); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for duplicate name, got %v", err)
	}
}

func TestRegistry_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	first, err := registry.GetOrCreate(ctx, "alpha")
	if err != nil {
		t.Fatalf("get-or-create failed: %v", err)
	}
	second, err := registry.GetOrCreate(ctx, "alpha")
	if err != nil {
		t.Fatalf("get-or-create failed: %v", err)
	}
	if first != second {
		t.Fatal("expected the same graph instance on repeat")
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := registry.Create(ctx, name); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	names := registry.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestRegistry_InstallReplaces(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry(t)

	imported, err := NewGraph(ctx, NewGraphParams{Name: "alpha", Store: registry.Store()})
	if err != nil {
		t.Fatalf("failed to create graph: %v", err)
	}

	registry.Install(imported)

	got, err := registry.Get("alpha")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != imported {
		t.Fatal("install did not register the graph")
	}
}
