package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/store"
	"github.com/endomorphosis/kgraph/pkg/vector"
)

// Registry tracks named graphs sharing one block store and vector index.
// Graphs are independent; the registry only resolves names.
type Registry struct {
	mu      sync.RWMutex
	store   store.BlockStore
	vectors vector.Index
	graphs  map[string]*Graph
}

type NewRegistryParams struct {
	Store   store.BlockStore
	Vectors vector.Index
}

func NewRegistry(params NewRegistryParams) (*Registry, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("%w: block store is required", common.ErrInvalidArgument)
	}
	return &Registry{
		store:   params.Store,
		vectors: params.Vectors,
		graphs:  make(map[string]*Graph),
	}, nil
}

// Create adds a new empty graph under name.
func (r *Registry) Create(ctx context.Context, name string) (*Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.graphs[name]; exists {
		return nil, fmt.Errorf("%w: graph %s already exists", common.ErrInvalidArgument, name)
	}
	g, err := NewGraph(ctx, NewGraphParams{Name: name, Store: r.store, Vectors: r.vectors})
	if err != nil {
		return nil, err
	}
	r.graphs[name] = g
	return g, nil
}

// Get returns the graph registered under name.
func (r *Registry) Get(name string) (*Graph, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.graphs[name]
	if !ok {
		return nil, fmt.Errorf("%w: graph %s", common.ErrNotFound, name)
	}
	return g, nil
}

// GetOrCreate returns the graph registered under name, creating it when
// absent.
func (r *Registry) GetOrCreate(ctx context.Context, name string) (*Graph, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.graphs[name]; ok {
		return g, nil
	}
	g, err := NewGraph(ctx, NewGraphParams{Name: name, Store: r.store, Vectors: r.vectors})
	if err != nil {
		return nil, err
	}
	r.graphs[name] = g
	return g, nil
}

// Install registers an already built graph, replacing any previous graph
// with the same name. Used by archive import.
func (r *Registry) Install(g *Graph) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs[g.Name()] = g
}

// Names returns the registered graph names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.graphs)
}

// Store returns the shared block store.
func (r *Registry) Store() store.BlockStore { return r.store }

// Vectors returns the shared vector index, or nil.
func (r *Registry) Vectors() vector.Index { return r.vectors }
