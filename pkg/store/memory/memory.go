// Package memory provides an in-memory BlockStore for tests and fully
// embedded graphs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/endomorphosis/kgraph/pkg/codec"
	"github.com/endomorphosis/kgraph/pkg/common"
)

// BlockStore keeps blocks in a map keyed by content address. Safe for
// concurrent use.
type BlockStore struct {
	mu     sync.RWMutex
	blocks map[string][]byte
}

func NewBlockStore() *BlockStore {
	return &BlockStore{
		blocks: make(map[string][]byte),
	}
}

// Store persists data under its content address. Idempotent.
func (s *BlockStore) Store(_ context.Context, data []byte) (string, error) {
	address := codec.Address(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[address]; !ok {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.blocks[address] = buf
	}
	return address, nil
}

// Retrieve returns a copy of the block stored under address.
func (s *BlockStore) Retrieve(_ context.Context, address string) ([]byte, error) {
	s.mu.RLock()
	data, ok := s.blocks[address]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: block %s", common.ErrNotFound, address)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

// Len returns the number of distinct blocks held.
func (s *BlockStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
