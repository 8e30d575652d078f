// Package store defines the blob-store contract the graph core persists
// its content-addressed blocks through. Implementations live in the
// subpackages: memory (tests, embedded use), badger (embedded persistent),
// s3 (shared object storage).
package store

import "context"

// BlockStore is an append-only content-addressed byte store. Store is
// idempotent: storing identical bytes twice returns the same address and
// leaves the store unchanged. Blocks are never mutated or deleted; the
// address of a block is the content address of its bytes.
type BlockStore interface {
	// Store persists data and returns its content address.
	Store(ctx context.Context, data []byte) (string, error)

	// Retrieve returns the block stored under address, or an error wrapping
	// common.ErrNotFound if no such block exists.
	Retrieve(ctx context.Context, address string) ([]byte, error)
}
