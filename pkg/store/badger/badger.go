// Package badger provides a BadgerDB-backed BlockStore for embedded
// persistent graphs.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/endomorphosis/kgraph/pkg/codec"
	"github.com/endomorphosis/kgraph/pkg/common"
	"github.com/endomorphosis/kgraph/pkg/logger"
)

const keyPrefix = "blk:"

// BlockStore persists content-addressed blocks in a BadgerDB instance.
// Safe for concurrent use; the underlying *badger.DB handles its own
// locking.
type BlockStore struct {
	db      *badger.DB
	ownedDB bool
}

// Params configures a BlockStore. Either Path or InMemory must be set;
// alternatively pass an already open DB to share it with other components.
type Params struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	DB         *badger.DB
}

// NewBlockStore opens (or adopts) a BadgerDB and wraps it as a BlockStore.
// When the store opened the DB itself, Close releases it.
func NewBlockStore(params Params) (*BlockStore, error) {
	if params.DB != nil {
		return &BlockStore{db: params.DB}, nil
	}
	if !params.InMemory && params.Path == "" {
		return nil, fmt.Errorf("%w: badger path is required for persistent block stores", common.ErrInvalidArgument)
	}

	var opts badger.Options
	if params.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(params.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create block store directory %s: %w", params.Path, err)
		}
		opts = badger.DefaultOptions(params.Path)
	}
	opts = opts.WithSyncWrites(params.SyncWrites)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger block store: %w", err)
	}

	logger.Debug("[Store] Opened badger block store", "path", params.Path, "in_memory", params.InMemory)

	return &BlockStore{db: db, ownedDB: true}, nil
}

// Store persists data under its content address. Blocks are immutable, so
// rewriting an existing key with identical bytes is harmless and keeps the
// write path a single transaction.
func (s *BlockStore) Store(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	address := codec.Address(data)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+address), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to store block %s: %w", address, err)
	}
	return address, nil
}

// Retrieve returns the block stored under address.
func (s *BlockStore) Retrieve(ctx context.Context, address string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + address))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: block %s", common.ErrNotFound, address)
		}
		return nil, fmt.Errorf("failed to retrieve block %s: %w", address, err)
	}
	return data, nil
}

// Close closes the underlying DB if this store opened it.
func (s *BlockStore) Close() error {
	if !s.ownedDB {
		return nil
	}
	return s.db.Close()
}
