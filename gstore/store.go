package gstore

import (
	"context"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gtrie"
)

// StatePair is a single persisted storage entry.
// A nil ChildKey means the entry belongs to main storage.
type StatePair struct {
	ChildKey []byte
	Key      []byte
	Value    []byte
}

// StateStore persists the storage image as a sequence of applied blocks.
type StateStore interface {
	// SaveStateChanges atomically applies the changes of blockNumber
	// and records root as the resulting state root.
	// A nil value in changes deletes the key.
	//
	// The first save may use any block number;
	// every later save must use the previous number plus one,
	// or the store returns [BlockNumberGapError] and is left unchanged.
	SaveStateChanges(
		ctx context.Context,
		blockNumber gchain.BlockNumber,
		root gchain.Hash,
		changes gchain.StorageChanges,
	) error

	// LoadState returns the last saved block number and root,
	// and every stored pair ordered by child key and then key
	// (main storage first).
	// It returns [ErrStoreUninitialized] before the first save.
	LoadState(ctx context.Context) (
		blockNumber gchain.BlockNumber,
		root gchain.Hash,
		pairs []StatePair,
		err error,
	)

	// LoadStateRoot returns the last saved block number and root
	// without reading any pairs.
	// It returns [ErrStoreUninitialized] before the first save.
	LoadStateRoot(ctx context.Context) (gchain.BlockNumber, gchain.Hash, error)
}

// Counters mirrors the synchronizer counters that must survive a restart.
type Counters struct {
	NextHeaderNumber     gchain.BlockNumber
	NextParaHeaderNumber gchain.BlockNumber
	NextBlockNumber      gchain.BlockNumber
}

// ProgressStore persists synchronizer counters.
type ProgressStore interface {
	SaveCounters(ctx context.Context, c Counters) error

	// LoadCounters returns [ErrStoreUninitialized] before the first save.
	LoadCounters(ctx context.Context) (Counters, error)
}

// NewStorageFromPairs rebuilds a storage image from the pairs
// returned by [StateStore.LoadState].
func NewStorageFromPairs(pairs []StatePair) (*gtrie.Storage, error) {
	var main []gchain.KeyValue
	var child []gchain.ChildStorageChanges
	for _, p := range pairs {
		kv := gchain.KeyValue{Key: p.Key, Value: p.Value}
		if p.ChildKey == nil {
			main = append(main, kv)
			continue
		}

		// Pairs are ordered by child key, so a new child only ever starts a new group.
		if n := len(child); n == 0 || string(child[n-1].StorageKey) != string(p.ChildKey) {
			child = append(child, gchain.ChildStorageChanges{StorageKey: p.ChildKey})
		}
		child[len(child)-1].Changes = append(child[len(child)-1].Changes, kv)
	}

	return gtrie.NewFromPairs(main, child)
}
