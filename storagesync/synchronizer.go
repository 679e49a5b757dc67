// Package storagesync advances a local storage image in lockstep
// with the finalized state of a remote chain.
//
// Header batches are validated for sequencing and parent-hash continuity
// before their finality proof is delegated to a [BlockValidator].
// The state roots of accepted headers are queued,
// and a block's storage changes are committed only when
// the root they produce equals the root at the front of the queue.
//
// Two topologies are supported.
// A [*SolochainSynchronizer] tracks a single finalizing chain.
// A [*ParachainSynchronizer] tracks a relaychain only to anchor proofs
// of the parachain's own headers, and feeds parachain blocks.
//
// Synchronizers are not safe for concurrent use;
// callers must serialize all calls.
package storagesync

import (
	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gtrie"
)

// BlockValidator verifies finality and storage proofs.
// [*gfinality.Validator] is the production implementation.
type BlockValidator interface {
	// SubmitFinalizedHeaders verifies that header is finalized on the given bridge,
	// that ancestry (highest first) connects it to the previously finalized header,
	// and applies change atomically with acceptance.
	SubmitFinalizedHeaders(
		bridgeID uint64,
		header gchain.Header,
		ancestry []gchain.Header,
		finalityProof []byte,
		change *gchain.AuthoritySetChange,
	) error

	// ValidateStorageProof verifies that every item
	// is included in the state committed to by root.
	ValidateStorageProof(root gchain.Hash, proof gchain.StorageProof, items []gchain.KeyValue) error
}

// Storage is the storage image that fed blocks are applied to.
// [*gtrie.Storage] is the production implementation.
type Storage interface {
	// CalcRootIfChanges computes the root after the given changes without mutating anything.
	CalcRootIfChanges(main []gchain.KeyValue, child []gchain.ChildStorageChanges) (gchain.Hash, *gtrie.Transaction)

	// ApplyChanges commits a transaction from the preceding CalcRootIfChanges call.
	ApplyChanges(root gchain.Hash, tx *gtrie.Transaction)
}

// Counters is a snapshot of synchronizer progress.
type Counters struct {
	NextHeaderNumber gchain.BlockNumber

	// Zero on a solochain synchronizer.
	NextParaHeaderNumber gchain.BlockNumber

	NextBlockNumber gchain.BlockNumber
}

// StorageSynchronizer is the operation set shared by both topologies.
type StorageSynchronizer interface {
	// Counters reports progress without side effects.
	Counters() Counters

	// SyncHeader validates and accepts a batch of relaychain (or solochain) headers,
	// returning the number of the last header.
	SyncHeader(headers []gchain.HeaderToSync, change *gchain.AuthoritySetChange) (gchain.BlockNumber, error)

	// SyncParachainHeader validates and accepts a batch of parachain headers
	// whose last header is proven under storageKey
	// in the most recently synced relaychain state.
	SyncParachainHeader(headers []gchain.Header, proof gchain.StorageProof, storageKey []byte) (gchain.BlockNumber, error)

	// FeedBlock applies the block's storage changes
	// if they produce the next queued state root.
	FeedBlock(block *gchain.BlockHeaderWithChanges, storage Storage) error

	// QueuedStateRoots returns a copy of the roots awaiting blocks, oldest first.
	QueuedStateRoots() []gchain.Hash
}

var (
	_ StorageSynchronizer = (*SolochainSynchronizer)(nil)
	_ StorageSynchronizer = (*ParachainSynchronizer)(nil)

	_ Storage = (*gtrie.Storage)(nil)
)
