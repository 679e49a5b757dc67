package storagesync

import (
	"fmt"
	"log/slog"

	"github.com/gordian-engine/glight/gchain"
)

// ParachainSynchronizer tracks a parachain anchored to a relaychain.
//
// Relaychain headers are synced only to obtain a trusted state root,
// which is then used once to verify the inclusion of the parachain's head.
// Parachain blocks are fed against the parachain headers' state roots.
type ParachainSynchronizer struct {
	log *slog.Logger

	// Relaychain header cursor.
	// Its block number tracks the parachain blocks fed.
	sync BlockSyncState

	// Set by a successful relaychain header sync
	// and cleared by the next successful parachain header sync.
	lastRelaychainStateRoot *gchain.Hash

	paraHeaderNumberNext gchain.BlockNumber
	paraStateRoots       StateRootQueue
}

func NewParachainSynchronizer(
	log *slog.Logger,
	validator BlockValidator,
	mainBridge uint64,
	headerNumberNext, paraHeaderNumberNext, blockNumberNext gchain.BlockNumber,
) *ParachainSynchronizer {
	return &ParachainSynchronizer{
		log:                  log,
		sync:                 NewBlockSyncState(validator, mainBridge, headerNumberNext, blockNumberNext),
		paraHeaderNumberNext: paraHeaderNumberNext,
	}
}

func (s *ParachainSynchronizer) Counters() Counters {
	return Counters{
		NextHeaderNumber:     s.sync.headerNumberNext,
		NextParaHeaderNumber: s.paraHeaderNumberNext,
		NextBlockNumber:      s.sync.blockNumberNext,
	}
}

func (s *ParachainSynchronizer) SyncHeader(
	headers []gchain.HeaderToSync, change *gchain.AuthoritySetChange,
) (gchain.BlockNumber, error) {
	// Only the last relaychain state root matters.
	var roots StateRootQueue
	last, err := s.sync.SyncHeader(headers, change, &roots)
	if err != nil {
		return 0, err
	}

	root, ok := roots.PopBack()
	if !ok {
		panic(fmt.Errorf("BUG: no state root queued after syncing relaychain headers up to %d", last))
	}
	s.lastRelaychainStateRoot = &root

	s.log.Debug(
		"Synced relaychain headers",
		"first", headers[0].Header.Number, "last", last,
		"authority_set_change", change != nil,
		"state_root", root,
	)
	return last, nil
}

func (s *ParachainSynchronizer) SyncParachainHeader(
	headers []gchain.Header, proof gchain.StorageProof, storageKey []byte,
) (gchain.BlockNumber, error) {
	if len(headers) == 0 {
		return 0, ErrEmptyRequest
	}

	if first := headers[0].Number; first != s.paraHeaderNumberNext {
		return 0, BlockNumberMismatchError{Want: s.paraHeaderNumberNext, Got: first}
	}

	if s.lastRelaychainStateRoot == nil {
		return 0, ErrRelaychainHeaderNotSynced
	}
	root := *s.lastRelaychainStateRoot

	last := headers[len(headers)-1]
	if last.Number == gchain.MaxBlockNumber {
		return 0, BlockNumberOverflowError{Number: last.Number}
	}
	headData, err := last.EncodeHeadData()
	if err != nil {
		return 0, StorageProofFailedError{Err: err}
	}
	if err := s.sync.validator.ValidateStorageProof(
		root, proof, []gchain.KeyValue{{Key: storageKey, Value: headData}},
	); err != nil {
		return 0, StorageProofFailedError{Err: err}
	}

	if err := checkHeaderChain(headers); err != nil {
		return 0, err
	}

	for _, h := range headers {
		s.paraStateRoots.Push(h.StateRoot)
	}
	s.lastRelaychainStateRoot = nil
	s.paraHeaderNumberNext = last.Number + 1

	s.log.Debug(
		"Synced parachain headers",
		"first", headers[0].Number, "last", last.Number,
		"relaychain_state_root", root,
		"queued_roots", s.paraStateRoots.Len(),
	)
	return last.Number, nil
}

func (s *ParachainSynchronizer) FeedBlock(block *gchain.BlockHeaderWithChanges, storage Storage) error {
	if err := s.sync.FeedBlock(block, &s.paraStateRoots, storage); err != nil {
		return err
	}

	s.log.Debug("Fed parachain block", "number", block.BlockHeader.Number, "queued_roots", s.paraStateRoots.Len())
	return nil
}

func (s *ParachainSynchronizer) QueuedStateRoots() []gchain.Hash {
	return s.paraStateRoots.Roots()
}

// RelaychainStateRoot returns the cached relaychain state root
// awaiting a parachain header sync, if any.
func (s *ParachainSynchronizer) RelaychainStateRoot() (gchain.Hash, bool) {
	if s.lastRelaychainStateRoot == nil {
		return gchain.Hash{}, false
	}
	return *s.lastRelaychainStateRoot, true
}
