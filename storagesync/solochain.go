package storagesync

import (
	"log/slog"

	"github.com/gordian-engine/glight/gchain"
)

// SolochainSynchronizer tracks a single finalizing chain.
type SolochainSynchronizer struct {
	log *slog.Logger

	sync       BlockSyncState
	stateRoots StateRootQueue
}

func NewSolochainSynchronizer(
	log *slog.Logger,
	validator BlockValidator,
	mainBridge uint64,
	headerNumberNext, blockNumberNext gchain.BlockNumber,
) *SolochainSynchronizer {
	return &SolochainSynchronizer{
		log:  log,
		sync: NewBlockSyncState(validator, mainBridge, headerNumberNext, blockNumberNext),
	}
}

func (s *SolochainSynchronizer) Counters() Counters {
	return Counters{
		NextHeaderNumber:     s.sync.headerNumberNext,
		NextParaHeaderNumber: 0,
		NextBlockNumber:      s.sync.blockNumberNext,
	}
}

func (s *SolochainSynchronizer) SyncHeader(
	headers []gchain.HeaderToSync, change *gchain.AuthoritySetChange,
) (gchain.BlockNumber, error) {
	last, err := s.sync.SyncHeader(headers, change, &s.stateRoots)
	if err != nil {
		return 0, err
	}

	s.log.Debug(
		"Synced headers",
		"first", headers[0].Header.Number, "last", last,
		"authority_set_change", change != nil,
		"queued_roots", s.stateRoots.Len(),
	)
	return last, nil
}

// SyncParachainHeader always fails with [ErrChainModeMismatch].
func (s *SolochainSynchronizer) SyncParachainHeader(
	[]gchain.Header, gchain.StorageProof, []byte,
) (gchain.BlockNumber, error) {
	return 0, ErrChainModeMismatch
}

func (s *SolochainSynchronizer) FeedBlock(block *gchain.BlockHeaderWithChanges, storage Storage) error {
	if err := s.sync.FeedBlock(block, &s.stateRoots, storage); err != nil {
		return err
	}

	s.log.Debug("Fed block", "number", block.BlockHeader.Number, "queued_roots", s.stateRoots.Len())
	return nil
}

func (s *SolochainSynchronizer) QueuedStateRoots() []gchain.Hash {
	return s.stateRoots.Roots()
}
