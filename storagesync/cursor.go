package storagesync

import (
	"github.com/gordian-engine/glight/gchain"
)

// BlockSyncState is the sequencing cursor shared by both topologies.
// It tracks the next expected header and block numbers for one chain.
//
// All checks of an operation happen before its single mutating step,
// so a failed operation leaves the cursor, the queue and storage unchanged.
type BlockSyncState struct {
	validator  BlockValidator
	mainBridge uint64

	headerNumberNext gchain.BlockNumber
	blockNumberNext  gchain.BlockNumber
}

func NewBlockSyncState(
	validator BlockValidator,
	mainBridge uint64,
	headerNumberNext, blockNumberNext gchain.BlockNumber,
) BlockSyncState {
	return BlockSyncState{
		validator:        validator,
		mainBridge:       mainBridge,
		headerNumberNext: headerNumberNext,
		blockNumberNext:  blockNumberNext,
	}
}

func (s *BlockSyncState) HeaderNumberNext() gchain.BlockNumber {
	return s.headerNumberNext
}

func (s *BlockSyncState) BlockNumberNext() gchain.BlockNumber {
	return s.blockNumberNext
}

// SyncHeader validates headers and submits the last one,
// with its justification and the rest of the batch as ancestry, to the validator.
// On acceptance every header's state root is pushed to stateRoots in order.
func (s *BlockSyncState) SyncHeader(
	headers []gchain.HeaderToSync,
	change *gchain.AuthoritySetChange,
	stateRoots *StateRootQueue,
) (gchain.BlockNumber, error) {
	if len(headers) == 0 {
		return 0, ErrEmptyRequest
	}

	if first := headers[0].Header.Number; first != s.headerNumberNext {
		return 0, BlockNumberMismatchError{Want: s.headerNumberNext, Got: first}
	}

	last := headers[len(headers)-1]
	if last.Justification == nil {
		return 0, ErrMissingJustification
	}

	plain := make([]gchain.Header, len(headers))
	for i, h := range headers {
		plain[i] = h.Header
	}
	if err := checkHeaderChain(plain); err != nil {
		return 0, err
	}

	if last.Header.Number == gchain.MaxBlockNumber {
		return 0, BlockNumberOverflowError{Number: last.Header.Number}
	}

	ancestry := make([]gchain.Header, 0, len(plain)-1)
	for i := len(plain) - 2; i >= 0; i-- {
		ancestry = append(ancestry, plain[i])
	}

	if err := s.validator.SubmitFinalizedHeaders(
		s.mainBridge, last.Header, ancestry, last.Justification, change,
	); err != nil {
		return 0, HeaderValidateFailedError{Err: err}
	}

	for _, h := range plain {
		stateRoots.Push(h.StateRoot)
	}
	s.headerNumberNext = last.Header.Number + 1
	return last.Header.Number, nil
}

// FeedBlock commits block's storage changes to storage
// if they produce the root at the front of stateRoots,
// and then consumes that root.
func (s *BlockSyncState) FeedBlock(
	block *gchain.BlockHeaderWithChanges,
	stateRoots *StateRootQueue,
	storage Storage,
) error {
	n := block.BlockHeader.Number
	if n != s.blockNumberNext {
		return BlockNumberMismatchError{Want: s.blockNumberNext, Got: n}
	}
	if n == gchain.MaxBlockNumber {
		return BlockNumberOverflowError{Number: n}
	}

	expected, ok := stateRoots.Front()
	if !ok {
		return ErrNoStateRoot
	}

	actual, tx := storage.CalcRootIfChanges(
		block.StorageChanges.MainStorageChanges,
		block.StorageChanges.ChildStorageChanges,
	)
	if actual != expected {
		return StateRootMismatchError{Block: n, Expected: expected, Actual: actual}
	}

	storage.ApplyChanges(actual, tx)
	s.blockNumberNext++
	_, _ = stateRoots.PopFront()
	return nil
}

// checkHeaderChain reports the first header whose parent hash
// is not the hash of the header before it.
func checkHeaderChain(headers []gchain.Header) error {
	for i := 1; i < len(headers); i++ {
		want := headers[i-1].Hash()
		if got := headers[i].ParentHash; got != want {
			return HeaderHashMismatchError{Number: headers[i].Number, Want: want, Got: got}
		}
	}
	return nil
}
