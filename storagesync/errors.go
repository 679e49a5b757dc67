package storagesync

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/glight/gchain"
)

// ErrEmptyRequest is returned when a header batch has no headers.
var ErrEmptyRequest = errors.New("empty request")

// ErrMissingJustification is returned when the last header of a relaychain batch
// does not carry a justification.
var ErrMissingJustification = errors.New("missing justification on last header")

// ErrRelaychainHeaderNotSynced is returned by a parachain header sync
// that is not preceded by a successful relaychain header sync.
var ErrRelaychainHeaderNotSynced = errors.New("relaychain header not synced")

// ErrNoStateRoot is returned when feeding a block
// with no validated state root queued for it.
var ErrNoStateRoot = errors.New("no state root queued for block")

// ErrChainModeMismatch is returned by a parachain header sync
// on a synchronizer that tracks a solochain.
var ErrChainModeMismatch = errors.New("parachain header sync on solochain synchronizer")

// HeaderValidateFailedError wraps the validator's rejection
// of a header batch's finality proof or ancestry.
type HeaderValidateFailedError struct {
	Err error
}

func (e HeaderValidateFailedError) Error() string {
	return fmt.Sprintf("header validation failed: %v", e.Err)
}

func (e HeaderValidateFailedError) Unwrap() error {
	return e.Err
}

// StorageProofFailedError wraps the validator's rejection of a storage proof.
type StorageProofFailedError struct {
	Err error
}

func (e StorageProofFailedError) Error() string {
	return fmt.Sprintf("storage proof failed: %v", e.Err)
}

func (e StorageProofFailedError) Unwrap() error {
	return e.Err
}

// HeaderHashMismatchError indicates a break in the parent-hash chain of a batch.
type HeaderHashMismatchError struct {
	// Number of the header whose parent hash is wrong.
	Number gchain.BlockNumber

	// Want is the hash of the previous header in the batch;
	// Got is the parent hash the header declared.
	Want, Got gchain.Hash
}

func (e HeaderHashMismatchError) Error() string {
	return fmt.Sprintf(
		"header %d parent hash mismatch: expected %s, got %s",
		e.Number, e.Want, e.Got,
	)
}

// BlockNumberMismatchError indicates a batch or block
// that does not start at the next expected number.
type BlockNumberMismatchError struct {
	Want, Got gchain.BlockNumber
}

func (e BlockNumberMismatchError) Error() string {
	return fmt.Sprintf("block number mismatch: expected %d, got %d", e.Want, e.Got)
}

// BlockNumberOverflowError is returned for a header or block at [gchain.MaxBlockNumber],
// after which the next expected number could not be represented.
type BlockNumberOverflowError struct {
	Number gchain.BlockNumber
}

func (e BlockNumberOverflowError) Error() string {
	return fmt.Sprintf("block number %d leaves no next block number", e.Number)
}

// StateRootMismatchError indicates a block whose declared changes
// do not produce the state root validated for it.
type StateRootMismatchError struct {
	Block            gchain.BlockNumber
	Expected, Actual gchain.Hash
}

func (e StateRootMismatchError) Error() string {
	return fmt.Sprintf(
		"state root mismatch at block %d: expected %s, actual %s",
		e.Block, e.Expected, e.Actual,
	)
}
