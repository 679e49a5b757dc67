package gfinality

import (
	"fmt"

	"github.com/gordian-engine/glight/gchain"
)

// UnknownBridgeError is returned for operations on a bridge ID
// that was never returned by [*Validator.AddBridge].
type UnknownBridgeError struct {
	ID uint64
}

func (e UnknownBridgeError) Error() string {
	return fmt.Sprintf("unknown bridge %d", e.ID)
}

// StaleHeaderError indicates a submitted header
// that does not advance past the last finalized header.
type StaleHeaderError struct {
	Finalized, Got gchain.BlockNumber
}

func (e StaleHeaderError) Error() string {
	return fmt.Sprintf("header %d does not advance past finalized header %d", e.Got, e.Finalized)
}

// AncestryMismatchError indicates that the ancestry proof
// does not connect the submitted header to the last finalized header.
type AncestryMismatchError struct {
	// Number of the header whose parent could not be matched.
	Number gchain.BlockNumber

	Want, Got gchain.Hash
}

func (e AncestryMismatchError) Error() string {
	return fmt.Sprintf(
		"ancestry mismatch at header %d: parent hash %s, got %s",
		e.Number, e.Want, e.Got,
	)
}

// JustificationTargetError indicates a justification
// for a different header than the one submitted.
type JustificationTargetError struct {
	WantHash, GotHash     gchain.Hash
	WantNumber, GotNumber gchain.BlockNumber
}

func (e JustificationTargetError) Error() string {
	return fmt.Sprintf(
		"justification targets %s at %d, expected %s at %d",
		e.GotHash, e.GotNumber, e.WantHash, e.WantNumber,
	)
}

// InsufficientWeightError indicates a justification whose valid signatures
// do not reach a Byzantine majority of the authority set's weight.
type InsufficientWeightError struct {
	Have, Need uint64
}

func (e InsufficientWeightError) Error() string {
	return fmt.Sprintf("insufficient signing weight: have %d, need %d", e.Have, e.Need)
}

// InvalidSignatureError wraps [gcrypto.ErrInvalidSignature]
// with the index of the offending authority.
type InvalidSignatureError struct {
	AuthorityIdx int
	Err          error
}

func (e InvalidSignatureError) Error() string {
	return fmt.Sprintf("authority %d: %v", e.AuthorityIdx, e.Err)
}

func (e InvalidSignatureError) Unwrap() error {
	return e.Err
}

// AuthoritySetChangeError indicates a rejected authority-set change.
type AuthoritySetChangeError struct {
	Err error
}

func (e AuthoritySetChangeError) Error() string {
	return fmt.Sprintf("invalid authority set change: %v", e.Err)
}

func (e AuthoritySetChangeError) Unwrap() error {
	return e.Err
}
