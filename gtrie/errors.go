package gtrie

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/glight/internal/glog"
)

// ErrKeyNotFound is returned by [*Storage.Prove]
// when asked to prove a key absent from main storage.
var ErrKeyNotFound = errors.New("key not found")

// ProofMissingKeyError indicates that a proof contains no node
// for an item the caller asked to verify.
type ProofMissingKeyError struct {
	Key []byte
}

func (e ProofMissingKeyError) Error() string {
	return fmt.Sprintf("proof has no node for key %x", e.Key)
}

// ProofValueMismatchError indicates that a proof node exists for the key
// but proves a different value than the caller expected.
type ProofValueMismatchError struct {
	Key []byte

	Want, Got glog.Hex
}

func (e ProofValueMismatchError) Error() string {
	return fmt.Sprintf("proof for key %x has value %s, expected %s", e.Key, e.Got, e.Want)
}

// ProofRootMismatchError indicates that the proof for a key
// does not lead to the expected root.
type ProofRootMismatchError struct {
	Key []byte
}

func (e ProofRootMismatchError) Error() string {
	return fmt.Sprintf("proof for key %x does not match state root", e.Key)
}

// ProofDecodeError indicates a malformed proof node.
type ProofDecodeError struct {
	Index int
	Err   error
}

func (e ProofDecodeError) Error() string {
	return fmt.Sprintf("failed to decode proof node %d: %v", e.Index, e.Err)
}

func (e ProofDecodeError) Unwrap() error {
	return e.Err
}
