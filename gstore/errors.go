package gstore

import (
	"errors"
	"fmt"

	"github.com/gordian-engine/glight/gchain"
)

// ErrStoreUninitialized is returned when loading from a store
// that has never been written to.
var ErrStoreUninitialized = errors.New("uninitialized")

// BlockNumberGapError is returned from [StateStore.SaveStateChanges]
// when the saved block does not directly follow the last saved block.
type BlockNumberGapError struct {
	Want, Got gchain.BlockNumber
}

func (e BlockNumberGapError) Error() string {
	return fmt.Sprintf("cannot save state for block %d; next block must be %d", e.Got, e.Want)
}

// IsUninitialized reports whether e indicates an empty store.
// Callers starting fresh treat that as the zero state rather than a failure.
func IsUninitialized(e error) bool {
	return errors.Is(e, ErrStoreUninitialized)
}
