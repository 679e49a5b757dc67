package gdriver

import (
	"fmt"

	"github.com/gordian-engine/glight/gchain"
)

// PersistError is returned when a block was applied to the storage image
// but saving its changes to the state store failed.
// The image is then ahead of the store;
// the owning process should stop and restore from the store.
type PersistError struct {
	Number gchain.BlockNumber
	Err    error
}

func (e PersistError) Error() string {
	return fmt.Sprintf("failed to persist state changes for block %d: %v", e.Number, e.Err)
}

func (e PersistError) Unwrap() error {
	return e.Err
}
