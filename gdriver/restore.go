package gdriver

import (
	"context"
	"fmt"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gstore"
	"github.com/gordian-engine/glight/gtrie"
)

// StoredRootMismatchError is returned by [LoadStorage]
// when the pairs in a state store do not produce the root recorded alongside them.
type StoredRootMismatchError struct {
	Number          gchain.BlockNumber
	Stored, Rebuilt gchain.Hash
}

func (e StoredRootMismatchError) Error() string {
	return fmt.Sprintf(
		"state stored at block %d has root %s but its pairs produce %s",
		e.Number, e.Stored, e.Rebuilt,
	)
}

// LoadStorage rebuilds the storage image saved in s,
// returning it with the number of the last block applied to it.
func LoadStorage(ctx context.Context, s gstore.StateStore) (*gtrie.Storage, gchain.BlockNumber, error) {
	n, root, pairs, err := s.LoadState(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load state: %w", err)
	}

	storage, err := gstore.NewStorageFromPairs(pairs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to rebuild storage at block %d: %w", n, err)
	}

	if got := storage.Root(); got != root {
		return nil, 0, StoredRootMismatchError{Number: n, Stored: root, Rebuilt: got}
	}

	return storage, n, nil
}
