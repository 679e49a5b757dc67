package gmemstore

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/gordian-engine/glight/gchain"
	"github.com/gordian-engine/glight/gstore"
)

type StateStore struct {
	mu sync.Mutex

	initialized bool
	n           gchain.BlockNumber
	root        gchain.Hash

	// Keyed by child storage key, with the empty string for main storage.
	tries map[string]map[string][]byte
}

func NewStateStore() *StateStore {
	return &StateStore{
		tries: map[string]map[string][]byte{},
	}
}

func (s *StateStore) SaveStateChanges(
	_ context.Context,
	blockNumber gchain.BlockNumber,
	root gchain.Hash,
	changes gchain.StorageChanges,
) error {
	for _, cc := range changes.ChildStorageChanges {
		if len(cc.StorageKey) == 0 {
			return errors.New("child storage changes must have a non-empty storage key")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized && blockNumber != s.n+1 {
		return gstore.BlockNumberGapError{Want: s.n + 1, Got: blockNumber}
	}

	s.apply("", changes.MainStorageChanges)
	for _, cc := range changes.ChildStorageChanges {
		s.apply(string(cc.StorageKey), cc.Changes)
	}

	s.initialized = true
	s.n = blockNumber
	s.root = root
	return nil
}

func (s *StateStore) apply(trie string, kvs []gchain.KeyValue) {
	m := s.tries[trie]
	if m == nil {
		m = map[string][]byte{}
		s.tries[trie] = m
	}

	for _, kv := range kvs {
		if kv.Value == nil {
			delete(m, string(kv.Key))
			continue
		}
		m[string(kv.Key)] = bytes.Clone(kv.Value)
	}

	if len(m) == 0 {
		delete(s.tries, trie)
	}
}

func (s *StateStore) LoadStateRoot(_ context.Context) (gchain.BlockNumber, gchain.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, gchain.Hash{}, gstore.ErrStoreUninitialized
	}
	return s.n, s.root, nil
}

func (s *StateStore) LoadState(_ context.Context) (
	gchain.BlockNumber, gchain.Hash, []gstore.StatePair, error,
) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, gchain.Hash{}, nil, gstore.ErrStoreUninitialized
	}

	var pairs []gstore.StatePair
	for _, trie := range slices.Sorted(maps.Keys(s.tries)) {
		var childKey []byte
		if trie != "" {
			childKey = []byte(trie)
		}

		m := s.tries[trie]
		for _, k := range slices.Sorted(maps.Keys(m)) {
			pairs = append(pairs, gstore.StatePair{
				ChildKey: bytes.Clone(childKey),
				Key:      []byte(k),
				Value:    bytes.Clone(m[k]),
			})
		}
	}

	return s.n, s.root, pairs, nil
}
