package gmemstore

import (
	"context"
	"sync"

	"github.com/gordian-engine/glight/gstore"
)

type ProgressStore struct {
	mu sync.Mutex

	saved bool
	c     gstore.Counters
}

func NewProgressStore() *ProgressStore {
	return new(ProgressStore)
}

func (s *ProgressStore) SaveCounters(_ context.Context, c gstore.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.c = c
	s.saved = true
	return nil
}

func (s *ProgressStore) LoadCounters(_ context.Context) (gstore.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.saved {
		return gstore.Counters{}, gstore.ErrStoreUninitialized
	}
	return s.c, nil
}
