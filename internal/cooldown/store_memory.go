package cooldown

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps last-issuance timestamps in memory for tests/dev.
type InMemoryStore struct {
	mu   sync.RWMutex
	last map[pairKey]time.Time
}

type pairKey struct {
	address string
	channel string
}

// NewInMemoryStore constructs an empty in-memory cooldown store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{last: make(map[pairKey]time.Time)}
}

func (s *InMemoryStore) LastIssuance(_ context.Context, address, channel string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[pairKey{address, channel}]
	return t, ok, nil
}

func (s *InMemoryStore) RecordIssuance(_ context.Context, address, channel string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[pairKey{address, channel}] = at
	return nil
}
