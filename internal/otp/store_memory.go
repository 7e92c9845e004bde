package otp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"garrison/pkg/platform/sentinel"
)

// InMemoryCodeStore stores verification codes in memory for tests/dev.
type InMemoryCodeStore struct {
	mu    sync.RWMutex
	codes map[codeKey]*VerificationCode
}

type codeKey struct {
	address string
	channel Channel
}

// NewInMemoryCodeStore constructs an empty in-memory code store.
func NewInMemoryCodeStore() *InMemoryCodeStore {
	return &InMemoryCodeStore{
		codes: make(map[codeKey]*VerificationCode),
	}
}

func (s *InMemoryCodeStore) Put(_ context.Context, code *VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[codeKey{code.Address, code.Channel}] = code
	return nil
}

func (s *InMemoryCodeStore) Find(_ context.Context, address string, channel Channel) (*VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if code, ok := s.codes[codeKey{address, channel}]; ok {
		return code, nil
	}
	return nil, fmt.Errorf("verification code not found: %w", sentinel.ErrNotFound)
}

// Consume marks the code consumed if the submission is valid. Validation
// failures already carry their sentinel from the domain method.
func (s *InMemoryCodeStore) Consume(_ context.Context, address string, channel Channel, submitted string, now time.Time) (*VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.codes[codeKey{address, channel}]
	if !ok {
		return nil, fmt.Errorf("verification code not found: %w", sentinel.ErrNotFound)
	}

	if err := record.ValidateForConsume(submitted, now); err != nil {
		return record, err
	}

	record.MarkConsumed(now)
	return record, nil
}

// DeleteExpired removes codes whose retention window has passed as of the
// given time. Recently expired codes stay so late submissions still get the
// expired answer. The time parameter is injected for testability.
func (s *InMemoryCodeStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-ExpiredCodeRetention)
	deleted := 0
	for key, record := range s.codes {
		if record.ExpiresAt.Before(cutoff) {
			delete(s.codes, key)
			deleted++
		}
	}
	return deleted, nil
}
