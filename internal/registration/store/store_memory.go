package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"garrison/internal/registration/models"
	id "garrison/pkg/domain"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// InMemoryStore stores registration records in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]*models.Record
	byEmail map[string]id.UserID
}

// NewInMemoryStore constructs an empty in-memory registration store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]*models.Record),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[record.Email]; taken {
		return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
	}

	clone := *record
	s.byID[record.ID] = &clone
	s.byEmail[record.Email] = record.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.byID[userID]; ok {
		clone := *record
		return &clone, nil
	}
	return nil, fmt.Errorf("registration record not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byEmail[email]; ok {
		clone := *s.byID[userID]
		return &clone, nil
	}
	return nil, fmt.Errorf("registration record not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) SetPhone(_ context.Context, userID id.UserID, phone string) (*models.Record, error) {
	return s.update(userID, func(record *models.Record) {
		record.Phone = phone
		record.PhoneVerified = false
	})
}

func (s *InMemoryStore) MarkEmailVerified(_ context.Context, userID id.UserID) (*models.Record, error) {
	return s.update(userID, func(record *models.Record) {
		record.EmailVerified = true
	})
}

func (s *InMemoryStore) MarkPhoneVerified(_ context.Context, userID id.UserID) (*models.Record, error) {
	return s.update(userID, func(record *models.Record) {
		record.PhoneVerified = true
	})
}

func (s *InMemoryStore) Complete(ctx context.Context, userID id.UserID) (*models.Record, error) {
	now := requestcontext.Now(ctx)
	return s.update(userID, func(record *models.Record) {
		record.Status = models.StatusComplete
		t := now
		record.CompletedAt = &t
	})
}

// DeleteStalePending removes pending records created before the cutoff.
// Abandoned registrations are garbage by disuse; this reclaims them.
func (s *InMemoryStore) DeleteStalePending(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for userID, record := range s.byID {
		if record.Status == models.StatusPending && record.CreatedAt.Before(cutoff) {
			delete(s.byID, userID)
			delete(s.byEmail, record.Email)
			deleted++
		}
	}
	return deleted, nil
}

func (s *InMemoryStore) update(userID id.UserID, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.byID[userID]
	if !ok {
		return nil, fmt.Errorf("registration record not found: %w", sentinel.ErrNotFound)
	}
	mutate(record)
	clone := *record
	return &clone, nil
}
