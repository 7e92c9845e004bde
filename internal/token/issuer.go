// Package token mints the credential pair handed to clients when a
// verification flow completes. Access tokens are signed JWTs; refresh
// tokens are opaque random strings recorded server-side.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"garrison/internal/registration/models"
	id "garrison/pkg/domain"
	dErrors "garrison/pkg/domain-errors"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

const (
	// AccessTokenTTL bounds access token validity; ExpiresIn in responses
	// is this value in seconds.
	AccessTokenTTL = time.Hour

	// RefreshTokenTTL bounds how long a refresh token record is honored.
	// Refresh mechanics themselves live with the session backend.
	RefreshTokenTTL = 30 * 24 * time.Hour
)

// RefreshTokenRecord ties an opaque refresh token to a user.
type RefreshTokenRecord struct {
	Token     string
	UserID    id.UserID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RefreshStore persists refresh token records.
type RefreshStore interface {
	Create(ctx context.Context, record *RefreshTokenRecord) error
	Find(ctx context.Context, token string) (*RefreshTokenRecord, error)
}

// Issuer mints AuthSessions. Issue is called exactly once per completed
// flow: at the phone-verified transition for vendor registration, or after
// login verification.
type Issuer struct {
	jwt       *JWTService
	refresh   RefreshStore
	accessTTL time.Duration
}

// NewIssuer constructs an Issuer.
func NewIssuer(jwt *JWTService, refresh RefreshStore) *Issuer {
	return &Issuer{jwt: jwt, refresh: refresh, accessTTL: AccessTokenTTL}
}

// Issue mints the credential pair for the account.
func (i *Issuer) Issue(ctx context.Context, record *models.Record) (*models.AuthSession, error) {
	accessToken, err := i.jwt.GenerateAccessToken(
		uuid.UUID(record.ID), record.Email, string(record.UserType), i.accessTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign access token")
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate refresh token")
	}

	now := requestcontext.Now(ctx)
	if err := i.refresh.Create(ctx, &RefreshTokenRecord{
		Token:     refreshToken,
		UserID:    record.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(RefreshTokenTTL),
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store refresh token")
	}

	return &models.AuthSession{
		User: models.UserInfo{
			ID:       record.ID.String(),
			Name:     record.Name,
			Email:    record.Email,
			UserType: string(record.UserType),
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(i.accessTTL.Seconds()),
	}, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ref_" + hex.EncodeToString(buf), nil
}

// InMemoryRefreshStore stores refresh token records in memory for tests/dev.
type InMemoryRefreshStore struct {
	mu     sync.RWMutex
	tokens map[string]*RefreshTokenRecord
}

// NewInMemoryRefreshStore constructs an empty in-memory refresh store.
func NewInMemoryRefreshStore() *InMemoryRefreshStore {
	return &InMemoryRefreshStore{tokens: make(map[string]*RefreshTokenRecord)}
}

func (s *InMemoryRefreshStore) Create(_ context.Context, record *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[record.Token] = record
	return nil
}

func (s *InMemoryRefreshStore) Find(_ context.Context, token string) (*RefreshTokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.tokens[token]; ok {
		return record, nil
	}
	return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
}
