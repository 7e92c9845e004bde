package store

import (
	"context"

	"garrison/internal/registration/models"
	id "garrison/pkg/domain"
)

// Store persists registration records.
//
// Error Contract:
// - Return ErrNotFound (wrapped) when the record does not exist
// - Return ErrConflict (wrapped) when a unique field is already taken
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
type Store interface {
	Create(ctx context.Context, record *models.Record) error
	FindByID(ctx context.Context, userID id.UserID) (*models.Record, error)
	FindByEmail(ctx context.Context, email string) (*models.Record, error)

	// SetPhone stores the canonical phone number and resets PhoneVerified,
	// since a changed number invalidates any earlier phone verification.
	SetPhone(ctx context.Context, userID id.UserID, phone string) (*models.Record, error)

	// MarkEmailVerified and MarkPhoneVerified are the only writers of the
	// verified flags. Services call them exactly once per successful verify.
	MarkEmailVerified(ctx context.Context, userID id.UserID) (*models.Record, error)
	MarkPhoneVerified(ctx context.Context, userID id.UserID) (*models.Record, error)

	// Complete transitions the record out of the pending state.
	Complete(ctx context.Context, userID id.UserID) (*models.Record, error)
}
