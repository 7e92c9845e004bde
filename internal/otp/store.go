package otp

import (
	"context"
	"time"
)

// CodeStore persists verification codes.
//
// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound (wrapped) when no code exists for the address
// - Return ErrExpired / ErrAlreadyUsed (wrapped) from Consume on those facts
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures
type CodeStore interface {
	// Put stores a freshly issued code, replacing any previous code for the
	// same (address, channel) pair. The replaced code can never verify again.
	Put(ctx context.Context, code *VerificationCode) error

	// Find returns the current code record for the address, consumed or not.
	Find(ctx context.Context, address string, channel Channel) (*VerificationCode, error)

	// Consume validates the submitted code against the active record and
	// marks it consumed atomically. Consumption is the only success path and
	// happens at most once per issued code.
	Consume(ctx context.Context, address string, channel Channel, submitted string, now time.Time) (*VerificationCode, error)

	// DeleteExpired removes codes whose expiry has passed as of now.
	// Returns the number of deleted records.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
