package audit

import (
	"context"

	id "garrison/pkg/domain"
)

// Store persists audit events. Implementations must be safe for concurrent
// Append calls; the async publisher and request handlers race on it.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByUser(ctx context.Context, userID id.UserID) ([]Event, error)
}
