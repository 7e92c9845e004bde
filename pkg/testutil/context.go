package testutil

import (
	"context"
	"net/http"
	"time"

	id "garrison/pkg/domain"
	"garrison/pkg/requestcontext"
)

// WithUserID adds a user ID to the request context.
// This simulates what the session middleware would do for authenticated
// requests. If the userID is not a valid UUID, it will not be added.
func WithUserID(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithRequestTime pins the request-scoped clock so time-sensitive
// assertions are deterministic.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// Context returns a context with a pinned clock and request ID, the state
// service unit tests expect without running the middleware chain.
func Context(now time.Time, requestID string) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	return requestcontext.WithRequestID(ctx, requestID)
}
