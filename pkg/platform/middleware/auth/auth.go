// Package auth guards routes that require a minted session. The OTP flow
// endpoints themselves are unauthenticated; this middleware covers the
// account surface behind them.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	id "garrison/pkg/domain"
	dErrors "garrison/pkg/domain-errors"
	"garrison/pkg/platform/httputil"
	"garrison/pkg/requestcontext"
)

// TokenValidator is the slice of the JWT service this middleware needs.
type TokenValidator interface {
	ExtractUserIDFromToken(tokenString string) (uuid.UUID, error)
}

// RequireSession rejects requests without a valid Bearer access token and
// stores the authenticated user ID in the context.
func RequireSession(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			raw, err := validator.ExtractUserIDFromToken(token)
			if err != nil {
				logger.WarnContext(ctx, "access token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid access token"))
				return
			}
			ctx = requestcontext.WithUserID(ctx, id.UserID(raw))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
