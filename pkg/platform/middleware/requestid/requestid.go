// Package requestid assigns every request an ID for log and audit
// correlation. An inbound X-Request-ID is trusted if present so IDs survive
// proxy hops; otherwise a fresh UUID is minted.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"garrison/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware stores the request ID in the context and echoes it on the
// response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), id)
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
