// Package device derives a coarse device label from the User-Agent header.
// The label feeds audit events and session logging; it is descriptive, not
// a fingerprint, and carries no tracking value.
package device

import (
	"fmt"
	"net/http"

	"github.com/mssola/useragent"

	"garrison/pkg/requestcontext"
)

// Middleware parses the User-Agent and stores a device summary in the
// context. Runs after metadata.ClientMetadata so the raw UA is available.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := Summarize(r.Header.Get("User-Agent"))
		ctx := requestcontext.WithDevice(r.Context(), label)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Summarize reduces a User-Agent string to "browser/os" form. Unknown or
// empty agents come back as "unknown".
func Summarize(rawUA string) string {
	if rawUA == "" {
		return "unknown"
	}
	ua := useragent.New(rawUA)
	name, _ := ua.Browser()
	os := ua.OS()
	if name == "" && os == "" {
		return "unknown"
	}
	if ua.Bot() {
		return fmt.Sprintf("bot/%s", name)
	}
	kind := "desktop"
	if ua.Mobile() {
		kind = "mobile"
	}
	return fmt.Sprintf("%s/%s/%s", kind, name, os)
}
