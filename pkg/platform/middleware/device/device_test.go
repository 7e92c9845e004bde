package device

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"garrison/pkg/requestcontext"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func TestSummarize(t *testing.T) {
	assert.Equal(t, "unknown", Summarize(""))
	assert.Equal(t, "desktop/Chrome/Windows 10", Summarize(chromeUA))

	mobile := Summarize("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	assert.Contains(t, mobile, "mobile/")
}

func TestMiddleware(t *testing.T) {
	var label string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label = requestcontext.Device(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", chromeUA)
	Middleware(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "desktop/Chrome/Windows 10", label)
}
