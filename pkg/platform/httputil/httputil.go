// Package httputil centralizes JSON encoding and domain error translation
// for HTTP handlers. Handlers never set statuses or build error envelopes
// themselves; they hand errors to WriteError and payloads to WriteJSON.
package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "garrison/pkg/domain-errors"
)

// statusForCode maps domain error codes to HTTP statuses.
func statusForCode(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeInvariantViolation:
		return http.StatusConflict
	case dErrors.CodeExpired:
		return http.StatusGone
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope shared by all endpoints.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError writes a domain error as a JSON envelope. Internal errors omit
// the description so infrastructure details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusForCode(code)

	body := errorBody{Error: string(code)}
	if status < http.StatusInternalServerError {
		body.ErrorDescription = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// IsInternal reports whether an error maps to a 5xx status. Handlers use it
// to pick the log level for rejected requests.
func IsInternal(err error) bool {
	return statusForCode(dErrors.CodeOf(err)) >= http.StatusInternalServerError
}

// WriteJSON writes a payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Validator is implemented by request DTOs that can check themselves after
// decoding. Normalize runs first so validation sees canonical input.
type Validator interface {
	Normalize()
	Validate() error
}

// validatorPtr constrains P to *T implementing Validator, so Normalize can
// mutate the decoded value in place.
type validatorPtr[T any] interface {
	*T
	Validator
}

// DecodeAndPrepare decodes a JSON request body into T, normalizes and
// validates it, and writes the error response itself on failure. The bool
// result tells the handler whether to continue.
func DecodeAndPrepare[T any, P validatorPtr[T]](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "request body decode failed",
			"request_id", requestID,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	p := P(&req)
	p.Normalize()
	if err := p.Validate(); err != nil {
		WriteError(w, err)
		return nil, false
	}

	return &req, true
}
