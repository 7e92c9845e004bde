package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "garrison/pkg/domain-errors"
)

func TestStartRequest(t *testing.T) {
	t.Run("normalizes casing and defaults to vendor", func(t *testing.T) {
		req := &StartRequest{
			Name:     "  Ada Vendor ",
			Email:    " Ada@Example.COM ",
			Username: " ADA ",
		}
		req.Normalize()
		require.NoError(t, req.Validate())

		assert.Equal(t, "Ada Vendor", req.Name)
		assert.Equal(t, "ada@example.com", req.Email)
		assert.Equal(t, "ada", req.Username)
		assert.Equal(t, string(UserTypeVendor), req.UserType)
	})

	t.Run("buyer requires a password of at least 8 characters", func(t *testing.T) {
		req := &StartRequest{Name: "Bob", Email: "bob@example.com", Username: "bob", UserType: "buyer", Password: "short"}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		req.Password = "long enough"
		assert.NoError(t, req.Validate())
	})

	t.Run("rejects unknown user type", func(t *testing.T) {
		req := &StartRequest{Name: "X", Email: "x@example.com", Username: "x", UserType: "admin"}
		req.Normalize()
		assert.Error(t, req.Validate())
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		req := &StartRequest{Name: "X", Email: "not-an-email", Username: "x"}
		req.Normalize()
		assert.Error(t, req.Validate())
	})
}

func TestSetPhoneRequest(t *testing.T) {
	t.Run("strips separators and builds the canonical number", func(t *testing.T) {
		req := &SetPhoneRequest{
			UserID:      "11111111-1111-1111-1111-111111111111",
			Phone:       " (555) 010-02.00 ",
			CountryCode: "+1",
		}
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, "+15550100200", req.CanonicalPhone())
	})

	t.Run("rejects letters and out-of-range lengths", func(t *testing.T) {
		for _, phone := range []string{"abc", "1234", "1234567890123"} {
			req := &SetPhoneRequest{UserID: "u", Phone: phone, CountryCode: "1"}
			req.Normalize()
			assert.Error(t, req.Validate(), "phone %q should be rejected", phone)
		}
	})

	t.Run("rejects bad country codes", func(t *testing.T) {
		for _, cc := range []string{"", "abcd", "1234"} {
			req := &SetPhoneRequest{UserID: "u", Phone: "5550100200", CountryCode: cc}
			req.Normalize()
			assert.Error(t, req.Validate(), "country code %q should be rejected", cc)
		}
	})
}

func TestCodeValidation(t *testing.T) {
	base := func(code string) *VerifyEmailRequest {
		return &VerifyEmailRequest{
			UserID: "11111111-1111-1111-1111-111111111111",
			Email:  "a@example.com",
			Code:   code,
		}
	}

	t.Run("accepts exactly six digits", func(t *testing.T) {
		req := base(" 123456 ")
		req.Normalize()
		assert.NoError(t, req.Validate())
	})

	for _, code := range []string{"", "12345", "1234567", "12345a"} {
		t.Run("rejects "+code, func(t *testing.T) {
			req := base(code)
			req.Normalize()
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}
