// Package models holds the registration domain records and the request and
// response shapes for the OTP flow endpoints. Requests carry their own
// Normalize/Validate so transports and services share one definition of a
// well-formed input.
package models

import (
	"net/mail"
	"strings"
	"time"

	id "garrison/pkg/domain"
	dErrors "garrison/pkg/domain-errors"
)

// UserType distinguishes the two registration flows. Vendors verify email
// and phone; buyers register with email and password and verify email only.
type UserType string

const (
	UserTypeVendor UserType = "vendor"
	UserTypeBuyer  UserType = "buyer"
)

// Status tracks a registration record's lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

// Record is the server-side registration state. The server is the sole
// authority on the verified flags; whatever the client caches is advisory
// and reconciled against this record on every resumption.
type Record struct {
	ID            id.UserID
	Name          string
	Email         string
	Username      string
	UserType      UserType
	PasswordHash  string
	Phone         string
	EmailVerified bool
	PhoneVerified bool
	Status        Status
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// Pending reports whether this record represents an in-flight registration.
func (r *Record) Pending() bool { return r.Status == StatusPending }

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

// StartRequest begins or resumes a registration.
type StartRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	UserType string `json:"userType"`
	// Password is set for buyer registrations only.
	Password string `json:"password,omitempty"`
}

func (r *StartRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Username = strings.ToLower(strings.TrimSpace(r.Username))
	r.UserType = strings.ToLower(strings.TrimSpace(r.UserType))
	if r.UserType == "" {
		r.UserType = string(UserTypeVendor)
	}
}

func (r *StartRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if r.Username == "" {
		return dErrors.New(dErrors.CodeValidation, "username is required")
	}
	switch UserType(r.UserType) {
	case UserTypeVendor:
	case UserTypeBuyer:
		if len(r.Password) < 8 {
			return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
		}
	default:
		return dErrors.New(dErrors.CodeValidation, "unknown user type")
	}
	return nil
}

// VerifyEmailRequest submits the emailed code.
type VerifyEmailRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Code   string `json:"code"`
}

func (r *VerifyEmailRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Code = strings.TrimSpace(r.Code)
}

func (r *VerifyEmailRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validateCode(r.Code)
}

// ResendEmailRequest asks for a fresh email code.
type ResendEmailRequest struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func (r *ResendEmailRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *ResendEmailRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	return validateEmail(r.Email)
}

// SetPhoneRequest adds a phone number and triggers the phone code.
type SetPhoneRequest struct {
	UserID      string `json:"userId"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
}

func (r *SetPhoneRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Phone = stripPhoneSeparators(r.Phone)
	r.CountryCode = strings.TrimPrefix(stripPhoneSeparators(r.CountryCode), "+")
}

func (r *SetPhoneRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if !allDigits(r.CountryCode) || r.CountryCode == "" || len(r.CountryCode) > 3 {
		return dErrors.New(dErrors.CodeValidation, "invalid country code")
	}
	if !allDigits(r.Phone) || len(r.Phone) < 5 || len(r.Phone) > 12 {
		return dErrors.New(dErrors.CodeValidation, "invalid phone number")
	}
	return nil
}

// CanonicalPhone returns the international form stored and verified against.
func (r *SetPhoneRequest) CanonicalPhone() string {
	return "+" + r.CountryCode + r.Phone
}

// VerifyPhoneRequest submits the SMS code.
type VerifyPhoneRequest struct {
	UserID string `json:"userId"`
	Phone  string `json:"phone"`
	Code   string `json:"code"`
}

func (r *VerifyPhoneRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
	r.Phone = stripPhoneSeparators(r.Phone)
	r.Code = strings.TrimSpace(r.Code)
}

func (r *VerifyPhoneRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	return validateCode(r.Code)
}

// ResendPhoneRequest asks for a fresh SMS code.
type ResendPhoneRequest struct {
	UserID string `json:"userId"`
}

func (r *ResendPhoneRequest) Normalize() {
	r.UserID = strings.TrimSpace(r.UserID)
}

func (r *ResendPhoneRequest) Validate() error {
	if r.UserID == "" {
		return dErrors.New(dErrors.CodeValidation, "userId is required")
	}
	return nil
}

// LoginStartRequest begins an OTP login for an existing account.
type LoginStartRequest struct {
	Email string `json:"email"`
}

func (r *LoginStartRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginStartRequest) Validate() error {
	return validateEmail(r.Email)
}

// LoginVerifyRequest completes an OTP login.
type LoginVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (r *LoginVerifyRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Code = strings.TrimSpace(r.Code)
}

func (r *LoginVerifyRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return validateCode(r.Code)
}

// -----------------------------------------------------------------------------
// Results
// -----------------------------------------------------------------------------

// StartResult is the tagged resumption answer. ContinueToPhone is the one
// routing decision clients must obey: when true the email steps are already
// done server-side and no email code was issued.
type StartResult struct {
	UserID          string `json:"userId"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ContinueToPhone bool   `json:"continueToPhone,omitempty"`
	Resuming        bool   `json:"resuming,omitempty"`
	DebugOtp        string `json:"debugOtp,omitempty"`
}

// IssueResult carries the optional debug echo from a code issuance.
type IssueResult struct {
	DebugOtp string `json:"debugOtp,omitempty"`
}

// UserInfo is the public shape of a completed account.
type UserInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	UserType string `json:"userType"`
}

// AuthSession is the credential pair minted on completion. The refresh
// token is opaque and never displayed; ExpiresIn tells the client when the
// access token needs refreshing.
type AuthSession struct {
	User         UserInfo `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	ExpiresIn    int      `json:"expiresIn"`
}

// -----------------------------------------------------------------------------
// Field validation helpers
// -----------------------------------------------------------------------------

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(email) > 255 {
		return dErrors.New(dErrors.CodeValidation, "email too long")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return dErrors.New(dErrors.CodeValidation, "invalid email")
	}
	return nil
}

func validateCode(code string) error {
	if len(code) != 6 || !allDigits(code) {
		return dErrors.New(dErrors.CodeValidation, "code must be 6 digits")
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func stripPhoneSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
