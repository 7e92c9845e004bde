package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"garrison/pkg/platform/sentinel"
)

// Channel is the delivery medium a code travels through. Each (address,
// channel) pair has its own active code and its own resend cooldown.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPhone Channel = "phone"
)

const (
	// CodeLength is fixed; clients render exactly this many input boxes.
	CodeLength = 6

	// CodeTTL bounds how long an issued code stays verifiable.
	CodeTTL = 10 * time.Minute

	// ExpiredCodeRetention keeps an expired record around so a late
	// submission is answered with the distinct expired error rather than
	// not-found. Stores reclaim records only once this window has passed.
	ExpiredCodeRetention = time.Hour
)

// VerificationCode is a single-use numeric code bound to an address on a
// channel. At most one active (unconsumed, unexpired) code exists per
// (address, channel); issuing a new one replaces the previous.
type VerificationCode struct {
	Address    string
	Channel    Channel
	Code       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}

// NewVerificationCode generates a fresh code for the address with the
// standard TTL. Randomness comes from crypto/rand.
func NewVerificationCode(address string, channel Channel, now time.Time) (*VerificationCode, error) {
	code, err := GenerateCode(CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate verification code: %w", err)
	}
	return &VerificationCode{
		Address:   address,
		Channel:   channel,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(CodeTTL),
	}, nil
}

// ValidateForConsume checks a submitted code against this record at the
// given instant. Comparison is exact apart from trimming surrounding
// whitespace; no other normalization happens. Failures wrap the sentinel
// for their state so callers classify on the error chain, never on message
// text, which embeds the caller-supplied address.
func (c *VerificationCode) ValidateForConsume(submitted string, now time.Time) error {
	if c.ConsumedAt != nil {
		return fmt.Errorf("verification code for %s: %w", c.Address, sentinel.ErrAlreadyUsed)
	}
	if now.After(c.ExpiresAt) {
		return fmt.Errorf("verification code for %s: %w", c.Address, sentinel.ErrExpired)
	}
	if strings.TrimSpace(submitted) != c.Code {
		return fmt.Errorf("verification code mismatch for %s: %w", c.Address, sentinel.ErrInvalidState)
	}
	return nil
}

// MarkConsumed records the single successful use of this code.
func (c *VerificationCode) MarkConsumed(now time.Time) {
	t := now
	c.ConsumedAt = &t
}

// Active reports whether this code could still be consumed at the instant.
func (c *VerificationCode) Active(now time.Time) bool {
	return c.ConsumedAt == nil && !now.After(c.ExpiresAt)
}

// GenerateCode returns a random numeric string of the given length.
func GenerateCode(length int) (string, error) {
	const digits = "0123456789"
	code := make([]byte, length)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}
