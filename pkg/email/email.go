// Package email builds the verification messages sent to registrants and
// derives display names from addresses for greeting lines.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// Delivery hands a rendered message to the actual transport (SMTP relay,
// provider API). The default delivery logs the message for development.
type Delivery func(ctx context.Context, address, subject, body string) error

// CodeMailer renders and sends the verification email for a code. It
// satisfies the otp sender contract.
type CodeMailer struct {
	logger  *slog.Logger
	deliver Delivery
}

// NewCodeMailer builds a mailer. A nil delivery falls back to logging,
// which is the development default.
func NewCodeMailer(logger *slog.Logger, deliver Delivery) *CodeMailer {
	m := &CodeMailer{logger: logger, deliver: deliver}
	if m.deliver == nil {
		m.deliver = m.logDelivery
	}
	return m
}

// Send renders the message for the code and hands it to the delivery.
func (m *CodeMailer) Send(ctx context.Context, address, code string) error {
	first, _ := DeriveNameFromEmail(address)
	subject := "Your verification code"
	body := fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in 10 minutes.\n", first, code)
	if err := m.deliver(ctx, address, subject, body); err != nil {
		return fmt.Errorf("deliver verification email: %w", err)
	}
	return nil
}

func (m *CodeMailer) logDelivery(ctx context.Context, address, subject, _ string) error {
	m.logger.InfoContext(ctx, "verification email (dev delivery)",
		"to", address,
		"subject", subject,
	)
	return nil
}

// DeriveNameFromEmail guesses first and last names from the local part of
// an address. Used for greeting lines only, never stored.
func DeriveNameFromEmail(email string) (string, string) {
	localPart := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		localPart = email[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})

	if len(parts) == 0 {
		return "User", "User"
	}

	first := capitalize(parts[0])
	last := "User"
	if len(parts) > 1 {
		last = capitalize(parts[len(parts)-1])
	}

	return first, last
}

func capitalize(s string) string {
	if s == "" {
		return s
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
