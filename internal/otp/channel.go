package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"garrison/internal/cooldown"
	"garrison/internal/otp/metrics"
	dErrors "garrison/pkg/domain-errors"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
)

// Adapter issues and verifies codes for one channel. Two instances exist,
// one per channel, sharing a code store but each with its own sender.
type Adapter struct {
	channel  Channel
	codes    CodeStore
	sender   Sender
	cooldown *cooldown.Controller
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// debugEcho controls whether Issue returns the plaintext code to the
	// caller. It comes from an explicit configuration flag, never from a
	// provider failure, and must stay off in production.
	debugEcho bool
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithDebugEcho enables returning the plaintext code from Issue.
func WithDebugEcho(enabled bool) AdapterOption {
	return func(a *Adapter) { a.debugEcho = enabled }
}

// NewAdapter constructs a channel adapter.
func NewAdapter(channel Channel, codes CodeStore, sender Sender, cd *cooldown.Controller, m *metrics.Metrics, logger *slog.Logger, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		channel:  channel,
		codes:    codes,
		sender:   sender,
		cooldown: cd,
		metrics:  m,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Channel returns the channel this adapter serves.
func (a *Adapter) Channel() Channel { return a.channel }

// Issue generates a fresh code for the address, invalidating any prior
// active code, stores it, and dispatches it through the sender. The
// issuance is cooldown-gated; a rejected attempt changes nothing.
// The returned string is the plaintext code in debug mode, "" otherwise.
func (a *Adapter) Issue(ctx context.Context, address string) (string, error) {
	now := requestcontext.Now(ctx)

	ok, retryAfter, err := a.cooldown.CanResend(ctx, address, string(a.channel), now)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "cooldown check failed")
	}
	if !ok {
		a.metrics.ResendRejected.WithLabelValues(string(a.channel)).Inc()
		return "", dErrors.Newf(dErrors.CodeRateLimited, "code already sent, retry in %ds", int(retryAfter.Seconds())+1)
	}

	code, err := NewVerificationCode(address, a.channel, now)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}

	if err := a.codes.Put(ctx, code); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to store code")
	}
	if err := a.cooldown.RecordIssuance(ctx, address, string(a.channel), now); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to record issuance")
	}

	if err := a.sender.Send(ctx, address, code.Code); err != nil {
		// The stored code stays valid; the client can resend after the
		// cooldown. Surfacing the failure beats silently eating it.
		a.logger.ErrorContext(ctx, "code dispatch failed",
			"channel", string(a.channel),
			"address", address,
			"error", err,
		)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to dispatch code")
	}

	a.metrics.CodesIssued.WithLabelValues(string(a.channel)).Inc()
	a.logger.InfoContext(ctx, "verification code issued",
		"channel", string(a.channel),
		"address", address,
		"expires_at", code.ExpiresAt,
	)

	if a.debugEcho {
		return code.Code, nil
	}
	return "", nil
}

// Verify consumes the active code for the address if the submission
// matches. It fails closed: a wrong code and a never-issued code are
// indistinguishable to the caller. Expiry is reported distinctly so the
// client can prompt for a resend.
func (a *Adapter) Verify(ctx context.Context, address, submitted string) error {
	now := requestcontext.Now(ctx)

	_, err := a.codes.Consume(ctx, address, a.channel, submitted, now)
	if err == nil {
		a.metrics.VerifySuccess.WithLabelValues(string(a.channel)).Inc()
		a.logger.InfoContext(ctx, "verification code accepted",
			"channel", string(a.channel),
			"address", address,
		)
		return nil
	}

	reason := verifyFailureReason(err)
	a.metrics.VerifyFailure.WithLabelValues(string(a.channel), reason).Inc()
	a.logger.WarnContext(ctx, "verification code rejected",
		"channel", string(a.channel),
		"address", address,
		"reason", reason,
	)

	if errors.Is(err, sentinel.ErrExpired) {
		return dErrors.New(dErrors.CodeExpired, "verification code expired")
	}
	// NotFound, AlreadyUsed, and mismatch collapse into one answer so the
	// endpoint leaks nothing about whether a code was ever issued.
	return dErrors.New(dErrors.CodeUnauthorized, "invalid verification code")
}

func verifyFailureReason(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrExpired):
		return "expired"
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return "replay"
	case errors.Is(err, sentinel.ErrNotFound):
		return "not_found"
	case errors.Is(err, sentinel.ErrInvalidState):
		return "mismatch"
	default:
		return "error"
	}
}

// SweepExpired removes expired codes as of now. Main runs this on a ticker.
func (a *Adapter) SweepExpired(ctx context.Context) error {
	n, err := a.codes.DeleteExpired(ctx, requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("sweep expired %s codes: %w", a.channel, err)
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "expired codes swept", "channel", string(a.channel), "deleted", n)
	}
	return nil
}
