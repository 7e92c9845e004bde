package otp

import (
	"context"
	"log/slog"

	"garrison/pkg/platform/circuit"
)

// BreakerSender guards a delivery provider with a circuit breaker. Once the
// circuit opens, failed sends divert to the fallback (typically a LogSender)
// so the verification flow keeps issuing codes during a provider outage.
// The primary is still attempted on every send, which is what lets the
// circuit close again once the provider recovers.
type BreakerSender struct {
	primary  Sender
	fallback Sender
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewBreakerSender wraps primary with breaker-managed failover to fallback.
func NewBreakerSender(primary, fallback Sender, breaker *circuit.Breaker, logger *slog.Logger) *BreakerSender {
	return &BreakerSender{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *BreakerSender) Send(ctx context.Context, address, code string) error {
	if err := s.primary.Send(ctx, address, code); err != nil {
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "delivery circuit opened",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return s.fallback.Send(ctx, address, code)
		}
		return err
	}

	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.logger.InfoContext(ctx, "delivery circuit closed", "breaker", s.breaker.Name())
	}
	return nil
}
