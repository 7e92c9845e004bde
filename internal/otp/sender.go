package otp

import (
	"context"
	"log/slog"
)

// Sender dispatches a code to an address through a delivery provider.
// Email and SMS providers are external collaborators behind this port;
// the service never depends on a concrete provider SDK.
type Sender interface {
	Send(ctx context.Context, address, code string) error
}

// LogSender writes codes to the log instead of delivering them. It backs
// deployments without a configured provider (dev, CI). Pairing it with the
// debug code echo is a configuration decision, not something this type infers.
type LogSender struct {
	channel Channel
	logger  *slog.Logger
}

// NewLogSender constructs a log-only sender for the channel.
func NewLogSender(channel Channel, logger *slog.Logger) *LogSender {
	return &LogSender{channel: channel, logger: logger}
}

func (s *LogSender) Send(ctx context.Context, address, code string) error {
	s.logger.InfoContext(ctx, "verification code dispatched",
		"channel", string(s.channel),
		"address", address,
		"code", code,
	)
	return nil
}
