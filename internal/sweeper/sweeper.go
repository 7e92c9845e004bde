// Package sweeper reclaims expired verification codes and stale pending
// registrations in the background. Stores enforce expiry on read; the
// sweeper only keeps storage from growing without bound.
package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is how often a sweep runs.
const DefaultInterval = 5 * time.Minute

// CodeStore is the slice of the code store the sweeper needs.
type CodeStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// RegistrationStore is the slice of the registration store the sweeper needs.
type RegistrationStore interface {
	DeleteStalePending(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper runs periodic cleanup until its context is cancelled.
type Sweeper struct {
	codes      CodeStore
	records    RegistrationStore
	pendingTTL time.Duration
	interval   time.Duration
	logger     *slog.Logger
}

// Option customizes a Sweeper.
type Option func(*Sweeper)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) { s.interval = d }
}

// New builds a sweeper. pendingTTL bounds how long an unfinished
// registration survives before reclamation.
func New(codes CodeStore, records RegistrationStore, pendingTTL time.Duration, logger *slog.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		codes:      codes,
		records:    records,
		pendingTTL: pendingTTL,
		interval:   DefaultInterval,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on the interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx, time.Now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sweep runs one pass. Failures are logged and retried on the next tick;
// a missed sweep is not worth crashing the process over.
func (s *Sweeper) sweep(ctx context.Context, now time.Time) {
	codes, err := s.codes.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "expired code sweep failed", "error", err)
	}

	records, err := s.records.DeleteStalePending(ctx, now.Add(-s.pendingTTL))
	if err != nil {
		s.logger.ErrorContext(ctx, "stale registration sweep failed", "error", err)
	}

	if codes > 0 || records > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			"expired_codes", codes,
			"stale_registrations", records,
		)
	}
}
