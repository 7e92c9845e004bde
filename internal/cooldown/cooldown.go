// Package cooldown enforces the minimum interval between successive code
// issuances for the same (address, channel) pair. It is a delivery-cost
// rate limit, not a security boundary: code guessing is bounded by code
// length and expiry, not by this package.
package cooldown

import (
	"context"
	"time"
)

// Interval is the fixed minimum gap between issuances per (address, channel).
// Clients mirror the same value as a visible countdown; this side is the
// authoritative one.
const Interval = 60 * time.Second

// Store records last-issuance timestamps.
type Store interface {
	// LastIssuance returns the most recent issuance time for the pair and
	// whether one is recorded.
	LastIssuance(ctx context.Context, address, channel string) (time.Time, bool, error)

	// RecordIssuance stores the issuance time for the pair, replacing any
	// previous value.
	RecordIssuance(ctx context.Context, address, channel string, at time.Time) error
}

// Controller answers whether a pair may be issued another code yet.
type Controller struct {
	store    Store
	interval time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval overrides the cooldown interval. Tests use short intervals.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New constructs a Controller over the given store.
func New(store Store, opts ...Option) *Controller {
	c := &Controller{store: store, interval: Interval}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CanResend reports whether the pair may be issued a new code at the given
// instant, and if not, how long until it may. Consumption of the previous
// code is irrelevant; only issuance times count.
func (c *Controller) CanResend(ctx context.Context, address, channel string, now time.Time) (bool, time.Duration, error) {
	last, ok, err := c.store.LastIssuance(ctx, address, channel)
	if err != nil {
		return false, 0, err
	}
	if !ok {
		return true, 0, nil
	}
	elapsed := now.Sub(last)
	if elapsed >= c.interval {
		return true, 0, nil
	}
	return false, c.interval - elapsed, nil
}

// RecordIssuance notes that a code was just issued for the pair.
func (c *Controller) RecordIssuance(ctx context.Context, address, channel string, now time.Time) error {
	return c.store.RecordIssuance(ctx, address, channel, now)
}
