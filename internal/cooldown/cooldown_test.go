package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_CanResend(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first issuance is always allowed", func(t *testing.T) {
		c := New(NewInMemoryStore())
		ok, retryAfter, err := c.CanResend(ctx, "vendor@example.com", "email", now)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Zero(t, retryAfter)
	})

	t.Run("rejected inside the window with remaining time", func(t *testing.T) {
		c := New(NewInMemoryStore())
		require.NoError(t, c.RecordIssuance(ctx, "vendor@example.com", "email", now))

		ok, retryAfter, err := c.CanResend(ctx, "vendor@example.com", "email", now.Add(20*time.Second))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 40*time.Second, retryAfter)
	})

	t.Run("allowed at exactly the interval", func(t *testing.T) {
		c := New(NewInMemoryStore())
		require.NoError(t, c.RecordIssuance(ctx, "vendor@example.com", "email", now))

		ok, _, err := c.CanResend(ctx, "vendor@example.com", "email", now.Add(Interval))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("pairs do not share cooldowns", func(t *testing.T) {
		c := New(NewInMemoryStore())
		require.NoError(t, c.RecordIssuance(ctx, "vendor@example.com", "email", now))

		ok, _, err := c.CanResend(ctx, "vendor@example.com", "phone", now.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, ok, "phone channel must not inherit the email cooldown")

		ok, _, err = c.CanResend(ctx, "other@example.com", "email", now.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, ok, "other addresses must not inherit the cooldown")
	})

	t.Run("new issuance restarts the window", func(t *testing.T) {
		c := New(NewInMemoryStore())
		require.NoError(t, c.RecordIssuance(ctx, "vendor@example.com", "email", now))
		require.NoError(t, c.RecordIssuance(ctx, "vendor@example.com", "email", now.Add(Interval)))

		ok, retryAfter, err := c.CanResend(ctx, "vendor@example.com", "email", now.Add(Interval+10*time.Second))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 50*time.Second, retryAfter)
	})

	t.Run("WithInterval overrides the window", func(t *testing.T) {
		c := New(NewInMemoryStore(), WithInterval(5*time.Second))
		require.NoError(t, c.RecordIssuance(ctx, "vendor@example.com", "email", now))

		ok, _, err := c.CanResend(ctx, "vendor@example.com", "email", now.Add(5*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
