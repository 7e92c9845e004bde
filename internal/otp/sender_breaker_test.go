package otp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garrison/pkg/platform/circuit"
)

type recordingSender struct {
	calls int
	err   error
}

func (s *recordingSender) Send(context.Context, string, string) error {
	s.calls++
	return s.err
}

func TestBreakerSender(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("healthy primary delivers, fallback untouched", func(t *testing.T) {
		primary := &recordingSender{}
		fallback := &recordingSender{}
		sender := NewBreakerSender(primary, fallback, circuit.New("email"), logger)

		require.NoError(t, sender.Send(ctx, "vendor@example.com", "123456"))
		assert.Equal(t, 1, primary.calls)
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("failures below threshold surface the error", func(t *testing.T) {
		primary := &recordingSender{err: errors.New("smtp unavailable")}
		fallback := &recordingSender{}
		sender := NewBreakerSender(primary, fallback,
			circuit.New("email", circuit.WithFailureThreshold(3)), logger)

		assert.Error(t, sender.Send(ctx, "vendor@example.com", "123456"))
		assert.Error(t, sender.Send(ctx, "vendor@example.com", "123456"))
		assert.Equal(t, 0, fallback.calls)
	})

	t.Run("open circuit diverts to the fallback", func(t *testing.T) {
		primary := &recordingSender{err: errors.New("smtp unavailable")}
		fallback := &recordingSender{}
		breaker := circuit.New("email", circuit.WithFailureThreshold(2))
		sender := NewBreakerSender(primary, fallback, breaker, logger)

		assert.Error(t, sender.Send(ctx, "vendor@example.com", "123456"))
		require.NoError(t, sender.Send(ctx, "vendor@example.com", "123456"))
		assert.True(t, breaker.IsOpen())
		assert.Equal(t, 1, fallback.calls)

		require.NoError(t, sender.Send(ctx, "vendor@example.com", "123456"))
		assert.Equal(t, 2, fallback.calls)
	})

	t.Run("circuit closes once the primary recovers", func(t *testing.T) {
		primary := &recordingSender{err: errors.New("smtp unavailable")}
		fallback := &recordingSender{}
		breaker := circuit.New("email",
			circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(2))
		sender := NewBreakerSender(primary, fallback, breaker, logger)

		require.NoError(t, sender.Send(ctx, "vendor@example.com", "123456"))
		require.True(t, breaker.IsOpen())

		primary.err = nil
		require.NoError(t, sender.Send(ctx, "vendor@example.com", "123456"))
		require.NoError(t, sender.Send(ctx, "vendor@example.com", "123456"))
		assert.False(t, breaker.IsOpen())
	})
}
