package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garrison/pkg/platform/sentinel"
)

func TestInMemoryCodeStore_PutReplacesActiveCode(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCodeStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &VerificationCode{Address: "vendor@example.com", Channel: ChannelEmail, Code: "111111", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
	require.NoError(t, store.Put(ctx, first))

	second := &VerificationCode{Address: "vendor@example.com", Channel: ChannelEmail, Code: "222222", IssuedAt: now.Add(time.Minute), ExpiresAt: now.Add(time.Minute + CodeTTL)}
	require.NoError(t, store.Put(ctx, second))

	// The superseded code no longer verifies, even within its own TTL.
	_, err := store.Consume(ctx, "vendor@example.com", ChannelEmail, "111111", now.Add(2*time.Minute))
	require.Error(t, err)

	_, err = store.Consume(ctx, "vendor@example.com", ChannelEmail, "222222", now.Add(2*time.Minute))
	require.NoError(t, err)
}

func TestInMemoryCodeStore_ChannelsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCodeStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	emailCode := &VerificationCode{Address: "a@example.com", Channel: ChannelEmail, Code: "111111", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
	phoneCode := &VerificationCode{Address: "a@example.com", Channel: ChannelPhone, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
	require.NoError(t, store.Put(ctx, emailCode))
	require.NoError(t, store.Put(ctx, phoneCode))

	_, err := store.Consume(ctx, "a@example.com", ChannelEmail, "111111", now)
	require.NoError(t, err)

	// Consuming the email code does not touch the phone code.
	_, err = store.Consume(ctx, "a@example.com", ChannelPhone, "222222", now)
	require.NoError(t, err)
}

func TestInMemoryCodeStore_ConsumeErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("unknown address returns not found", func(t *testing.T) {
		store := NewInMemoryCodeStore()
		_, err := store.Consume(ctx, "nobody@example.com", ChannelEmail, "123456", now)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired code returns expired", func(t *testing.T) {
		store := NewInMemoryCodeStore()
		code := &VerificationCode{Address: "a@example.com", Channel: ChannelEmail, Code: "123456", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
		require.NoError(t, store.Put(ctx, code))

		_, err := store.Consume(ctx, "a@example.com", ChannelEmail, "123456", now.Add(CodeTTL+time.Second))
		assert.ErrorIs(t, err, sentinel.ErrExpired)
	})

	t.Run("replay returns already used", func(t *testing.T) {
		store := NewInMemoryCodeStore()
		code := &VerificationCode{Address: "a@example.com", Channel: ChannelEmail, Code: "123456", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
		require.NoError(t, store.Put(ctx, code))

		_, err := store.Consume(ctx, "a@example.com", ChannelEmail, "123456", now)
		require.NoError(t, err)

		_, err = store.Consume(ctx, "a@example.com", ChannelEmail, "123456", now.Add(time.Second))
		assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("mismatch returns invalid state", func(t *testing.T) {
		store := NewInMemoryCodeStore()
		code := &VerificationCode{Address: "a@example.com", Channel: ChannelEmail, Code: "123456", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
		require.NoError(t, store.Put(ctx, code))

		_, err := store.Consume(ctx, "a@example.com", ChannelEmail, "999999", now)
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
	})

	t.Run("mismatch for an address spelling a state stays a mismatch", func(t *testing.T) {
		store := NewInMemoryCodeStore()
		code := &VerificationCode{Address: "expired.parts@vendor.example", Channel: ChannelEmail, Code: "123456", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
		require.NoError(t, store.Put(ctx, code))

		_, err := store.Consume(ctx, "expired.parts@vendor.example", ChannelEmail, "000000", now.Add(time.Minute))
		assert.ErrorIs(t, err, sentinel.ErrInvalidState)
		assert.NotErrorIs(t, err, sentinel.ErrExpired)
	})
}

func TestInMemoryCodeStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCodeStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	reclaimable := &VerificationCode{Address: "old@example.com", Channel: ChannelEmail, Code: "111111", IssuedAt: now.Add(-3 * time.Hour), ExpiresAt: now.Add(-ExpiredCodeRetention - 30*time.Minute)}
	graced := &VerificationCode{Address: "late@example.com", Channel: ChannelEmail, Code: "333333", IssuedAt: now.Add(-time.Hour), ExpiresAt: now.Add(-30 * time.Minute)}
	live := &VerificationCode{Address: "new@example.com", Channel: ChannelEmail, Code: "222222", IssuedAt: now, ExpiresAt: now.Add(CodeTTL)}
	require.NoError(t, store.Put(ctx, reclaimable))
	require.NoError(t, store.Put(ctx, graced))
	require.NoError(t, store.Put(ctx, live))

	deleted, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.Find(ctx, "old@example.com", ChannelEmail)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	// Within the retention window the record stays, and a late submission
	// still gets the distinct expired answer instead of not-found.
	_, err = store.Consume(ctx, "late@example.com", ChannelEmail, "333333", now)
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	_, err = store.Find(ctx, "new@example.com", ChannelEmail)
	assert.NoError(t, err)
}
