//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garrison/internal/registration/models"
	id "garrison/pkg/domain"
	"garrison/pkg/platform/sentinel"
	"garrison/pkg/requestcontext"
	"garrison/pkg/testutil/containers"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, pc.DSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgresStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func pendingRecord(email string) *models.Record {
	return &models.Record{
		ID:        id.NewUserID(),
		Name:      "Nadia Petrova",
		Email:     email,
		Username:  "nadia",
		UserType:  models.UserTypeVendor,
		Status:    models.StatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	t.Run("create and find round-trip", func(t *testing.T) {
		record := pendingRecord("roundtrip@example.com")
		require.NoError(t, store.Create(ctx, record))

		byEmail, err := store.FindByEmail(ctx, record.Email)
		require.NoError(t, err)
		assert.Equal(t, record.ID, byEmail.ID)
		assert.Equal(t, models.UserTypeVendor, byEmail.UserType)
		assert.True(t, byEmail.Pending())
		assert.Nil(t, byEmail.CompletedAt)

		byID, err := store.FindByID(ctx, record.ID)
		require.NoError(t, err)
		assert.Equal(t, record.Email, byID.Email)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		record := pendingRecord("taken@example.com")
		require.NoError(t, store.Create(ctx, record))

		dupe := pendingRecord("taken@example.com")
		err := store.Create(ctx, dupe)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("missing record is not found", func(t *testing.T) {
		_, err := store.FindByEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		_, err = store.FindByID(ctx, id.NewUserID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("set phone resets phone verification", func(t *testing.T) {
		record := pendingRecord("phones@example.com")
		require.NoError(t, store.Create(ctx, record))

		_, err := store.SetPhone(ctx, record.ID, "+15551230001")
		require.NoError(t, err)

		verified, err := store.MarkPhoneVerified(ctx, record.ID)
		require.NoError(t, err)
		require.True(t, verified.PhoneVerified)

		changed, err := store.SetPhone(ctx, record.ID, "+15551230002")
		require.NoError(t, err)
		assert.Equal(t, "+15551230002", changed.Phone)
		assert.False(t, changed.PhoneVerified)
	})

	t.Run("verified flags persist independently", func(t *testing.T) {
		record := pendingRecord("flags@example.com")
		require.NoError(t, store.Create(ctx, record))

		updated, err := store.MarkEmailVerified(ctx, record.ID)
		require.NoError(t, err)
		assert.True(t, updated.EmailVerified)
		assert.False(t, updated.PhoneVerified)
	})

	t.Run("complete stamps the injected time", func(t *testing.T) {
		record := pendingRecord("done@example.com")
		require.NoError(t, store.Create(ctx, record))

		now := time.Now().UTC().Truncate(time.Microsecond)
		completed, err := store.Complete(requestcontext.WithTime(ctx, now), record.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusComplete, completed.Status)
		require.NotNil(t, completed.CompletedAt)
		assert.True(t, completed.CompletedAt.Equal(now))
	})

	t.Run("stale sweep spares completed and fresh records", func(t *testing.T) {
		stale := pendingRecord("stale@example.com")
		stale.CreatedAt = time.Now().Add(-30 * 24 * time.Hour)
		require.NoError(t, store.Create(ctx, stale))

		fresh := pendingRecord("fresh@example.com")
		require.NoError(t, store.Create(ctx, fresh))

		finished := pendingRecord("finished@example.com")
		finished.CreatedAt = time.Now().Add(-30 * 24 * time.Hour)
		require.NoError(t, store.Create(ctx, finished))
		_, err := store.Complete(ctx, finished.ID)
		require.NoError(t, err)

		deleted, err := store.DeleteStalePending(ctx, time.Now().Add(-7*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		_, err = store.FindByEmail(ctx, "stale@example.com")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.FindByEmail(ctx, "fresh@example.com")
		assert.NoError(t, err)
		_, err = store.FindByEmail(ctx, "finished@example.com")
		assert.NoError(t, err)
	})
}
