package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "garrison/pkg/domain"
	audit "garrison/pkg/platform/audit"
	auditmemory "garrison/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncEmit(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store)
	defer p.Close()

	userID := id.NewUserID()
	require.NoError(t, p.Emit(ctx, audit.Event{
		UserID: userID,
		Action: string(audit.EventEmailVerified),
	}))

	events, err := p.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryOperations, events[0].Category, "category is stamped from the action")
}

func TestPublisher_CategoryIsPreservedWhenSet(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store)
	defer p.Close()

	userID := id.NewUserID()
	require.NoError(t, p.Emit(ctx, audit.Event{
		UserID:   userID,
		Action:   string(audit.EventEmailVerified),
		Category: audit.CategorySecurity,
	}))

	events, err := p.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategorySecurity, events[0].Category)
}

func TestPublisher_AsyncDeliversOnClose(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(16))

	userID := id.NewUserID()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Emit(ctx, audit.Event{
			UserID:    userID,
			Action:    string(audit.EventCodeIssued),
			Timestamp: time.Now(),
		}))
	}
	p.Close()

	events, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, events, 10)
}

func TestPublisher_AsyncFullBufferFallsBackToSync(t *testing.T) {
	ctx := context.Background()
	store := auditmemory.NewInMemoryStore()
	p := NewPublisher(store, WithAsyncBuffer(1))
	defer p.Close()

	// Hammer the tiny buffer; every event must land regardless of path.
	userID := id.NewUserID()
	var wg sync.WaitGroup
	const total = 50
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Emit(ctx, audit.Event{UserID: userID, Action: string(audit.EventCodeIssued)})
		}()
	}
	wg.Wait()
	p.Close()

	events, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, events, total)
}

func TestTee_FansOut(t *testing.T) {
	ctx := context.Background()
	primary := auditmemory.NewInMemoryStore()
	sink := auditmemory.NewInMemoryStore()
	tee := audit.NewTee(primary, sink)

	userID := id.NewUserID()
	require.NoError(t, tee.Append(ctx, audit.Event{UserID: userID, Action: string(audit.EventSessionIssued)}))

	fromPrimary, err := tee.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, fromPrimary, 1)

	fromSink, err := sink.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, fromSink, 1)
}
