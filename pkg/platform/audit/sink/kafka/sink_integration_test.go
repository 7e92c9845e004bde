//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "garrison/pkg/domain"
	audit "garrison/pkg/platform/audit"
	"garrison/pkg/testutil/containers"
)

func TestSink_Integration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	const topic = "garrison.audit.events.test"

	sink, err := Dial([]string{rp.Broker}, topic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))
	// Idempotent when the topic exists.
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))

	userID := id.NewUserID()
	issuedAt := time.Now().UTC().Truncate(time.Millisecond)
	event := audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: issuedAt,
		UserID:    userID,
		Action:    string(audit.EventVerifyFailed),
		Channel:   "email",
		Address:   "vendor@example.com",
		Reason:    "unauthorized",
		RequestID: "req-42",
		ClientIP:  "203.0.113.9",
	}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, string(audit.EventVerifyFailed), string(records[0].Key))

	var got struct {
		Category  string    `json:"category"`
		Timestamp time.Time `json:"timestamp"`
		UserID    string    `json:"userId"`
		Action    string    `json:"action"`
		Channel   string    `json:"channel"`
		Address   string    `json:"address"`
		Reason    string    `json:"reason"`
		RequestID string    `json:"requestId"`
		ClientIP  string    `json:"clientIp"`
	}
	require.NoError(t, json.Unmarshal(records[0].Value, &got))

	assert.Equal(t, "security", got.Category)
	assert.True(t, got.Timestamp.Equal(issuedAt))
	assert.Equal(t, userID.String(), got.UserID)
	assert.Equal(t, "verify_failed", got.Action)
	assert.Equal(t, "email", got.Channel)
	assert.Equal(t, "vendor@example.com", got.Address)
	assert.Equal(t, "unauthorized", got.Reason)
	assert.Equal(t, "req-42", got.RequestID)
	assert.Equal(t, "203.0.113.9", got.ClientIP)
}

func TestSink_AnonymousEventOmitsUserID(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	const topic = "garrison.audit.anon.test"

	sink, err := Dial([]string{rp.Broker}, topic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))

	event := audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: time.Now().UTC(),
		Action:    string(audit.EventLoginStarted),
		Address:   "buyer@example.com",
	}
	require.NoError(t, sink.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &raw))
	_, present := raw["userId"]
	assert.False(t, present, "zero user id should be omitted from the wire event")
}
