package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"garrison/pkg/platform/sentinel"
)

var consumeDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "garrison_otp_consume_duration_ms",
	Help:    "Latency of verification code consumption in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const codeKeyPrefix = "otp:"

// consumeRetries bounds the optimistic-lock retry loop in Consume. A retry
// re-reads the key, so a racing loser lands on the winner's tombstone.
const consumeRetries = 3

// RedisCodeStore is a Redis-backed implementation of CodeStore. This is the
// production-recommended implementation for deployments where multiple
// instances share verification state. Keys outlive the code by
// ExpiredCodeRetention so late submissions still get the expired answer;
// after that Redis reclaims them itself.
type RedisCodeStore struct {
	client *redis.Client
}

// NewRedisCodeStore constructs a Redis-backed code store.
func NewRedisCodeStore(client *redis.Client) *RedisCodeStore {
	return &RedisCodeStore{client: client}
}

func redisCodeKey(address string, channel Channel) string {
	return codeKeyPrefix + string(channel) + ":" + address
}

// redisCodeTTL keeps the key until the retention window after expiry has
// passed, clamped so Set never sees a non-positive TTL.
func redisCodeTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + ExpiredCodeRetention
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisCodeStore) Put(ctx context.Context, code *VerificationCode) error {
	payload, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal verification code: %w", err)
	}
	// SET with expiry replaces any previous code for the pair atomically.
	if err := s.client.Set(ctx, redisCodeKey(code.Address, code.Channel), payload, redisCodeTTL(code.ExpiresAt)).Err(); err != nil {
		return fmt.Errorf("store verification code: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisCodeStore) Find(ctx context.Context, address string, channel Channel) (*VerificationCode, error) {
	payload, err := s.client.Get(ctx, redisCodeKey(address, channel)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("verification code not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load verification code: %w: %v", sentinel.ErrUnavailable, err)
	}

	var code VerificationCode
	if err := json.Unmarshal(payload, &code); err != nil {
		return nil, fmt.Errorf("unmarshal verification code: %w", err)
	}
	return &code, nil
}

// Consume validates and marks the code consumed. The read-validate-write
// runs under WATCH so racing submissions of the same code serialize: the
// transaction of whoever writes first commits, the loser's aborts and the
// retry finds the consumed tombstone. The tombstone stays behind until the
// retention window ends so replays fail with ErrAlreadyUsed instead of
// ErrNotFound, matching the in-memory store.
func (s *RedisCodeStore) Consume(ctx context.Context, address string, channel Channel, submitted string, now time.Time) (*VerificationCode, error) {
	start := time.Now()
	defer func() {
		consumeDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	key := redisCodeKey(address, channel)

	var record *VerificationCode
	consume := func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("verification code not found: %w", sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load verification code: %w: %v", sentinel.ErrUnavailable, err)
		}

		record = new(VerificationCode)
		if err := json.Unmarshal(payload, record); err != nil {
			return fmt.Errorf("unmarshal verification code: %w", err)
		}
		if err := record.ValidateForConsume(submitted, now); err != nil {
			return err
		}

		record.MarkConsumed(now)
		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal verification code: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redisCodeTTL(record.ExpiresAt))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < consumeRetries; attempt++ {
		err := s.client.Watch(ctx, consume, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return record, err
		}
		return record, nil
	}
	return nil, fmt.Errorf("consume verification code: contention retries exhausted: %w", sentinel.ErrUnavailable)
}

// DeleteExpired is a near no-op for Redis since keys carry their own TTL.
// It exists to satisfy CodeStore; the sweeper still calls it so swapping
// stores never changes caller behavior.
func (s *RedisCodeStore) DeleteExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
