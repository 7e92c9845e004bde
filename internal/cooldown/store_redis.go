package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"garrison/pkg/platform/sentinel"
)

const cooldownKeyPrefix = "otp:cooldown:"

// RedisStore keeps last-issuance timestamps in Redis so cooldowns hold
// across instances. Keys carry a TTL slightly past the interval; an absent
// key means the pair is clear to resend.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed cooldown store. The ttl should be
// at least the controller interval; anything longer only costs memory.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * Interval
	}
	return &RedisStore{client: client, ttl: ttl}
}

func cooldownKey(address, channel string) string {
	return cooldownKeyPrefix + channel + ":" + address
}

func (s *RedisStore) LastIssuance(ctx context.Context, address, channel string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, cooldownKey(address, channel)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cooldown: %w: %v", sentinel.ErrUnavailable, err)
	}

	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cooldown timestamp: %w", err)
	}
	return t, true, nil
}

func (s *RedisStore) RecordIssuance(ctx context.Context, address, channel string, at time.Time) error {
	err := s.client.Set(ctx, cooldownKey(address, channel), at.Format(time.RFC3339Nano), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("record cooldown: %w: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}
