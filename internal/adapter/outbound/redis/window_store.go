// Package redis provides the shared rate-limit window store backed by
// Redis sorted sets.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Grant-Gate/grantgate/internal/domain/ratelimit"
)

// WindowStore implements ratelimit.WindowStore on a Redis sorted set per
// key. Scores are event times in epoch milliseconds; members carry a
// random suffix so concurrent events at the same millisecond are distinct.
type WindowStore struct {
	client redis.UniversalClient
}

// NewWindowStore creates a window store on the given Redis client.
func NewWindowStore(client redis.UniversalClient) *WindowStore {
	return &WindowStore{client: client}
}

// Prune removes timestamps at or before the cutoff.
func (s *WindowStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	max := strconv.FormatInt(cutoff.UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", max).Err(); err != nil {
		return fmt.Errorf("zremrangebyscore %s: %w", key, err)
	}
	return nil
}

// Count returns the number of surviving timestamps.
func (s *WindowStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", key, err)
	}
	return int(n), nil
}

// Add records an event timestamp and refreshes the key's TTL so idle
// identifiers expire out of Redis on their own.
func (s *WindowStore) Add(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	member := fmt.Sprintf("%d-%s", at.UnixMilli(), uuid.NewString())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: member})
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

// Oldest returns the earliest surviving timestamp.
func (s *WindowStore) Oldest(ctx context.Context, key string) (time.Time, bool, error) {
	entries, err := s.client.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("zrangewithscores %s: %w", key, err)
	}
	if len(entries) == 0 {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(int64(entries[0].Score)).UTC(), true, nil
}

// Compile-time interface verification.
var _ ratelimit.WindowStore = (*WindowStore)(nil)
