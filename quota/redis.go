package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// usageKeyTTL keeps day-scoped counters around long enough to survive
// clock skew between writers, then lets Redis reclaim them.
const usageKeyTTL = 48 * time.Hour

// RedisUsageStore implements store.UsageStore on Redis using day-scoped
// counter keys, so the increment is a single atomic INCR and stale days
// expire on their own.
type RedisUsageStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisUsageStore creates a RedisUsageStore over an existing client.
func NewRedisUsageStore(client *redis.Client) *RedisUsageStore {
	return &RedisUsageStore{client: client, now: time.Now}
}

// GetUsage returns the user's counter for the current UTC day. A missing
// key means no usage today and reports (0, today).
func (s *RedisUsageStore) GetUsage(ctx context.Context, userID string) (int, string, error) {
	day := s.now().UTC().Format(DayLayout)
	count, err := s.client.Get(ctx, s.key(userID, day)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, day, nil
		}
		return 0, "", fmt.Errorf("failed to read usage for user %s: %w", userID, err)
	}
	return count, day, nil
}

// IncrementUsage atomically increments the user's counter for the given
// day and returns the new count. Day-scoped keys make the "reset on new
// day" rule implicit: a new day is a fresh key starting at 1.
func (s *RedisUsageStore) IncrementUsage(ctx context.Context, userID, day string) (int, error) {
	key := s.key(userID, day)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, usageKeyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment usage for user %s: %w", userID, err)
	}
	return int(incr.Val()), nil
}

func (s *RedisUsageStore) key(userID, day string) string {
	return fmt.Sprintf("quota:breach:%s:%s", userID, day)
}
