package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CheckAndSetRateLimit acquires a cooldown lock for (user, action). It returns false while
// the previous lock is still alive. A nil client disables limiting.
func CheckAndSetRateLimit(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string, limit time.Duration) (bool, error) {
	if rdb == nil {
		return true, nil
	}

	key := fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)

	wasSet, err := rdb.SetNX(ctx, key, "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func GetRateLimitTTL(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	key := fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)
	return rdb.TTL(ctx, key).Result()
}

// FailureCount returns how many failures were recorded for (user, action) in the
// current window.
func FailureCount(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	n, err := rdb.Get(ctx, failureKey(userID, action)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// RecordFailure bumps the failure counter; the window starts at the first failure.
func RecordFailure(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string, window time.Duration) error {
	if rdb == nil {
		return nil
	}
	key := failureKey(userID, action)
	pipe := rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	_, err := pipe.Exec(ctx)
	return err
}

func ClearFailures(ctx context.Context, rdb *redis.Client, userID uuid.UUID, action string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, failureKey(userID, action)).Err()
}

func failureKey(userID uuid.UUID, action string) string {
	return fmt.Sprintf("rate_limit:failures:%s:%s", userID.String(), action)
}
