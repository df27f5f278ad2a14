package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "enrich_lock:"

// RecordLockAdapter реализует RecordLockPort через Redis SETNX с TTL.
// TTL страхует от зависших воркеров: блокировка исчезает сама.
type RecordLockAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRecordLockAdapter создает новый экземпляр адаптера.
func NewRecordLockAdapter(client *redis.Client, ttl time.Duration) (*RecordLockAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("record lock adapter: redis client cannot be nil")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("record lock adapter: ttl must be positive")
	}
	return &RecordLockAdapter{client: client, ttl: ttl}, nil
}

// Acquire пытается захватить блокировку записи; false — запись уже занята.
func (a *RecordLockAdapter) Acquire(ctx context.Context, cianID int64) (bool, error) {
	ok, err := a.client.SetNX(ctx, lockKey(cianID), 1, a.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for cian_id %d: %w", cianID, err)
	}
	return ok, nil
}

// Release снимает блокировку записи.
func (a *RecordLockAdapter) Release(ctx context.Context, cianID int64) error {
	if err := a.client.Del(ctx, lockKey(cianID)).Err(); err != nil {
		return fmt.Errorf("failed to release lock for cian_id %d: %w", cianID, err)
	}
	return nil
}

func lockKey(cianID int64) string {
	return fmt.Sprintf("%s%d", lockKeyPrefix, cianID)
}
