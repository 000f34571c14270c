package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis. The tracking manager
// takes a per-trip lock on start so two service replicas cannot both run a
// session for the same trip.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireTrackingLock attempts to acquire the tracking lock for a trip.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireTrackingLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:tracking:%s", tripID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseTrackingLock releases the tracking lock for a trip.
func (s *LockStore) ReleaseTrackingLock(ctx context.Context, tripID string) error {
	key := fmt.Sprintf("lock:tracking:%s", tripID)

	return s.client.Del(ctx, key).Err()
}
