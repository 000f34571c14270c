package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const (
	notifiedKeyPrefix  = "notified:"
	notifiedTripPrefix = "notified:trip:"
)

// NotificationFlagStore persists notification dedup flags in Redis with a
// per-trip secondary index for bulk clearing.
type NotificationFlagStore struct {
	client *redis.Client
}

// NewNotificationFlagStore creates a new NotificationFlagStore.
func NewNotificationFlagStore(client *redis.Client) *NotificationFlagStore {
	return &NotificationFlagStore{client: client}
}

// SetFlag atomically marks the key delivered via SETNX and records it under
// the trip's index set. Returns true only for the first caller of a key.
func (s *NotificationFlagStore) SetFlag(ctx context.Context, tripID, key string) (bool, error) {
	fresh, err := s.client.SetNX(ctx, notifiedKeyPrefix+key, "1", 0).Result()
	if err != nil {
		return false, err
	}
	if !fresh {
		return false, nil
	}

	if err := s.client.SAdd(ctx, notifiedTripPrefix+tripID, key).Err(); err != nil {
		return true, err
	}
	return true, nil
}

// ClearTrip removes every flag recorded for the trip plus the index itself.
func (s *NotificationFlagStore) ClearTrip(ctx context.Context, tripID string) error {
	indexKey := notifiedTripPrefix + tripID

	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, notifiedKeyPrefix+key)
	}
	pipe.Del(ctx, indexKey)

	_, err = pipe.Exec(ctx)
	return err
}
