package redis

import (
	"context"
	"time"
)

// LocationStoreInterface defines the interface for traveler location operations.
type LocationStoreInterface interface {
	UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error
	FindNearbyTravelers(ctx context.Context, lat, lng, radiusKm float64) ([]TravelerLocation, error)
	RemoveLocation(ctx context.Context, tripID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireTrackingLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error)
	ReleaseTrackingLock(ctx context.Context, tripID string) error
}

// FlagStoreInterface defines the interface for notification dedup flags.
type FlagStoreInterface interface {
	SetFlag(ctx context.Context, tripID, key string) (bool, error)
	ClearTrip(ctx context.Context, tripID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ FlagStoreInterface     = (*NotificationFlagStore)(nil)
)
