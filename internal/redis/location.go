package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const travelerLocationKey = "travelers:locations"

// TravelerLocation represents a traveler's latest position.
type TravelerLocation struct {
	TripID string
	Lat    float64
	Lng    float64
}

// LocationStore keeps the latest fix per actively tracked trip in a Redis
// geo index. Each position tick overwrites the previous entry (GEOADD is
// last-write-wins per member), so out-of-order writes are harmless.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdateLocation stores a traveler's latest position using GEOADD.
func (s *LocationStore) UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, travelerLocationKey, &redis.GeoLocation{
		Name:      tripID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyTravelers returns actively tracked trips within the given
// radius (in kilometers), nearest first.
func (s *LocationStore) FindNearbyTravelers(ctx context.Context, lat, lng, radiusKm float64) ([]TravelerLocation, error) {
	results, err := s.client.GeoRadius(ctx, travelerLocationKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	locations := make([]TravelerLocation, 0, len(results))
	for _, r := range results {
		locations = append(locations, TravelerLocation{
			TripID: r.Name,
			Lat:    r.Latitude,
			Lng:    r.Longitude,
		})
	}

	return locations, nil
}

// RemoveLocation removes a trip's entry from the geo index on session stop.
func (s *LocationStore) RemoveLocation(ctx context.Context, tripID string) error {
	return s.client.ZRem(ctx, travelerLocationKey, tripID).Err()
}
