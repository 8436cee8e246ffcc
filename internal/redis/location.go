package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const tripPositionKey = "trips:positions"

// TripPosition represents a live trip's last accepted position.
type TripPosition struct {
	TripID string
	Lat    float64
	Lng    float64
}

// LocationStore keeps a geo index of live trip positions in Redis.
// Entries exist only while a trip is active; terminal operations
// remove them.
type LocationStore struct {
	client *redis.Client
}

// NewLocationStore creates a new LocationStore.
func NewLocationStore(client *redis.Client) *LocationStore {
	return &LocationStore{client: client}
}

// UpdatePosition stores a trip's position using GEOADD.
func (s *LocationStore) UpdatePosition(ctx context.Context, tripID string, lat, lng float64) error {
	return s.client.GeoAdd(ctx, tripPositionKey, &redis.GeoLocation{
		Name:      tripID,
		Longitude: lng,
		Latitude:  lat,
	}).Err()
}

// FindNearbyTrips returns live trips within the given radius (in
// kilometers), nearest first.
func (s *LocationStore) FindNearbyTrips(ctx context.Context, lat, lng, radiusKm float64) ([]TripPosition, error) {
	results, err := s.client.GeoRadius(ctx, tripPositionKey, lng, lat, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	positions := make([]TripPosition, 0, len(results))
	for _, r := range results {
		positions = append(positions, TripPosition{
			TripID: r.Name,
			Lat:    r.Latitude,
			Lng:    r.Longitude,
		})
	}

	return positions, nil
}

// RemovePosition removes a trip from the geo index.
func (s *LocationStore) RemovePosition(ctx context.Context, tripID string) error {
	return s.client.ZRem(ctx, tripPositionKey, tripID).Err()
}
