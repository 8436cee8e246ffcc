package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"waka/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	// Routes are immutable once registered, so a long TTL is safe.
	RouteCacheTTL = 10 * time.Minute

	// The active-trip pointer changes on start and on terminal
	// transitions; both paths invalidate explicitly, the TTL is a
	// backstop.
	ActiveTripTTL = 5 * time.Minute
)

// Key prefixes
const (
	routeCachePrefix      = "cache:route:"
	activeTripCachePrefix = "users:active_trip:"
)

// cachedLeg mirrors domain.Leg for JSON storage.
type cachedLeg struct {
	Seq              int     `json:"seq"`
	Mode             string  `json:"mode"`
	FromLat          float64 `json:"from_lat"`
	FromLng          float64 `json:"from_lng"`
	FromName         string  `json:"from_name,omitempty"`
	ToLat            float64 `json:"to_lat"`
	ToLng            float64 `json:"to_lng"`
	ToName           string  `json:"to_name,omitempty"`
	DistanceMeters   float64 `json:"distance_meters"`
	DurationSeconds  int64   `json:"duration_seconds"`
	FareMin          float64 `json:"fare_min,omitempty"`
	FareMax          float64 `json:"fare_max,omitempty"`
	TransferRequired bool    `json:"transfer_required"`
	WaitSeconds      int64   `json:"wait_seconds,omitempty"`
}

type cachedRoute struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Legs []cachedLeg `json:"legs"`
}

// GetRoute retrieves a route from cache. Returns nil on cache miss.
func (s *CacheStore) GetRoute(ctx context.Context, routeID string) (*domain.Route, error) {
	data, err := s.client.Get(ctx, routeCachePrefix+routeID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached cachedRoute
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	route := &domain.Route{ID: cached.ID, Name: cached.Name}
	for _, cl := range cached.Legs {
		route.Legs = append(route.Legs, domain.Leg{
			RouteID:          cached.ID,
			Seq:              cl.Seq,
			Mode:             domain.TransportMode(cl.Mode),
			From:             domain.Waypoint{Lat: cl.FromLat, Lng: cl.FromLng, Name: cl.FromName},
			To:               domain.Waypoint{Lat: cl.ToLat, Lng: cl.ToLng, Name: cl.ToName},
			DistanceMeters:   cl.DistanceMeters,
			ExpectedDuration: time.Duration(cl.DurationSeconds) * time.Second,
			FareMin:          cl.FareMin,
			FareMax:          cl.FareMax,
			TransferRequired: cl.TransferRequired,
			TransferWait:     time.Duration(cl.WaitSeconds) * time.Second,
		})
	}
	return route, nil
}

// SetRoute stores a route in cache.
func (s *CacheStore) SetRoute(ctx context.Context, route *domain.Route) error {
	cached := cachedRoute{ID: route.ID, Name: route.Name}
	for _, leg := range route.Legs {
		cached.Legs = append(cached.Legs, cachedLeg{
			Seq:              leg.Seq,
			Mode:             string(leg.Mode),
			FromLat:          leg.From.Lat,
			FromLng:          leg.From.Lng,
			FromName:         leg.From.Name,
			ToLat:            leg.To.Lat,
			ToLng:            leg.To.Lng,
			ToName:           leg.To.Name,
			DistanceMeters:   leg.DistanceMeters,
			DurationSeconds:  int64(leg.ExpectedDuration.Seconds()),
			FareMin:          leg.FareMin,
			FareMax:          leg.FareMax,
			TransferRequired: leg.TransferRequired,
			WaitSeconds:      int64(leg.TransferWait.Seconds()),
		})
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, routeCachePrefix+route.ID, data, RouteCacheTTL).Err()
}

// GetActiveTripID retrieves the user's active trip pointer. Returns
// "" on cache miss.
func (s *CacheStore) GetActiveTripID(ctx context.Context, userID string) (string, error) {
	tripID, err := s.client.Get(ctx, activeTripCachePrefix+userID).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // Cache miss
		}
		return "", err
	}
	return tripID, nil
}

// SetActiveTripID stores the user's active trip pointer.
func (s *CacheStore) SetActiveTripID(ctx context.Context, userID, tripID string) error {
	return s.client.Set(ctx, activeTripCachePrefix+userID, tripID, ActiveTripTTL).Err()
}

// InvalidateActiveTrip removes the user's active trip pointer.
func (s *CacheStore) InvalidateActiveTrip(ctx context.Context, userID string) error {
	return s.client.Del(ctx, activeTripCachePrefix+userID).Err()
}
