package redis

import (
	"context"
	"time"

	"waka/internal/domain"
)

// LocationStoreInterface defines the interface for live trip position
// tracking.
type LocationStoreInterface interface {
	UpdatePosition(ctx context.Context, tripID string, lat, lng float64) error
	FindNearbyTrips(ctx context.Context, lat, lng, radiusKm float64) ([]TripPosition, error)
	RemovePosition(ctx context.Context, tripID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error)
	ReleaseUserLock(ctx context.Context, userID string) error
}

// CacheStoreInterface defines the interface for route and active-trip
// caching.
type CacheStoreInterface interface {
	GetRoute(ctx context.Context, routeID string) (*domain.Route, error)
	SetRoute(ctx context.Context, route *domain.Route) error
	GetActiveTripID(ctx context.Context, userID string) (string, error)
	SetActiveTripID(ctx context.Context, userID, tripID string) error
	InvalidateActiveTrip(ctx context.Context, userID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LocationStoreInterface = (*LocationStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
	_ CacheStoreInterface    = (*CacheStore)(nil)
)
