package repository

import (
	"context"

	"waka/internal/domain"
)

// RouteRepository defines the persistence operations for routes.
// Routes are written once by the planner and read-only afterwards.
type RouteRepository interface {
	// Create persists a route with all its legs.
	Create(ctx context.Context, route *domain.Route) error

	// GetByID retrieves a route and its ordered legs.
	GetByID(ctx context.Context, id string) (*domain.Route, error)
}
