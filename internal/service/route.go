package service

import (
	"context"
	"errors"
	"log"
	"time"

	"waka/internal/domain"
	"waka/internal/redis"
	"waka/internal/repository"
)

// RouteService handles route registration and lookup. Routes arrive
// from the route planner and are immutable afterwards.
type RouteService struct {
	routeRepo repository.RouteRepository
	cache     redis.CacheStoreInterface
}

// NewRouteService creates a new RouteService.
func NewRouteService(routeRepo repository.RouteRepository, cache redis.CacheStoreInterface) *RouteService {
	return &RouteService{routeRepo: routeRepo, cache: cache}
}

// Register validates and persists a route pushed by the planner.
func (s *RouteService) Register(ctx context.Context, route *domain.Route) error {
	if route.ID == "" {
		return ErrInvalidRouteID
	}
	if err := route.Validate(); err != nil {
		return ErrMalformedRoute
	}

	existing, err := s.routeRepo.GetByID(ctx, route.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if existing != nil {
		return ErrRouteAlreadyExists
	}

	if route.CreatedAt.IsZero() {
		route.CreatedAt = time.Now()
	}

	if err := s.routeRepo.Create(ctx, route); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.SetRoute(ctx, route); err != nil {
			log.Printf("route cache warm failed: route=%s: %v", route.ID, err)
		}
	}

	return nil
}

// Get retrieves a route by ID.
func (s *RouteService) Get(ctx context.Context, routeID string) (*domain.Route, error) {
	if routeID == "" {
		return nil, ErrInvalidRouteID
	}

	route, err := s.routeRepo.GetByID(ctx, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}

	return route, nil
}
