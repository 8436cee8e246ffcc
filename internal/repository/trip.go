package repository

import (
	"context"

	"waka/internal/domain"
)

// TripSessionRepository defines the persistence operations for trip
// sessions. Implementations persist the session and its per-leg
// progress rows atomically.
type TripSessionRepository interface {
	// Create persists a new session with all its leg progress rows.
	Create(ctx context.Context, session *domain.TripSession) error

	// GetByID retrieves a session and its legs by trip ID.
	GetByID(ctx context.Context, id string) (*domain.TripSession, error)

	// Update writes the session row and every leg progress row.
	// Writing the same state twice is harmless, so retries are safe.
	Update(ctx context.Context, session *domain.TripSession) error

	// GetActiveByUserID retrieves the user's IN_PROGRESS session.
	// Returns nil if no active session exists.
	GetActiveByUserID(ctx context.Context, userID string) (*domain.TripSession, error)

	// GetAllByUserID retrieves a user's sessions, newest first.
	GetAllByUserID(ctx context.Context, userID string) ([]*domain.TripSession, error)
}
