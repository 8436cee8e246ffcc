package service

import "errors"

var (
	// ErrInvalidUserID is returned when user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidRouteID is returned when route ID is empty.
	ErrInvalidRouteID = errors.New("invalid route id")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidLocation is returned when coordinates are unusable.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrRouteNotFound is returned when the referenced route does not exist.
	ErrRouteNotFound = errors.New("route not found")

	// ErrMalformedRoute is returned when a route fails validation at
	// registration or trip start. Routes are immutable afterwards, so
	// this is never seen mid-trip.
	ErrMalformedRoute = errors.New("malformed route")

	// ErrTripNotFound is returned when the trip id is unknown.
	ErrTripNotFound = errors.New("trip not found")

	// ErrTripNotActive is returned when an operation is attempted on
	// a terminal trip.
	ErrTripNotActive = errors.New("trip not active")

	// ErrTripAlreadyActive is returned when a start is attempted
	// while the user already has an in-progress trip.
	ErrTripAlreadyActive = errors.New("user already has an active trip")

	// ErrRouteAlreadyExists is returned when registering a route id twice.
	ErrRouteAlreadyExists = errors.New("route already exists")
)
