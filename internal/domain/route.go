package domain

import (
	"errors"
	"time"
)

// TransportMode represents the mode of transport for a leg.
type TransportMode string

const (
	ModeWalk  TransportMode = "WALK"
	ModeBus   TransportMode = "BUS"
	ModeTaxi  TransportMode = "TAXI"
	ModeKeke  TransportMode = "KEKE"
	ModeOkada TransportMode = "OKADA"
	ModeOther TransportMode = "OTHER"
)

// IsWalking reports whether the mode is on foot. Walking legs get a
// tighter arrival radius than vehicle legs.
func (m TransportMode) IsWalking() bool {
	return m == ModeWalk
}

// Waypoint is a geographic point marking the start or end of a leg.
type Waypoint struct {
	Lat  float64
	Lng  float64
	Name string // optional named location, e.g. "Obalende Motor Park"
}

// Leg is one ordered segment of a route with a single transport mode.
// Legs are immutable once the route is registered.
type Leg struct {
	RouteID          string
	Seq              int // 1..N, unique, contiguous
	Mode             TransportMode
	From             Waypoint
	To               Waypoint
	DistanceMeters   float64
	ExpectedDuration time.Duration
	FareMin          float64
	FareMax          float64
	TransferRequired bool
	TransferWait     time.Duration // estimated wait at the transfer point
}

// Route is an immutable ordered sequence of legs supplied by the
// route planner. This service never mutates a route.
type Route struct {
	ID        string
	Name      string
	Legs      []Leg
	CreatedAt time.Time
}

// Route validation errors.
var (
	ErrRouteHasNoLegs        = errors.New("route has no legs")
	ErrLegOrderNotContiguous = errors.New("leg sequence is not contiguous from 1")
)

// Validate checks that the route has at least one leg and that leg
// sequence numbers run 1..N without gaps or duplicates.
func (r *Route) Validate() error {
	if len(r.Legs) == 0 {
		return ErrRouteHasNoLegs
	}
	for i, leg := range r.Legs {
		if leg.Seq != i+1 {
			return ErrLegOrderNotContiguous
		}
	}
	return nil
}

// TotalExpectedDuration sums expected leg durations and transfer waits.
func (r *Route) TotalExpectedDuration() time.Duration {
	var total time.Duration
	for _, leg := range r.Legs {
		total += leg.ExpectedDuration
		if leg.TransferRequired {
			total += leg.TransferWait
		}
	}
	return total
}

// FinalLegIndex returns the 0-based index of the last leg.
func (r *Route) FinalLegIndex() int {
	return len(r.Legs) - 1
}
