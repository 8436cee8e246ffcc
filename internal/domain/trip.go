package domain

import "time"

// TripStatus represents the current status of a trip session.
type TripStatus string

const (
	TripStatusPlanned    TripStatus = "PLANNED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// Terminal reports whether the status accepts no further transitions.
func (s TripStatus) Terminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled
}

// LegStatus represents the per-leg progress state within a trip.
// Transitions are PENDING → IN_PROGRESS → {COMPLETED | SKIPPED}.
type LegStatus string

const (
	LegStatusPending    LegStatus = "PENDING"
	LegStatusInProgress LegStatus = "IN_PROGRESS"
	LegStatusCompleted  LegStatus = "COMPLETED"
	LegStatusSkipped    LegStatus = "SKIPPED"
)

// End reasons recorded on terminal sessions.
const (
	EndReasonArrived    = "arrived"       // destination reached, auto or confirmed
	EndReasonEndedEarly = "ended_by_user" // stopped before the final destination
	EndReasonCancelled  = "cancelled"
)

// Position is one GPS fix: where the device reported itself and when.
type Position struct {
	Lat       float64
	Lng       float64
	AccuracyM float64
	Timestamp time.Time
}

// LegProgress is the mutable per-leg record stored alongside a trip
// session. The three Sent flags are idempotency guards: each
// transitions false→true at most once per leg and is never reset
// while the trip is active.
type LegProgress struct {
	LegSeq int // matches Leg.Seq on the route
	Status LegStatus

	TransferAlertSent    bool
	TransferImminentSent bool
	DestinationAlertSent bool

	StartedAt time.Time
	EndedAt   time.Time
}

// TripSession is the live tracking record for one journey instance.
// It is mutated only by the trip service, under a per-trip lock.
type TripSession struct {
	ID      string
	UserID  string
	RouteID string
	Status  TripStatus

	// CurrentLegIndex is a 0-based pointer into the route's legs.
	// It only ever increases while the trip is in progress.
	CurrentLegIndex int
	Legs            []LegProgress

	LastPosition *Position

	EstimatedArrival time.Time
	StartedAt        time.Time
	CompletedAt      time.Time
	EndReason        string
	CancelReason     string
}

// CurrentLeg returns the leg progress record the trip pointer is on,
// or nil when the index is out of range.
func (t *TripSession) CurrentLeg() *LegProgress {
	if t.CurrentLegIndex < 0 || t.CurrentLegIndex >= len(t.Legs) {
		return nil
	}
	return &t.Legs[t.CurrentLegIndex]
}

// Active reports whether the session still accepts location updates.
func (t *TripSession) Active() bool {
	return t.Status == TripStatusInProgress
}
