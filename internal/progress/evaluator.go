// Package progress contains the pure core of the journey tracker:
// given a trip session, its route and one GPS fix, decide leg
// completion, transfer and arrival alerts, and the new ETA. Nothing
// in this package touches storage or the network.
package progress

import (
	"time"

	"waka/internal/domain"
	"waka/internal/geo"
)

// Result describes what a single fix did to the session.
type Result struct {
	// Stale is set when the fix was older than the last known
	// position. Stale fixes mutate nothing.
	Stale bool

	// LowAccuracy is set when the fix exceeded the accuracy ceiling.
	// Such fixes update the last known position only.
	LowAccuracy bool

	CurrentStepCompleted bool
	NextStepStarted      bool
	TripCompleted        bool

	// DistanceToWaypointM is the distance from the fix to the
	// destination of the current leg (the new current leg, if the
	// fix advanced the trip).
	DistanceToWaypointM float64

	// Alerts raised by this fix, in evaluation order. Kind and leg
	// are set; messages are filled in by the dispatcher.
	Alerts []domain.AlertEvent
}

// Evaluator applies one location fix to a trip session. It mutates
// the session in place; callers own serialization per trip.
type Evaluator struct {
	thresholds Thresholds
	eta        ETAEstimator
}

// NewEvaluator creates an evaluator with the given thresholds.
func NewEvaluator(t Thresholds) *Evaluator {
	return &Evaluator{thresholds: t, eta: NewETAEstimator()}
}

// Evaluate processes a single fix against an in-progress session.
//
// Check order is fixed: stale guard, completion, transfer-imminent,
// transfer-alert, destination-alert, position update, ETA. Completion
// takes precedence over alerts; once a leg completes, the remaining
// checks in the same call run against the new current leg, so an
// alert for the just-completed leg can no longer fire.
func (e *Evaluator) Evaluate(session *domain.TripSession, route *domain.Route, fix domain.Position, now time.Time) Result {
	var res Result

	last := session.LastPosition
	if last != nil && fix.Timestamp.Before(last.Timestamp) {
		// Out-of-order fix: last-writer-wins only moves forward in
		// time. Report distance from the position we trust.
		res.Stale = true
		res.DistanceToWaypointM = e.distanceToWaypoint(*last, route, session.CurrentLegIndex)
		return res
	}

	// Speed from the previous fix, before it gets overwritten.
	speed := speedMps(last, fix)

	dist := e.distanceToWaypoint(fix, route, session.CurrentLegIndex)
	res.DistanceToWaypointM = dist

	if fix.AccuracyM > e.thresholds.AccuracyCeilingM {
		// Too noisy to act on: keep it for display, never advance.
		res.LowAccuracy = true
		session.LastPosition = &fix
		session.EstimatedArrival = e.eta.Estimate(route, session.CurrentLegIndex, dist, 0, now)
		return res
	}

	leg := route.Legs[session.CurrentLegIndex]
	if dist <= e.arrivalRadius(leg.Mode) {
		res.CurrentStepCompleted = true
		lp := session.CurrentLeg()
		lp.Status = domain.LegStatusCompleted
		lp.EndedAt = fix.Timestamp

		if session.CurrentLegIndex == route.FinalLegIndex() {
			// Auto-arrival: no manual confirmation required.
			session.Status = domain.TripStatusCompleted
			session.CompletedAt = now
			session.EndReason = domain.EndReasonArrived
			session.LastPosition = &fix
			session.EstimatedArrival = now
			res.TripCompleted = true
			res.Alerts = append(res.Alerts, domain.AlertEvent{
				Kind:   domain.AlertArrived,
				TripID: session.ID,
				LegSeq: leg.Seq,
			})
			return res
		}

		session.CurrentLegIndex++
		next := session.CurrentLeg()
		next.Status = domain.LegStatusInProgress
		next.StartedAt = fix.Timestamp
		res.NextStepStarted = true

		leg = route.Legs[session.CurrentLegIndex]
		dist = e.distanceToWaypoint(fix, route, session.CurrentLegIndex)
		res.DistanceToWaypointM = dist
	}

	lp := session.CurrentLeg()

	if leg.TransferRequired && !lp.TransferImminentSent &&
		e.within(dist, speed, e.thresholds.TransferImminentDistanceM, e.thresholds.TransferImminentTime) {
		lp.TransferImminentSent = true
		res.Alerts = append(res.Alerts, domain.AlertEvent{
			Kind:   domain.AlertTransferImminent,
			TripID: session.ID,
			LegSeq: leg.Seq,
		})
	}

	if leg.TransferRequired && !lp.TransferAlertSent &&
		e.within(dist, speed, e.thresholds.TransferAlertDistanceM, e.thresholds.TransferAlertTime) {
		lp.TransferAlertSent = true
		res.Alerts = append(res.Alerts, domain.AlertEvent{
			Kind:   domain.AlertTransfer,
			TripID: session.ID,
			LegSeq: leg.Seq,
		})
	}

	if session.CurrentLegIndex == route.FinalLegIndex() && !lp.DestinationAlertSent &&
		dist <= e.thresholds.DestinationAlertDistanceM {
		lp.DestinationAlertSent = true
		res.Alerts = append(res.Alerts, domain.AlertEvent{
			Kind:   domain.AlertDestination,
			TripID: session.ID,
			LegSeq: leg.Seq,
		})
	}

	session.LastPosition = &fix
	session.EstimatedArrival = e.eta.Estimate(route, session.CurrentLegIndex, dist, speed, now)

	return res
}

// within reports whether either the distance cutoff or the
// time-at-current-speed cutoff is satisfied.
func (e *Evaluator) within(distM, speedMps float64, maxDistM float64, maxTime time.Duration) bool {
	if distM <= maxDistM {
		return true
	}
	if speedMps > 0 && maxTime > 0 {
		return time.Duration(distM/speedMps*float64(time.Second)) <= maxTime
	}
	return false
}

func (e *Evaluator) arrivalRadius(mode domain.TransportMode) float64 {
	if mode.IsWalking() {
		return e.thresholds.WalkArrivalRadiusM
	}
	return e.thresholds.VehicleArrivalRadiusM
}

func (e *Evaluator) distanceToWaypoint(pos domain.Position, route *domain.Route, legIndex int) float64 {
	to := route.Legs[legIndex].To
	return geo.DistanceMeters(pos.Lat, pos.Lng, to.Lat, to.Lng)
}

// speedMps derives speed from two consecutive fixes, 0 when it cannot
// be derived.
func speedMps(last *domain.Position, fix domain.Position) float64 {
	if last == nil {
		return 0
	}
	dt := fix.Timestamp.Sub(last.Timestamp).Seconds()
	if dt <= 0 {
		return 0
	}
	return geo.DistanceMeters(last.Lat, last.Lng, fix.Lat, fix.Lng) / dt
}
