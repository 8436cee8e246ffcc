package progress

import (
	"time"

	"waka/internal/domain"
)

// ETAEstimator recomputes the estimated arrival time from remaining
// distance and recent speed.
type ETAEstimator struct {
	// MinSpeedMps is the slowest speed considered a real movement
	// signal. Below it the estimator falls back to the leg's expected
	// pace, so a user waiting at a bus stop doesn't push the ETA
	// toward infinity.
	MinSpeedMps float64
}

// NewETAEstimator returns an estimator with stock settings.
func NewETAEstimator() ETAEstimator {
	return ETAEstimator{MinSpeedMps: 0.5}
}

// Estimate returns the estimated arrival time given the trip is on
// legIndex with distToWaypointM left to the leg's destination and the
// device last moved at speedMps (<= 0 when speed could not be
// derived). The result is never before now.
func (e ETAEstimator) Estimate(route *domain.Route, legIndex int, distToWaypointM, speedMps float64, now time.Time) time.Time {
	if legIndex > route.FinalLegIndex() {
		return now
	}

	remaining := e.currentLegRemaining(route.Legs[legIndex], distToWaypointM, speedMps)
	if route.Legs[legIndex].TransferRequired {
		remaining += route.Legs[legIndex].TransferWait
	}

	for _, leg := range route.Legs[legIndex+1:] {
		remaining += leg.ExpectedDuration
		if leg.TransferRequired {
			remaining += leg.TransferWait
		}
	}

	eta := now.Add(remaining)
	if eta.Before(now) {
		return now
	}
	return eta
}

// currentLegRemaining estimates time left on the active leg. Order of
// preference: recent observed speed, the leg's expected pace, the
// leg's static expected duration.
func (e ETAEstimator) currentLegRemaining(leg domain.Leg, distM, speedMps float64) time.Duration {
	if distM <= 0 {
		return 0
	}

	if speedMps >= e.MinSpeedMps {
		return time.Duration(distM / speedMps * float64(time.Second))
	}

	if leg.DistanceMeters > 0 && leg.ExpectedDuration > 0 {
		fraction := distM / leg.DistanceMeters
		if fraction > 1 {
			fraction = 1
		}
		return time.Duration(fraction * float64(leg.ExpectedDuration))
	}

	return leg.ExpectedDuration
}
