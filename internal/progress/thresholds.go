package progress

import "time"

// Thresholds holds the distance and time cutoffs driving leg
// completion and alert emission. All values are configuration: the
// defaults below suit typical pedestrian/vehicle GPS noise and should
// be tuned against real traces.
type Thresholds struct {
	// Arrival radii: a fix inside this distance of the current leg's
	// destination completes the leg. Vehicle legs get a wider radius
	// to absorb GPS drift while moving in traffic.
	WalkArrivalRadiusM    float64
	VehicleArrivalRadiusM float64

	// Early transfer warning.
	TransferAlertDistanceM float64
	TransferAlertTime      time.Duration

	// Late transfer warning, fired closer to the transfer point.
	TransferImminentDistanceM float64
	TransferImminentTime      time.Duration

	// Near-destination warning on the final leg.
	DestinationAlertDistanceM float64

	// Fixes with reported accuracy worse than this still update the
	// last known position but never complete a leg or raise alerts.
	AccuracyCeilingM float64
}

// DefaultThresholds returns the stock cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WalkArrivalRadiusM:        30,
		VehicleArrivalRadiusM:     150,
		TransferAlertDistanceM:    1500,
		TransferAlertTime:         10 * time.Minute,
		TransferImminentDistanceM: 500,
		TransferImminentTime:      5 * time.Minute,
		DestinationAlertDistanceM: 300,
		AccuracyCeilingM:          100,
	}
}
