package domain

// AlertKind identifies a guidance alert raised while tracking a trip.
type AlertKind string

const (
	AlertTransfer         AlertKind = "transfer_alert"    // early warning, ~1.5 km out
	AlertTransferImminent AlertKind = "transfer_imminent" // ~500 m out
	AlertDestination      AlertKind = "destination_alert" // final leg, near destination
	AlertArrived          AlertKind = "arrived"           // trip auto-completed
)

// AlertEvent is emitted by the progress evaluator at most once per
// kind per leg per trip. The evaluator tags kind and leg; the alert
// dispatcher fills in the human-readable message.
type AlertEvent struct {
	Kind    AlertKind `json:"kind"`
	TripID  string    `json:"trip_id"`
	LegSeq  int       `json:"leg_order"`
	Message string    `json:"message"`
}
