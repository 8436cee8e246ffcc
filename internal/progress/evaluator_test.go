package progress

import (
	"testing"
	"time"

	"waka/internal/domain"
)

// metersPerDegLat converts a northward offset in meters to degrees of
// latitude, so tests can place fixes at exact distances from a waypoint.
const metersPerDegLat = 111195.0

func southOf(w domain.Waypoint, meters float64) (float64, float64) {
	return w.Lat - meters/metersPerDegLat, w.Lng
}

// evalRoute is a two-leg route: a bus ride ending in a transfer,
// then a keke leg to the final destination 5 km further north.
func evalRoute() *domain.Route {
	w0 := domain.Waypoint{Lat: 6.4200, Lng: 3.3500, Name: "Ojota"}
	w1 := domain.Waypoint{Lat: 6.5000, Lng: 3.3500, Name: "Obalende"}
	w2 := domain.Waypoint{Lat: w1.Lat + 5000/metersPerDegLat, Lng: 3.3500, Name: "Falomo"}
	return &domain.Route{
		ID:   "route-1",
		Name: "Ojota to Falomo",
		Legs: []domain.Leg{
			{
				RouteID:          "route-1",
				Seq:              1,
				Mode:             domain.ModeBus,
				From:             w0,
				To:               w1,
				DistanceMeters:   8900,
				ExpectedDuration: 25 * time.Minute,
				TransferRequired: true,
				TransferWait:     3 * time.Minute,
			},
			{
				RouteID:          "route-1",
				Seq:              2,
				Mode:             domain.ModeKeke,
				From:             w1,
				To:               w2,
				DistanceMeters:   5000,
				ExpectedDuration: 15 * time.Minute,
			},
		},
	}
}

func evalSession(route *domain.Route, legIndex int) *domain.TripSession {
	legs := make([]domain.LegProgress, len(route.Legs))
	for i, leg := range route.Legs {
		legs[i] = domain.LegProgress{LegSeq: leg.Seq, Status: domain.LegStatusPending}
		if i < legIndex {
			legs[i].Status = domain.LegStatusCompleted
		}
	}
	legs[legIndex].Status = domain.LegStatusInProgress
	return &domain.TripSession{
		ID:              "trip-1",
		UserID:          "user-1",
		RouteID:         route.ID,
		Status:          domain.TripStatusInProgress,
		CurrentLegIndex: legIndex,
		Legs:            legs,
	}
}

func fixAt(lat, lng float64, ts time.Time) domain.Position {
	return domain.Position{Lat: lat, Lng: lng, AccuracyM: 10, Timestamp: ts}
}

func TestEvaluate_CompletesLegAndStartsNext(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 0)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	lat, lng := southOf(route.Legs[0].To, 100)
	res := e.Evaluate(session, route, fixAt(lat, lng, now), now)

	if !res.CurrentStepCompleted {
		t.Fatal("expected current leg to complete inside the vehicle arrival radius")
	}
	if !res.NextStepStarted {
		t.Fatal("expected the next leg to start")
	}
	if res.TripCompleted {
		t.Fatal("trip must not complete with a leg remaining")
	}
	if session.CurrentLegIndex != 1 {
		t.Errorf("current leg index = %d, want 1", session.CurrentLegIndex)
	}
	if session.Legs[0].Status != domain.LegStatusCompleted {
		t.Errorf("leg 1 status = %s, want COMPLETED", session.Legs[0].Status)
	}
	if session.Legs[1].Status != domain.LegStatusInProgress {
		t.Errorf("leg 2 status = %s, want IN_PROGRESS", session.Legs[1].Status)
	}
	// Alerts for the completed leg may no longer fire, and the new leg
	// has no transfer; the destination is still ~4.9 km away.
	if len(res.Alerts) != 0 {
		t.Errorf("expected no alerts, got %v", res.Alerts)
	}
	if res.DistanceToWaypointM < 4800 || res.DistanceToWaypointM > 5000 {
		t.Errorf("distance to new waypoint = %f, want ~4900", res.DistanceToWaypointM)
	}
}

func TestEvaluate_WalkLegUsesTighterRadius(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	route.Legs[1].Mode = domain.ModeWalk
	session := evalSession(route, 1)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	// 100 m would complete a vehicle leg but not a walking one.
	lat, lng := southOf(route.Legs[1].To, 100)
	res := e.Evaluate(session, route, fixAt(lat, lng, now), now)
	if res.CurrentStepCompleted {
		t.Fatal("walking leg must not complete at 100 m")
	}

	lat, lng = southOf(route.Legs[1].To, 25)
	res = e.Evaluate(session, route, fixAt(lat, lng, now.Add(10*time.Second)), now)
	if !res.CurrentStepCompleted {
		t.Fatal("walking leg should complete at 25 m")
	}
}

func TestEvaluate_TransferAlertsFireOnceByDistance(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 0)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	// 450 m from the transfer point: inside both transfer cutoffs,
	// outside the arrival radius.
	lat, lng := southOf(route.Legs[0].To, 450)
	res := e.Evaluate(session, route, fixAt(lat, lng, now), now)

	if len(res.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %v", len(res.Alerts), res.Alerts)
	}
	if res.Alerts[0].Kind != domain.AlertTransferImminent {
		t.Errorf("first alert = %s, want %s", res.Alerts[0].Kind, domain.AlertTransferImminent)
	}
	if res.Alerts[1].Kind != domain.AlertTransfer {
		t.Errorf("second alert = %s, want %s", res.Alerts[1].Kind, domain.AlertTransfer)
	}
	if res.Alerts[0].LegSeq != 1 || res.Alerts[1].LegSeq != 1 {
		t.Errorf("alerts should target leg 1, got %+v", res.Alerts)
	}
	if !session.Legs[0].TransferImminentSent || !session.Legs[0].TransferAlertSent {
		t.Error("sent flags should be set after emission")
	}

	// Same zone ten seconds later: flags hold, nothing repeats.
	lat, lng = southOf(route.Legs[0].To, 440)
	res = e.Evaluate(session, route, fixAt(lat, lng, now.Add(10*time.Second)), now.Add(10*time.Second))
	if len(res.Alerts) != 0 {
		t.Errorf("alerts must not repeat, got %v", res.Alerts)
	}
}

func TestEvaluate_TransferAlertsFireByTimeAtSpeed(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 0)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	// Previous fix 3 km out; one minute later 2.4 km out. That is
	// 10 m/s, so the transfer point is 4 minutes away even though the
	// distance alone is outside both cutoffs.
	lat, lng := southOf(route.Legs[0].To, 3000)
	session.LastPosition = &domain.Position{Lat: lat, Lng: lng, AccuracyM: 10, Timestamp: now}

	lat, lng = southOf(route.Legs[0].To, 2400)
	res := e.Evaluate(session, route, fixAt(lat, lng, now.Add(time.Minute)), now.Add(time.Minute))

	if len(res.Alerts) != 2 {
		t.Fatalf("expected both transfer alerts by time, got %v", res.Alerts)
	}
}

func TestEvaluate_StaleFixMutatesNothing(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 0)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	lat, lng := southOf(route.Legs[0].To, 2000)
	last := &domain.Position{Lat: lat, Lng: lng, AccuracyM: 10, Timestamp: now}
	session.LastPosition = last

	// A fix older than the last one, even if it sits on the waypoint.
	res := e.Evaluate(session, route, fixAt(route.Legs[0].To.Lat, route.Legs[0].To.Lng, now.Add(-30*time.Second)), now)

	if !res.Stale {
		t.Fatal("expected the fix to be reported stale")
	}
	if res.CurrentStepCompleted || len(res.Alerts) != 0 {
		t.Error("stale fix must not complete legs or raise alerts")
	}
	if session.LastPosition != last {
		t.Error("stale fix must not replace the last known position")
	}
	if session.CurrentLegIndex != 0 {
		t.Errorf("current leg index = %d, want 0", session.CurrentLegIndex)
	}
	if res.DistanceToWaypointM < 1900 || res.DistanceToWaypointM > 2100 {
		t.Errorf("distance should be measured from the trusted position, got %f", res.DistanceToWaypointM)
	}
}

func TestEvaluate_LowAccuracyUpdatesPositionOnly(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 0)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	fix := domain.Position{
		Lat:       route.Legs[0].To.Lat,
		Lng:       route.Legs[0].To.Lng,
		AccuracyM: 150,
		Timestamp: now,
	}
	res := e.Evaluate(session, route, fix, now)

	if !res.LowAccuracy {
		t.Fatal("expected the fix to be flagged low accuracy")
	}
	if res.CurrentStepCompleted || len(res.Alerts) != 0 {
		t.Error("low-accuracy fix must not complete legs or raise alerts")
	}
	if session.CurrentLegIndex != 0 {
		t.Errorf("current leg index = %d, want 0", session.CurrentLegIndex)
	}
	if session.LastPosition == nil || session.LastPosition.AccuracyM != 150 {
		t.Error("low-accuracy fix should still become the last known position")
	}
	if session.EstimatedArrival.Before(now) {
		t.Error("estimated arrival must not be before now")
	}
}

func TestEvaluate_FinalLegArrivalCompletesTrip(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 1)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	lat, lng := southOf(route.Legs[1].To, 100)
	res := e.Evaluate(session, route, fixAt(lat, lng, now), now)

	if !res.TripCompleted {
		t.Fatal("expected the trip to auto-complete on the final leg")
	}
	if session.Status != domain.TripStatusCompleted {
		t.Errorf("trip status = %s, want COMPLETED", session.Status)
	}
	if session.EndReason != domain.EndReasonArrived {
		t.Errorf("end reason = %q, want %q", session.EndReason, domain.EndReasonArrived)
	}
	if session.Legs[1].Status != domain.LegStatusCompleted {
		t.Errorf("final leg status = %s, want COMPLETED", session.Legs[1].Status)
	}
	if len(res.Alerts) != 1 || res.Alerts[0].Kind != domain.AlertArrived {
		t.Fatalf("expected a single arrived alert, got %v", res.Alerts)
	}
	if !session.EstimatedArrival.Equal(now) {
		t.Errorf("ETA on arrival = %v, want %v", session.EstimatedArrival, now)
	}
}

func TestEvaluate_DestinationAlertFiresOnce(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 1)
	e := NewEvaluator(DefaultThresholds())
	now := time.Now()

	lat, lng := southOf(route.Legs[1].To, 250)
	res := e.Evaluate(session, route, fixAt(lat, lng, now), now)
	if len(res.Alerts) != 1 || res.Alerts[0].Kind != domain.AlertDestination {
		t.Fatalf("expected a destination alert at 250 m, got %v", res.Alerts)
	}

	lat, lng = southOf(route.Legs[1].To, 200)
	res = e.Evaluate(session, route, fixAt(lat, lng, now.Add(10*time.Second)), now.Add(10*time.Second))
	if len(res.Alerts) != 0 {
		t.Errorf("destination alert must not repeat, got %v", res.Alerts)
	}
}

func TestEvaluate_LegIndexNeverDecreases(t *testing.T) {
	t.Parallel()

	route := evalRoute()
	session := evalSession(route, 0)
	e := NewEvaluator(DefaultThresholds())
	start := time.Now()

	// Walk the whole journey in 500 m steps, with one backward jitter
	// near the transfer point thrown in.
	distances := []float64{4000, 3000, 2000, 1000, 400, 100, 600}
	prev := 0
	for i, d := range distances {
		var lat, lng float64
		if i < 6 {
			lat, lng = southOf(route.Legs[0].To, d)
		} else {
			// Jitter back toward the transfer point after advancing.
			lat, lng = southOf(route.Legs[1].From, -d)
		}
		ts := start.Add(time.Duration(i) * time.Minute)
		e.Evaluate(session, route, fixAt(lat, lng, ts), ts)
		if session.CurrentLegIndex < prev {
			t.Fatalf("leg index decreased from %d to %d at step %d", prev, session.CurrentLegIndex, i)
		}
		prev = session.CurrentLegIndex
	}
	if session.CurrentLegIndex != 1 {
		t.Errorf("final leg index = %d, want 1", session.CurrentLegIndex)
	}
}
