package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"waka/internal/domain"
	"waka/internal/progress"
	"waka/internal/service"
)

// ──────────────────────────────────────────────
// TRIP LIFECYCLE
// ──────────────────────────────────────────────

const metersPerDegLat = 111195.0

// south returns a point the given number of meters south of a waypoint.
func south(w domain.Waypoint, meters float64) (float64, float64) {
	return w.Lat - meters/metersPerDegLat, w.Lng
}

// lagosRoute is a two-leg commute: bus to a transfer point, then keke
// to the final destination 5 km further on.
func lagosRoute() *domain.Route {
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
				FareMin:          300,
				FareMax:          500,
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
				FareMin:          150,
				FareMax:          200,
			},
		},
	}
}

// newTripService wires a TripService against mocks. Publisher may be
// nil; all Redis-backed stores and the hub are left out.
func newTripService(tripRepo *MockTripSessionRepository, routeRepo *MockRouteRepository, publisher *MockAlertPublisher) *service.TripService {
	var sink service.AlertPublisher
	if publisher != nil {
		sink = publisher
	}
	dispatcher := service.NewAlertDispatcher(nil, sink)
	evaluator := progress.NewEvaluator(progress.DefaultThresholds())
	return service.NewTripService(tripRepo, routeRepo, evaluator, dispatcher, nil, nil, nil, nil, nil, nil)
}

func startedTrip(t *testing.T, svc *service.TripService, route *domain.Route) *domain.TripSession {
	t.Helper()
	session, err := svc.StartTrip(context.Background(), service.StartTripRequest{
		UserID:  "user-1",
		RouteID: route.ID,
		Lat:     route.Legs[0].From.Lat,
		Lng:     route.Legs[0].From.Lng,
	})
	if err != nil {
		t.Fatalf("StartTrip: %v", err)
	}
	return session
}

func TestStartTrip_CreatesSessionWithFirstLegInProgress(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	before := time.Now()
	session := startedTrip(t, svc, route)

	if session.Status != domain.TripStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", session.Status)
	}
	if session.CurrentLegIndex != 0 {
		t.Errorf("current leg index = %d, want 0", session.CurrentLegIndex)
	}
	if len(session.Legs) != 2 {
		t.Fatalf("legs = %d, want 2", len(session.Legs))
	}
	if session.Legs[0].Status != domain.LegStatusInProgress {
		t.Errorf("leg 1 status = %s, want IN_PROGRESS", session.Legs[0].Status)
	}
	if session.Legs[1].Status != domain.LegStatusPending {
		t.Errorf("leg 2 status = %s, want PENDING", session.Legs[1].Status)
	}

	// ETA seeded from the route's expected duration plus transfer wait.
	wantETA := before.Add(route.TotalExpectedDuration())
	if session.EstimatedArrival.Before(wantETA.Add(-5*time.Second)) ||
		session.EstimatedArrival.After(wantETA.Add(5*time.Second)) {
		t.Errorf("eta = %v, want ~%v", session.EstimatedArrival, wantETA)
	}

	if tripRepo.CountSessions() != 1 {
		t.Errorf("stored sessions = %d, want 1", tripRepo.CountSessions())
	}
}

func TestStartTrip_RejectsSecondActiveTrip(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	startedTrip(t, svc, route)

	_, err := svc.StartTrip(context.Background(), service.StartTripRequest{
		UserID:  "user-1",
		RouteID: route.ID,
		Lat:     route.Legs[0].From.Lat,
		Lng:     route.Legs[0].From.Lng,
	})
	if !errors.Is(err, service.ErrTripAlreadyActive) {
		t.Fatalf("expected ErrTripAlreadyActive, got %v", err)
	}
	if tripRepo.CountSessions() != 1 {
		t.Errorf("stored sessions = %d, want 1", tripRepo.CountSessions())
	}
}

func TestStartTrip_RejectedWhileStartLockHeld(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	locks := NewMockLockStore()
	locks.ForceAcquireFailure = true

	dispatcher := service.NewAlertDispatcher(nil, nil)
	evaluator := progress.NewEvaluator(progress.DefaultThresholds())
	svc := service.NewTripService(tripRepo, routeRepo, evaluator, dispatcher, nil, nil, locks, nil, nil, nil)

	_, err := svc.StartTrip(context.Background(), service.StartTripRequest{
		UserID:  "user-1",
		RouteID: route.ID,
		Lat:     route.Legs[0].From.Lat,
		Lng:     route.Legs[0].From.Lng,
	})
	if !errors.Is(err, service.ErrTripAlreadyActive) {
		t.Fatalf("expected ErrTripAlreadyActive, got %v", err)
	}
	if tripRepo.CountSessions() != 0 {
		t.Error("no session should be created while the lock is held")
	}
}

func TestStartTrip_RouteNotFound(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripSessionRepository(), NewMockRouteRepository(), nil)

	_, err := svc.StartTrip(context.Background(), service.StartTripRequest{
		UserID:  "user-1",
		RouteID: "missing-route",
		Lat:     6.42,
		Lng:     3.35,
	})
	if !errors.Is(err, service.ErrRouteNotFound) {
		t.Fatalf("expected ErrRouteNotFound, got %v", err)
	}
}

func TestStartTrip_RejectsMalformedRoute(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	route.Legs[1].Seq = 3 // gap in the sequence
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	_, err := svc.StartTrip(context.Background(), service.StartTripRequest{
		UserID:  "user-1",
		RouteID: route.ID,
		Lat:     route.Legs[0].From.Lat,
		Lng:     route.Legs[0].From.Lng,
	})
	if !errors.Is(err, service.ErrMalformedRoute) {
		t.Fatalf("expected ErrMalformedRoute, got %v", err)
	}
}

func TestStartTrip_ValidatesInput(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripSessionRepository(), NewMockRouteRepository(), nil)
	ctx := context.Background()

	cases := []struct {
		name string
		req  service.StartTripRequest
		want error
	}{
		{"missing user", service.StartTripRequest{RouteID: "r", Lat: 6.42, Lng: 3.35}, service.ErrInvalidUserID},
		{"missing route", service.StartTripRequest{UserID: "u", Lat: 6.42, Lng: 3.35}, service.ErrInvalidRouteID},
		{"null island", service.StartTripRequest{UserID: "u", RouteID: "r"}, service.ErrInvalidLocation},
		{"out of range", service.StartTripRequest{UserID: "u", RouteID: "r", Lat: 100, Lng: 3.35}, service.ErrInvalidLocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.StartTrip(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCompleteTrip_ConfirmsArrival(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	session := startedTrip(t, svc, route)

	done, err := svc.CompleteTrip(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}

	if done.Status != domain.TripStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", done.Status)
	}
	if done.EndReason != domain.EndReasonArrived {
		t.Errorf("end reason = %q, want %q", done.EndReason, domain.EndReasonArrived)
	}
	// The in-progress leg is confirmed, the rest skipped.
	if done.Legs[0].Status != domain.LegStatusCompleted {
		t.Errorf("leg 1 status = %s, want COMPLETED", done.Legs[0].Status)
	}
	if done.Legs[1].Status != domain.LegStatusSkipped {
		t.Errorf("leg 2 status = %s, want SKIPPED", done.Legs[1].Status)
	}
	if done.CompletedAt.IsZero() {
		t.Error("CompletedAt should be set")
	}
}

func TestEndTrip_SkipsUnfinishedLegs(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	session := startedTrip(t, svc, route)

	// Ride the bus to the transfer point first.
	lat, lng := south(route.Legs[0].To, 100)
	if _, err := svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		TripID: session.ID, Lat: lat, Lng: lng, AccuracyM: 10,
	}); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}

	done, err := svc.EndTrip(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("EndTrip: %v", err)
	}

	if done.Status != domain.TripStatusCompleted {
		t.Errorf("status = %s, want COMPLETED", done.Status)
	}
	if done.EndReason != domain.EndReasonEndedEarly {
		t.Errorf("end reason = %q, want %q", done.EndReason, domain.EndReasonEndedEarly)
	}
	// Leg 1 finished for real and keeps its status; leg 2 was still
	// underway when the user bailed, so it is skipped, not completed.
	if done.Legs[0].Status != domain.LegStatusCompleted {
		t.Errorf("leg 1 status = %s, want COMPLETED", done.Legs[0].Status)
	}
	if done.Legs[1].Status != domain.LegStatusSkipped {
		t.Errorf("leg 2 status = %s, want SKIPPED", done.Legs[1].Status)
	}
}

func TestCancelTrip_RecordsReasonAndLeavesLegsAlone(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	session := startedTrip(t, svc, route)

	done, err := svc.CancelTrip(context.Background(), session.ID, "wrong route")
	if err != nil {
		t.Fatalf("CancelTrip: %v", err)
	}

	if done.Status != domain.TripStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", done.Status)
	}
	if done.EndReason != domain.EndReasonCancelled {
		t.Errorf("end reason = %q, want %q", done.EndReason, domain.EndReasonCancelled)
	}
	if done.CancelReason != "wrong route" {
		t.Errorf("cancel reason = %q, want %q", done.CancelReason, "wrong route")
	}
	// Cancellation is not completion; leg statuses stay as they were.
	if done.Legs[0].Status != domain.LegStatusInProgress {
		t.Errorf("leg 1 status = %s, want IN_PROGRESS", done.Legs[0].Status)
	}
	if done.Legs[1].Status != domain.LegStatusPending {
		t.Errorf("leg 2 status = %s, want PENDING", done.Legs[1].Status)
	}
}

func TestTerminalTrip_RejectsFurtherOperations(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)
	ctx := context.Background()

	session := startedTrip(t, svc, route)
	if _, err := svc.CompleteTrip(ctx, session.ID); err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}

	if _, err := svc.UpdateLocation(ctx, service.UpdateLocationRequest{
		TripID: session.ID, Lat: 6.45, Lng: 3.35, AccuracyM: 10,
	}); !errors.Is(err, service.ErrTripNotActive) {
		t.Errorf("UpdateLocation on terminal trip: got %v, want ErrTripNotActive", err)
	}
	if _, err := svc.CompleteTrip(ctx, session.ID); !errors.Is(err, service.ErrTripNotActive) {
		t.Errorf("second CompleteTrip: got %v, want ErrTripNotActive", err)
	}
	if _, err := svc.CancelTrip(ctx, session.ID, ""); !errors.Is(err, service.ErrTripNotActive) {
		t.Errorf("CancelTrip on terminal trip: got %v, want ErrTripNotActive", err)
	}
}

func TestGetActiveTrip_NilWhenNone(t *testing.T) {
	t.Parallel()

	svc := newTripService(NewMockTripSessionRepository(), NewMockRouteRepository(), nil)

	session, err := svc.GetActiveTrip(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != nil {
		t.Errorf("expected nil session, got %+v", session)
	}
}

func TestGetActiveTrip_FindsRunningSession(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)

	session := startedTrip(t, svc, route)

	got, err := svc.GetActiveTrip(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetActiveTrip: %v", err)
	}
	if got == nil || got.ID != session.ID {
		t.Errorf("got %+v, want session %s", got, session.ID)
	}
}

func TestGetTripHistory_ReturnsAllSessions(t *testing.T) {
	t.Parallel()

	tripRepo := NewMockTripSessionRepository()
	routeRepo := NewMockRouteRepository()
	route := lagosRoute()
	routeRepo.AddRoute(route)
	svc := newTripService(tripRepo, routeRepo, nil)
	ctx := context.Background()

	first := startedTrip(t, svc, route)
	if _, err := svc.CompleteTrip(ctx, first.ID); err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}
	startedTrip(t, svc, route)

	history, err := svc.GetTripHistory(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetTripHistory: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2", len(history))
	}
}
