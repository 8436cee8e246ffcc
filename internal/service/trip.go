package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"waka/internal/domain"
	"waka/internal/geo"
	"waka/internal/hub"
	"waka/internal/metrics"
	"waka/internal/progress"
	"waka/internal/redis"
	"waka/internal/repository"
)

// How long the cross-instance start lock is held while a session is
// being created.
const startLockTTL = 5 * time.Second

// TripService owns the trip session lifecycle: it is the only writer
// of session state. Redis stores, the hub, the publisher and the
// metrics collector are optional; a nil dependency disables that
// side effect.
type TripService struct {
	tripRepo      repository.TripSessionRepository
	routeRepo     repository.RouteRepository
	evaluator     *progress.Evaluator
	dispatcher    *AlertDispatcher
	notifications *NotificationService

	locations redis.LocationStoreInterface
	locks     redis.LockStoreInterface
	cache     redis.CacheStoreInterface

	progressHub *hub.Hub
	collector   *metrics.Collector

	tripLocks *tripLocks

	// now is swappable for tests.
	now func() time.Time
}

// NewTripService creates a new TripService.
func NewTripService(
	tripRepo repository.TripSessionRepository,
	routeRepo repository.RouteRepository,
	evaluator *progress.Evaluator,
	dispatcher *AlertDispatcher,
	notifications *NotificationService,
	locations redis.LocationStoreInterface,
	locks redis.LockStoreInterface,
	cache redis.CacheStoreInterface,
	progressHub *hub.Hub,
	collector *metrics.Collector,
) *TripService {
	return &TripService{
		tripRepo:      tripRepo,
		routeRepo:     routeRepo,
		evaluator:     evaluator,
		dispatcher:    dispatcher,
		notifications: notifications,
		locations:     locations,
		locks:         locks,
		cache:         cache,
		progressHub:   progressHub,
		collector:     collector,
		tripLocks:     newTripLocks(),
		now:           time.Now,
	}
}

// StartTripRequest contains the parameters for starting a trip.
type StartTripRequest struct {
	UserID  string
	RouteID string
	Lat     float64
	Lng     float64
}

// StartTrip creates a new trip session on the given route, with leg 1
// in progress and the rest pending. Fails when the user already has
// an active trip.
func (s *TripService) StartTrip(ctx context.Context, req StartTripRequest) (*domain.TripSession, error) {
	if req.UserID == "" {
		return nil, ErrInvalidUserID
	}
	if req.RouteID == "" {
		return nil, ErrInvalidRouteID
	}
	if !geo.ValidCoordinates(req.Lat, req.Lng) {
		return nil, ErrInvalidLocation
	}

	// Cross-instance guard: two concurrent starts for the same user
	// must not both pass the active-trip check below.
	if s.locks != nil {
		ok, err := s.locks.AcquireUserLock(ctx, req.UserID, startLockTTL)
		if err == nil && !ok {
			return nil, ErrTripAlreadyActive
		}
		if err == nil {
			defer func() {
				_ = s.locks.ReleaseUserLock(ctx, req.UserID)
			}()
		}
	}

	existing, err := s.tripRepo.GetActiveByUserID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrTripAlreadyActive
	}

	route, err := s.loadRoute(ctx, req.RouteID)
	if err != nil {
		return nil, err
	}
	if err := route.Validate(); err != nil {
		return nil, ErrMalformedRoute
	}

	now := s.now()

	session := &domain.TripSession{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		RouteID:          route.ID,
		Status:           domain.TripStatusInProgress,
		CurrentLegIndex:  0,
		EstimatedArrival: now.Add(route.TotalExpectedDuration()),
		StartedAt:        now,
		LastPosition: &domain.Position{
			Lat:       req.Lat,
			Lng:       req.Lng,
			Timestamp: now,
		},
	}

	for _, leg := range route.Legs {
		lp := domain.LegProgress{LegSeq: leg.Seq, Status: domain.LegStatusPending}
		if leg.Seq == 1 {
			lp.Status = domain.LegStatusInProgress
			lp.StartedAt = now
		}
		session.Legs = append(session.Legs, lp)
	}

	if err := s.tripRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetActiveTripID(ctx, req.UserID, session.ID); err != nil {
			log.Printf("active trip cache set failed: user=%s: %v", req.UserID, err)
		}
	}
	if s.locations != nil {
		if err := s.locations.UpdatePosition(ctx, session.ID, req.Lat, req.Lng); err != nil {
			log.Printf("position store update failed: trip=%s: %v", session.ID, err)
		}
	}
	if s.collector != nil {
		s.collector.TripsStarted.Inc()
		s.collector.ActiveTrips.Inc()
	}

	return session, nil
}

// UpdateLocationRequest carries one GPS fix for a trip.
type UpdateLocationRequest struct {
	TripID    string
	Lat       float64
	Lng       float64
	AccuracyM float64
	// Timestamp is the device-reported fix time; zero means now.
	Timestamp time.Time
}

// ProgressResult is what one accepted location fix reports back.
type ProgressResult struct {
	Session              *domain.TripSession
	CurrentStepCompleted bool
	NextStepStarted      bool
	TripCompleted        bool
	DistanceToWaypointM  float64
	EstimatedArrival     time.Time
	Alerts               []domain.AlertEvent
}

// UpdateLocation feeds a location fix through the progress evaluator
// and persists the result. Calls for the same trip are serialized;
// different trips proceed in parallel.
func (s *TripService) UpdateLocation(ctx context.Context, req UpdateLocationRequest) (*ProgressResult, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if !geo.ValidCoordinates(req.Lat, req.Lng) {
		return nil, ErrInvalidLocation
	}

	unlock := s.tripLocks.lock(req.TripID)
	defer unlock()

	session, err := s.getSession(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, ErrTripNotActive
	}

	route, err := s.loadRoute(ctx, session.RouteID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fix := domain.Position{
		Lat:       req.Lat,
		Lng:       req.Lng,
		AccuracyM: req.AccuracyM,
		Timestamp: req.Timestamp,
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = now
	}

	start := time.Now()
	evalRes := s.evaluator.Evaluate(session, route, fix, now)
	s.observeEvaluate(time.Since(start), evalRes)

	result := &ProgressResult{
		Session:              session,
		CurrentStepCompleted: evalRes.CurrentStepCompleted,
		NextStepStarted:      evalRes.NextStepStarted,
		TripCompleted:        evalRes.TripCompleted,
		DistanceToWaypointM:  evalRes.DistanceToWaypointM,
		EstimatedArrival:     session.EstimatedArrival,
	}

	if evalRes.Stale {
		// Out-of-order fix: nothing changed, nothing to persist.
		return result, nil
	}

	if err := s.tripRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	result.Alerts = s.dispatcher.Dispatch(ctx, session, route, evalRes.Alerts)

	if s.locations != nil {
		if err := s.locations.UpdatePosition(ctx, session.ID, req.Lat, req.Lng); err != nil {
			log.Printf("position store update failed: trip=%s: %v", session.ID, err)
		}
	}

	if evalRes.TripCompleted {
		s.cleanupTerminal(ctx, session)
		if s.collector != nil {
			s.collector.TripsCompleted.Inc()
		}
	}

	s.broadcast(session, result)

	return result, nil
}

// CompleteTrip is the user's manual confirmation of arrival. The
// current leg is marked completed and any still-pending legs skipped.
func (s *TripService) CompleteTrip(ctx context.Context, tripID string) (*domain.TripSession, error) {
	return s.terminate(ctx, tripID, func(session *domain.TripSession) {
		session.Status = domain.TripStatusCompleted
		session.EndReason = domain.EndReasonArrived
		closeOpenLegs(session, true)
	})
}

// EndTrip stops tracking before the final destination. Same terminal
// bucket as CompleteTrip, different recorded reason; completed legs
// keep their status.
func (s *TripService) EndTrip(ctx context.Context, tripID string) (*domain.TripSession, error) {
	session, err := s.terminate(ctx, tripID, func(session *domain.TripSession) {
		session.Status = domain.TripStatusCompleted
		session.EndReason = domain.EndReasonEndedEarly
		closeOpenLegs(session, false)
	})
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		_ = s.notifications.NotifyTripEnded(ctx, session)
	}

	return session, nil
}

// CancelTrip abandons the trip. No legs are marked completed.
func (s *TripService) CancelTrip(ctx context.Context, tripID, reason string) (*domain.TripSession, error) {
	session, err := s.terminate(ctx, tripID, func(session *domain.TripSession) {
		session.Status = domain.TripStatusCancelled
		session.EndReason = domain.EndReasonCancelled
		session.CancelReason = reason
	})
	if err != nil {
		return nil, err
	}

	if s.notifications != nil {
		_ = s.notifications.NotifyTripCancelled(ctx, session)
	}
	if s.collector != nil {
		s.collector.TripsCancelled.Inc()
	}

	return session, nil
}

// GetActiveTrip retrieves the user's in-progress session. Returns
// nil, nil when there is none; absence is not an error.
func (s *TripService) GetActiveTrip(ctx context.Context, userID string) (*domain.TripSession, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	if s.cache != nil {
		tripID, err := s.cache.GetActiveTripID(ctx, userID)
		if err == nil && tripID != "" {
			session, err := s.tripRepo.GetByID(ctx, tripID)
			if err == nil && session.Active() {
				return session, nil
			}
		}
	}

	session, err := s.tripRepo.GetActiveByUserID(ctx, userID)
	if err != nil || session == nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.SetActiveTripID(ctx, userID, session.ID)
	}

	return session, nil
}

// GetTrip retrieves a session by trip ID.
func (s *TripService) GetTrip(ctx context.Context, tripID string) (*domain.TripSession, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.getSession(ctx, tripID)
}

// GetTripHistory retrieves a user's sessions, newest first.
func (s *TripService) GetTripHistory(ctx context.Context, userID string) ([]*domain.TripSession, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	return s.tripRepo.GetAllByUserID(ctx, userID)
}

// NearbyTrips returns live trips within radiusKm of a point.
func (s *TripService) NearbyTrips(ctx context.Context, lat, lng, radiusKm float64) ([]redis.TripPosition, error) {
	if !geo.ValidCoordinates(lat, lng) {
		return nil, ErrInvalidLocation
	}
	if s.locations == nil {
		return nil, nil
	}
	return s.locations.FindNearbyTrips(ctx, lat, lng, radiusKm)
}

// terminate applies a terminal transition under the per-trip lock.
// It shares the lock with UpdateLocation, so a terminal write lands
// strictly before or after any in-flight evaluation.
func (s *TripService) terminate(ctx context.Context, tripID string, apply func(*domain.TripSession)) (*domain.TripSession, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	unlock := s.tripLocks.lock(tripID)
	defer unlock()

	session, err := s.getSession(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !session.Active() {
		return nil, ErrTripNotActive
	}

	session.CompletedAt = s.now()
	apply(session)

	if err := s.tripRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.cleanupTerminal(ctx, session)

	return session, nil
}

// closeOpenLegs finishes leg bookkeeping on a terminal transition.
// The in-progress leg is completed when the user confirmed arrival,
// skipped when they stopped early; pending legs are always skipped.
func closeOpenLegs(session *domain.TripSession, confirmedArrival bool) {
	for i := range session.Legs {
		lp := &session.Legs[i]
		switch lp.Status {
		case domain.LegStatusInProgress:
			if confirmedArrival {
				lp.Status = domain.LegStatusCompleted
			} else {
				lp.Status = domain.LegStatusSkipped
			}
			lp.EndedAt = session.CompletedAt
		case domain.LegStatusPending:
			lp.Status = domain.LegStatusSkipped
		}
	}
}

func (s *TripService) getSession(ctx context.Context, tripID string) (*domain.TripSession, error) {
	session, err := s.tripRepo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return session, nil
}

// loadRoute fetches a route through the cache. Routes are immutable,
// so serving a cached copy is always safe.
func (s *TripService) loadRoute(ctx context.Context, routeID string) (*domain.Route, error) {
	if s.cache != nil {
		route, err := s.cache.GetRoute(ctx, routeID)
		if err == nil && route != nil {
			return route, nil
		}
	}

	route, err := s.routeRepo.GetByID(ctx, routeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetRoute(ctx, route); err != nil {
			log.Printf("route cache set failed: route=%s: %v", routeID, err)
		}
	}

	return route, nil
}

// cleanupTerminal drops the live-position entry and the active-trip
// pointer once a session leaves IN_PROGRESS.
func (s *TripService) cleanupTerminal(ctx context.Context, session *domain.TripSession) {
	if s.locations != nil {
		if err := s.locations.RemovePosition(ctx, session.ID); err != nil {
			log.Printf("position store remove failed: trip=%s: %v", session.ID, err)
		}
	}
	if s.cache != nil {
		if err := s.cache.InvalidateActiveTrip(ctx, session.UserID); err != nil {
			log.Printf("active trip cache invalidate failed: user=%s: %v", session.UserID, err)
		}
	}
	if s.collector != nil {
		s.collector.ActiveTrips.Dec()
	}
}

func (s *TripService) observeEvaluate(d time.Duration, res progress.Result) {
	if s.collector == nil {
		return
	}

	s.collector.FixesProcessed.Inc()
	s.collector.EvaluateDuration.Observe(d.Seconds())

	switch {
	case res.Stale:
		s.collector.StaleFixes.Inc()
	case res.LowAccuracy:
		s.collector.LowAccuracyFixes.Inc()
	}
	if res.CurrentStepCompleted {
		s.collector.LegsCompleted.Inc()
	}
	for _, event := range res.Alerts {
		s.collector.AlertsEmitted.WithLabelValues(string(event.Kind)).Inc()
	}
}

func (s *TripService) broadcast(session *domain.TripSession, result *ProgressResult) {
	if s.progressHub == nil {
		return
	}

	s.progressHub.Broadcast(hub.ProgressUpdate{
		TripID:              session.ID,
		Status:              string(session.Status),
		CurrentLegIndex:     session.CurrentLegIndex,
		DistanceToWaypointM: result.DistanceToWaypointM,
		EstimatedArrival:    session.EstimatedArrival,
		TripCompleted:       result.TripCompleted,
		Alerts:              result.Alerts,
	})
}
