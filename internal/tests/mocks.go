package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"waka/internal/domain"
	"waka/internal/redis"
	"waka/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP SESSION REPOSITORY
// ──────────────────────────────────────────────

// MockTripSessionRepository is a mock implementation of
// TripSessionRepository.
type MockTripSessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.TripSession

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockTripSessionRepository creates a new mock session repository.
func NewMockTripSessionRepository() *MockTripSessionRepository {
	return &MockTripSessionRepository{
		sessions: make(map[string]*domain.TripSession),
	}
}

// AddSession adds a session to the mock repository.
func (m *MockTripSessionRepository) AddSession(session *domain.TripSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
}

func (m *MockTripSessionRepository) Create(ctx context.Context, session *domain.TripSession) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MockTripSessionRepository) GetByID(ctx context.Context, id string) (*domain.TripSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy: the service mutates what it gets back.
	return copySession(session), nil
}

func (m *MockTripSessionRepository) Update(ctx context.Context, session *domain.TripSession) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.ID]; !ok {
		return repository.ErrNotFound
	}
	m.sessions[session.ID] = copySession(session)
	return nil
}

func (m *MockTripSessionRepository) GetActiveByUserID(ctx context.Context, userID string) (*domain.TripSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.UserID == userID && s.Status == domain.TripStatusInProgress {
			return copySession(s), nil
		}
	}
	return nil, nil // No active session
}

func (m *MockTripSessionRepository) GetAllByUserID(ctx context.Context, userID string) ([]*domain.TripSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.TripSession, 0)
	for _, s := range m.sessions {
		if s.UserID == userID {
			result = append(result, copySession(s))
		}
	}
	return result, nil
}

// GetSession returns the stored session for test assertions.
func (m *MockTripSessionRepository) GetSession(id string) *domain.TripSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// CountSessions returns the number of stored sessions.
func (m *MockTripSessionRepository) CountSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// copySession deep-copies the mutable parts (legs, last position) so
// stored state is isolated from what the service mutates in place.
func copySession(s *domain.TripSession) *domain.TripSession {
	c := *s
	c.Legs = make([]domain.LegProgress, len(s.Legs))
	copy(c.Legs, s.Legs)
	if s.LastPosition != nil {
		pos := *s.LastPosition
		c.LastPosition = &pos
	}
	return &c
}

// ──────────────────────────────────────────────
// MOCK ROUTE REPOSITORY
// ──────────────────────────────────────────────

// MockRouteRepository is a mock implementation of RouteRepository.
type MockRouteRepository struct {
	mu     sync.RWMutex
	routes map[string]*domain.Route

	// Counters for verification
	CreateCallCount int32
	GetCallCount    int32

	// Error injection
	CreateError error
	GetError    error
}

// NewMockRouteRepository creates a new mock route repository.
func NewMockRouteRepository() *MockRouteRepository {
	return &MockRouteRepository{
		routes: make(map[string]*domain.Route),
	}
}

// AddRoute adds a route to the mock repository.
func (m *MockRouteRepository) AddRoute(route *domain.Route) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route.ID] = route
}

func (m *MockRouteRepository) Create(ctx context.Context, route *domain.Route) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route.ID] = route
	return nil
}

func (m *MockRouteRepository) GetByID(ctx context.Context, id string) (*domain.Route, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	route, ok := m.routes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return route, nil
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	positions []redis.TripPosition

	// Counters
	UpdatePositionCallCount int32
	RemovePositionCallCount int32

	// Error injection
	UpdatePositionError  error
	FindNearbyTripsError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		positions: make([]redis.TripPosition, 0),
	}
}

func (m *MockLocationStore) UpdatePosition(ctx context.Context, tripID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdatePositionCallCount, 1)
	if m.UpdatePositionError != nil {
		return m.UpdatePositionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.positions {
		if p.TripID == tripID {
			m.positions[i].Lat = lat
			m.positions[i].Lng = lng
			return nil
		}
	}
	m.positions = append(m.positions, redis.TripPosition{TripID: tripID, Lat: lat, Lng: lng})
	return nil
}

func (m *MockLocationStore) FindNearbyTrips(ctx context.Context, lat, lng, radiusKm float64) ([]redis.TripPosition, error) {
	if m.FindNearbyTripsError != nil {
		return nil, m.FindNearbyTripsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Return everything (mock doesn't do real geo filtering).
	result := make([]redis.TripPosition, len(m.positions))
	copy(result, m.positions)
	return result, nil
}

func (m *MockLocationStore) RemovePosition(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.RemovePositionCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.positions {
		if p.TripID == tripID {
			m.positions = append(m.positions[:i], m.positions[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasPosition checks whether a trip has a live position entry.
func (m *MockLocationStore) HasPosition(tripID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.positions {
		if p.TripID == tripID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireUserLock(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:user:" + userID
	if expiry, exists := m.locks[key]; exists {
		if time.Now().Before(expiry) {
			return false, nil // Lock still held.
		}
	}

	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseUserLock(ctx context.Context, userID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:user:"+userID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK ALERT PUBLISHER
// ──────────────────────────────────────────────

// MockAlertPublisher records published alert events.
type MockAlertPublisher struct {
	mu     sync.Mutex
	events []domain.AlertEvent

	// Counters
	PublishCallCount int32

	// Error injection
	PublishError error
}

// NewMockAlertPublisher creates a new mock alert publisher.
func NewMockAlertPublisher() *MockAlertPublisher {
	return &MockAlertPublisher{}
}

func (m *MockAlertPublisher) PublishAlert(ctx context.Context, event domain.AlertEvent) error {
	atomic.AddInt32(&m.PublishCallCount, 1)
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the published events for assertions.
func (m *MockAlertPublisher) Events() []domain.AlertEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]domain.AlertEvent, len(m.events))
	copy(result, m.events)
	return result
}

// CountByKind returns how many events of a kind were published.
func (m *MockAlertPublisher) CountByKind(kind domain.AlertKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.events {
		if e.Kind == kind {
			count++
		}
	}
	return count
}

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)
