package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"roam/internal/domain"
	"roam/internal/routing"
)

// ──────────────────────────────────────────────
// MOCK POSITION REPOSITORY
// ──────────────────────────────────────────────

// MockPositionRepository is a mock implementation of PositionRepository.
type MockPositionRepository struct {
	mu      sync.RWMutex
	records []*domain.PositionRecord

	// Counters for verification
	AppendCallCount int32

	// Error injection
	AppendError error
}

// NewMockPositionRepository creates a new mock position repository.
func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{}
}

func (m *MockPositionRepository) Append(ctx context.Context, record *domain.PositionRecord) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MockPositionRepository) GetByTrip(ctx context.Context, tripID string, limit int) ([]*domain.PositionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.PositionRecord
	for _, r := range m.records {
		if r.TripID == tripID {
			out = append(out, r)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Records returns a copy of the appended records.
func (m *MockPositionRepository) Records() []*domain.PositionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.PositionRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ──────────────────────────────────────────────
// MOCK STEP STATUS REPOSITORY
// ──────────────────────────────────────────────

// MockStepStatusRepository is a mock implementation of StepStatusRepository.
type MockStepStatusRepository struct {
	mu       sync.RWMutex
	statuses map[string]*domain.StepStatus // keyed by tripID:stepID

	// Counters for verification
	UpsertCallCount int32

	// Error injection
	UpsertError error
}

// NewMockStepStatusRepository creates a new mock step status repository.
func NewMockStepStatusRepository() *MockStepStatusRepository {
	return &MockStepStatusRepository{
		statuses: make(map[string]*domain.StepStatus),
	}
}

func (m *MockStepStatusRepository) Upsert(ctx context.Context, status *domain.StepStatus) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *status
	m.statuses[status.TripID+":"+status.StepID] = &copied
	return nil
}

func (m *MockStepStatusRepository) GetByTrip(ctx context.Context, tripID string) ([]*domain.StepStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.StepStatus
	for _, s := range m.statuses {
		if s.TripID == tripID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Status returns the latest persisted status for (trip, step), if any.
func (m *MockStepStatusRepository) Status(tripID, stepID string) *domain.StepStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.statuses[tripID+":"+stepID]; ok {
		copied := *s
		return &copied
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK ALERTER
// ──────────────────────────────────────────────

// MockAlerter records every notification request it receives. Unlike the
// real deduper it does not suppress repeats, so tests can assert the exact
// scenario sequence the engine produced.
type MockAlerter struct {
	mu        sync.RWMutex
	delivered []domain.NotificationScenario

	// Counters for verification
	NotifyCallCount    int32
	ClearTripCallCount int32

	// Error injection
	NotifyError    error
	ClearTripError error
}

// NewMockAlerter creates a new mock alerter.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

func (m *MockAlerter) NotifyOnce(ctx context.Context, tripID, stepID string, scenario domain.NotificationScenario, title, body string, data map[string]interface{}) error {
	atomic.AddInt32(&m.NotifyCallCount, 1)
	if m.NotifyError != nil {
		return m.NotifyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, scenario)
	return nil
}

func (m *MockAlerter) ClearTrip(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.ClearTripCallCount, 1)
	return m.ClearTripError
}

// Delivered returns a copy of the scenarios seen so far.
func (m *MockAlerter) Delivered() []domain.NotificationScenario {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.NotificationScenario, len(m.delivered))
	copy(out, m.delivered)
	return out
}

// ──────────────────────────────────────────────
// MOCK TRAVELER LOCATOR
// ──────────────────────────────────────────────

// MockTravelerLocator is a mock implementation of TravelerLocator.
type MockTravelerLocator struct {
	mu        sync.RWMutex
	locations map[string][2]float64

	// Counters for verification
	UpdateCallCount int32
	RemoveCallCount int32

	// Error injection
	UpdateError error
	RemoveError error
}

// NewMockTravelerLocator creates a new mock traveler locator.
func NewMockTravelerLocator() *MockTravelerLocator {
	return &MockTravelerLocator{
		locations: make(map[string][2]float64),
	}
}

func (m *MockTravelerLocator) UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[tripID] = [2]float64{lat, lng}
	return nil
}

func (m *MockTravelerLocator) RemoveLocation(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.RemoveCallCount, 1)
	if m.RemoveError != nil {
		return m.RemoveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, tripID)
	return nil
}

// HasLocation reports whether a location is currently held for the trip.
func (m *MockTravelerLocator) HasLocation(tripID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[tripID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK SESSION LOCKER
// ──────────────────────────────────────────────

// MockSessionLocker is a mock implementation of SessionLocker.
type MockSessionLocker struct {
	mu    sync.Mutex
	locks map[string]bool

	// When false, AcquireTrackingLock reports the lock as already held.
	AcquireResult bool

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error
	ReleaseError error
}

// NewMockSessionLocker creates a new mock session locker that grants locks.
func NewMockSessionLocker() *MockSessionLocker {
	return &MockSessionLocker{
		locks:         make(map[string]bool),
		AcquireResult: true,
	}
}

func (m *MockSessionLocker) AcquireTrackingLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if !m.AcquireResult {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[tripID] = true
	return true, nil
}

func (m *MockSessionLocker) ReleaseTrackingLock(ctx context.Context, tripID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return m.ReleaseError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, tripID)
	return nil
}

// Held reports whether the lock for the trip is currently held.
func (m *MockSessionLocker) Held(tripID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[tripID]
}

// ──────────────────────────────────────────────
// MOCK ROUTE RESOLVER
// ──────────────────────────────────────────────

// MockRouteResolver is a mock implementation of RouteResolver.
type MockRouteResolver struct {
	// Counters for verification
	ResolveCallCount int32

	// RouteToReturn is handed back on every call.
	RouteToReturn *routing.Route
}

// NewMockRouteResolver creates a new mock route resolver.
func NewMockRouteResolver() *MockRouteResolver {
	return &MockRouteResolver{
		RouteToReturn: &routing.Route{
			DistanceMeters:  1200,
			DurationSeconds: 300,
		},
	}
}

func (m *MockRouteResolver) Resolve(ctx context.Context, stepID string, origin, dest routing.LatLng) *routing.Route {
	atomic.AddInt32(&m.ResolveCallCount, 1)
	return m.RouteToReturn
}

// ──────────────────────────────────────────────
// TEST HELPERS
// ──────────────────────────────────────────────

// waitFor polls cond until it holds or the deadline passes. Tick handling
// fans out to goroutines, so assertions about its side effects have to
// tolerate a short delay.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
