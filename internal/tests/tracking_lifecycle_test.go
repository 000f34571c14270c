package tests

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"roam/internal/config"
	"roam/internal/domain"
	"roam/internal/routing"
	"roam/internal/tracking"
)

func testTrackingConfig() config.TrackingConfig {
	return config.TrackingConfig{
		GeofenceRadiusMeters: 100,
		ArrivalTolerance:     5 * time.Minute,
		LateThreshold:        10 * time.Minute,
		PositionHistorySize:  50,
	}
}

type trackingFixture struct {
	manager   *tracking.Manager
	positions *MockPositionRepository
	statuses  *MockStepStatusRepository
	alerts    *MockAlerter
	routes    *MockRouteResolver
	locations *MockTravelerLocator
	locks     *MockSessionLocker
}

func newTrackingFixture() *trackingFixture {
	f := &trackingFixture{
		positions: NewMockPositionRepository(),
		statuses:  NewMockStepStatusRepository(),
		alerts:    NewMockAlerter(),
		routes:    NewMockRouteResolver(),
		locations: NewMockTravelerLocator(),
		locks:     NewMockSessionLocker(),
	}
	f.manager = tracking.NewManager(testTrackingConfig(), tracking.ManagerDeps{
		Positions: f.positions,
		Statuses:  f.statuses,
		Alerts:    f.alerts,
		Routes:    f.routes,
		Locations: f.locations,
		Locks:     f.locks,
	})
	return f
}

// tripWithStepInWindow builds a trip whose single step is scheduled to be
// in progress right now, centered on the given coordinates.
func tripWithStepInWindow(tripID string, lat, lng float64) (domain.TrackedTrip, []domain.Step) {
	trip := domain.TrackedTrip{ID: tripID, Title: "Weekend in Paris"}
	steps := []domain.Step{
		{
			ID:             tripID + "-step-1",
			TripID:         tripID,
			Period:         domain.PeriodMorning,
			PlaceName:      "Louvre",
			Lat:            lat,
			Lng:            lng,
			ScheduledStart: time.Now().Add(-2 * time.Minute),
			ScheduledEnd:   time.Now().Add(2 * time.Hour),
		},
	}
	return trip, steps
}

func TestStart_ValidatesTripID(t *testing.T) {
	f := newTrackingFixture()

	_, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)
	_, err := f.manager.Start(context.Background(), domain.TrackedTrip{ID: ""}, steps)

	if err != tracking.ErrInvalidTripID {
		t.Errorf("expected ErrInvalidTripID, got %v", err)
	}
}

func TestStart_RequiresTrackableSteps(t *testing.T) {
	f := newTrackingFixture()

	_, err := f.manager.Start(context.Background(), domain.TrackedTrip{ID: "trip-1"}, nil)

	if err != tracking.ErrNoTrackableSteps {
		t.Errorf("expected ErrNoTrackableSteps, got %v", err)
	}
}

func TestStartAndStop_Lifecycle(t *testing.T) {
	f := newTrackingFixture()
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)

	snap, err := f.manager.Start(context.Background(), trip, steps)
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if snap.State != domain.SessionActive {
		t.Errorf("expected ACTIVE session, got %s", snap.State)
	}
	if snap.TripID != "trip-1" {
		t.Errorf("expected trip-1, got %s", snap.TripID)
	}
	if len(snap.Statuses) != 1 || snap.Statuses[0].State != domain.StateNotArrived {
		t.Errorf("expected one NOT_ARRIVED status, got %+v", snap.Statuses)
	}
	if !f.locks.Held("trip-1") {
		t.Error("expected tracking lock to be held while active")
	}

	if err := f.manager.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	if _, err := f.manager.Snapshot(); err != tracking.ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession after stop, got %v", err)
	}
	if f.locks.Held("trip-1") {
		t.Error("expected tracking lock to be released on stop")
	}
	if atomic.LoadInt32(&f.alerts.ClearTripCallCount) != 1 {
		t.Error("expected notification flags to be cleared on stop")
	}
	if f.locations.HasLocation("trip-1") {
		t.Error("expected geo index entry to be removed on stop")
	}
}

func TestStop_WithoutSession(t *testing.T) {
	f := newTrackingFixture()

	if err := f.manager.Stop(context.Background()); err != tracking.ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestIngest_WithoutSession(t *testing.T) {
	f := newTrackingFixture()

	err := f.manager.Ingest(domain.Position{Latitude: 48.86, Longitude: 2.33, Timestamp: time.Now()})

	if err != tracking.ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession, got %v", err)
	}
}

func TestIngest_RejectsInvalidCoordinates(t *testing.T) {
	f := newTrackingFixture()
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)
	if _, err := f.manager.Start(context.Background(), trip, steps); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer f.manager.Stop(context.Background())

	err := f.manager.Ingest(domain.Position{Latitude: 95, Longitude: 2.33})

	if err != tracking.ErrInvalidPosition {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
}

func TestArrivalTick_DerivesStatusAndNotifies(t *testing.T) {
	f := newTrackingFixture()
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)
	if _, err := f.manager.Start(context.Background(), trip, steps); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer f.manager.Stop(context.Background())

	// Fix at the step's own coordinates: inside the geofence, inside the
	// scheduled window, so arrival cascades straight into performing.
	err := f.manager.Ingest(domain.Position{Latitude: 48.8606, Longitude: 2.3376, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		delivered := f.alerts.Delivered()
		return len(delivered) >= 2
	}, "arrival notifications")

	delivered := f.alerts.Delivered()
	if delivered[0] != domain.ScenarioArrived || delivered[1] != domain.ScenarioInProgress {
		t.Errorf("expected [arrived, in_progress], got %v", delivered)
	}

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&f.statuses.UpsertCallCount) >= 1 &&
			atomic.LoadInt32(&f.positions.AppendCallCount) >= 1
	}, "status and position persistence")

	status := f.statuses.Status("trip-1", "trip-1-step-1")
	if status == nil {
		t.Fatal("expected a persisted status")
	}
	if status.State != domain.StatePerforming {
		t.Errorf("expected PERFORMING, got %s", status.State)
	}
	if status.ActualArrivalTime.IsZero() {
		t.Error("expected actual arrival time to be recorded")
	}
	if status.Punctuality != domain.PunctualityOnTime {
		t.Errorf("expected on_time arrival, got %s", status.Punctuality)
	}

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt32(&f.routes.ResolveCallCount) >= 1
	}, "route refresh")

	route, err := f.manager.Route()
	if err != nil {
		t.Fatalf("unexpected route error: %v", err)
	}
	if route == nil || route.DistanceMeters != 1200 {
		t.Errorf("expected the resolved route overlay, got %+v", route)
	}

	snap, err := f.manager.Snapshot()
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	if snap.CurrentStepID != "trip-1-step-1" {
		t.Errorf("expected current step trip-1-step-1, got %s", snap.CurrentStepID)
	}
	if snap.LastPosition == nil {
		t.Error("expected last position in snapshot")
	}
}

func TestLateTick_FlagsRunningLate(t *testing.T) {
	f := newTrackingFixture()
	trip := domain.TrackedTrip{ID: "trip-1"}
	steps := []domain.Step{
		{
			ID:             "step-late",
			TripID:         "trip-1",
			PlaceName:      "Musee d'Orsay",
			Lat:            48.8600,
			Lng:            2.3266,
			ScheduledStart: time.Now().Add(-20 * time.Minute),
			ScheduledEnd:   time.Now().Add(time.Hour),
		},
	}
	if _, err := f.manager.Start(context.Background(), trip, steps); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer f.manager.Stop(context.Background())

	// Roughly a kilometer away: outside the geofence, 20 minutes past the
	// scheduled start with a 10 minute threshold.
	err := f.manager.Ingest(domain.Position{Latitude: 48.8690, Longitude: 2.3266, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return len(f.alerts.Delivered()) >= 1
	}, "late notification")

	delivered := f.alerts.Delivered()
	if delivered[0] != domain.ScenarioLateNotArrived {
		t.Errorf("expected late_not_arrived, got %v", delivered)
	}

	waitFor(t, 2*time.Second, func() bool {
		s := f.statuses.Status("trip-1", "step-late")
		return s != nil
	}, "status persistence")

	status := f.statuses.Status("trip-1", "step-late")
	if status.State != domain.StateNotArrived {
		t.Errorf("lateness must not advance the lifecycle, got %s", status.State)
	}
	if status.Punctuality != domain.PunctualityLate {
		t.Errorf("expected late punctuality, got %s", status.Punctuality)
	}
}

func TestStart_ReplacesActiveSession(t *testing.T) {
	f := newTrackingFixture()
	tripA, stepsA := tripWithStepInWindow("trip-a", 48.8606, 2.3376)
	tripB, stepsB := tripWithStepInWindow("trip-b", 41.9022, 12.4539)

	snapA, err := f.manager.Start(context.Background(), tripA, stepsA)
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	snapB, err := f.manager.Start(context.Background(), tripB, stepsB)
	if err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer f.manager.Stop(context.Background())

	if snapB.SessionID == snapA.SessionID {
		t.Error("expected a fresh session for the second trip")
	}
	if snapB.TripID != "trip-b" {
		t.Errorf("expected trip-b to be active, got %s", snapB.TripID)
	}

	// The predecessor's teardown re-arms its flags and releases its lock.
	if atomic.LoadInt32(&f.alerts.ClearTripCallCount) != 1 {
		t.Error("expected trip-a's notification flags to be cleared")
	}
	if f.locks.Held("trip-a") {
		t.Error("expected trip-a's tracking lock to be released")
	}
	if !f.locks.Held("trip-b") {
		t.Error("expected trip-b's tracking lock to be held")
	}

	// New ticks land on trip-b only.
	if err := f.manager.Ingest(domain.Position{Latitude: 41.9022, Longitude: 12.4539, Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		return f.statuses.Status("trip-b", "trip-b-step-1") != nil
	}, "status for the replacement trip")

	if s := f.statuses.Status("trip-a", "trip-a-step-1"); s != nil {
		t.Errorf("no tick should have been processed for trip-a, got %+v", s)
	}
}

func TestStart_LockHeldLeavesDegradedSession(t *testing.T) {
	f := newTrackingFixture()
	f.locks.AcquireResult = false
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)

	snap, err := f.manager.Start(context.Background(), trip, steps)

	if err != tracking.ErrTrackingLockHeld {
		t.Fatalf("expected ErrTrackingLockHeld, got %v", err)
	}
	if snap == nil {
		t.Fatal("a failed start must still return an observable snapshot")
	}
	if snap.State != domain.SessionStarting {
		t.Errorf("expected the session to stay in STARTING, got %s", snap.State)
	}
	if snap.Error == "" {
		t.Error("expected the failure to be readable from the snapshot")
	}

	// The degraded session never goes active, so ticks are refused.
	ingestErr := f.manager.Ingest(domain.Position{Latitude: 48.86, Longitude: 2.33, Timestamp: time.Now()})
	if ingestErr != tracking.ErrNoActiveSession {
		t.Errorf("expected ErrNoActiveSession, got %v", ingestErr)
	}
}

func TestViewport_GestureRelinquishesAutoFit(t *testing.T) {
	f := newTrackingFixture()
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)
	if _, err := f.manager.Start(context.Background(), trip, steps); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer f.manager.Stop(context.Background())

	if err := f.manager.Ingest(domain.Position{Latitude: 48.8606, Longitude: 2.3376, Timestamp: time.Now()}); err != nil {
		t.Fatalf("unexpected ingest error: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		snap, err := f.manager.Snapshot()
		return err == nil && snap.Viewport.AutoFit && snap.Viewport.Bounds != nil
	}, "auto-fit viewport after first tick")

	if err := f.manager.ReportGesture(); err != nil {
		t.Fatalf("unexpected gesture error: %v", err)
	}

	snap, err := f.manager.Snapshot()
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	if snap.Viewport.AutoFit {
		t.Error("expected auto-fit to be relinquished after a user gesture")
	}

	// Recenter centers on the traveler without restoring auto-fit.
	if err := f.manager.Recenter(); err != nil {
		t.Fatalf("unexpected recenter error: %v", err)
	}
	snap, _ = f.manager.Snapshot()
	if snap.Viewport.AutoFit {
		t.Error("recenter must not restore auto-fit")
	}
}

// slowFirstRouteResolver answers its first call slowly with an outdated
// route and every later call immediately with a fresh one.
type slowFirstRouteResolver struct {
	calls int32
}

func (m *slowFirstRouteResolver) Resolve(ctx context.Context, stepID string, origin, dest routing.LatLng) *routing.Route {
	if atomic.AddInt32(&m.calls, 1) == 1 {
		time.Sleep(300 * time.Millisecond)
		return &routing.Route{DistanceMeters: 111}
	}
	return &routing.Route{DistanceMeters: 222}
}

func TestRouteOverlay_StaleFetchDoesNotOverwriteNewer(t *testing.T) {
	resolver := &slowFirstRouteResolver{}
	manager := tracking.NewManager(testTrackingConfig(), tracking.ManagerDeps{
		Positions: NewMockPositionRepository(),
		Statuses:  NewMockStepStatusRepository(),
		Alerts:    NewMockAlerter(),
		Routes:    resolver,
		Locations: NewMockTravelerLocator(),
		Locks:     NewMockSessionLocker(),
	})
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)
	if _, err := manager.Start(context.Background(), trip, steps); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer manager.Stop(context.Background())

	// The first tick dispatches the slow fetch, the second dispatches the
	// fast one, which lands first.
	for i := 0; i < 2; i++ {
		if err := manager.Ingest(domain.Position{Latitude: 48.8606, Longitude: 2.3376, Timestamp: time.Now()}); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}

	waitFor(t, 2*time.Second, func() bool {
		route, err := manager.Route()
		return err == nil && route != nil && route.DistanceMeters == 222
	}, "fresh route overlay")

	// Give the slow fetch ample time to finish; its write-back must be
	// discarded in favor of the newer one.
	time.Sleep(500 * time.Millisecond)

	route, err := manager.Route()
	if err != nil {
		t.Fatalf("unexpected route error: %v", err)
	}
	if route.DistanceMeters != 222 {
		t.Errorf("outdated fetch overwrote the newer route: got distance %v", route.DistanceMeters)
	}
}

func TestHistory_RetainsIngestedFixes(t *testing.T) {
	f := newTrackingFixture()
	trip, steps := tripWithStepInWindow("trip-1", 48.8606, 2.3376)
	if _, err := f.manager.Start(context.Background(), trip, steps); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	defer f.manager.Stop(context.Background())

	for i := 0; i < 3; i++ {
		if err := f.manager.Ingest(domain.Position{Latitude: 48.8606, Longitude: 2.3376, Timestamp: time.Now()}); err != nil {
			t.Fatalf("unexpected ingest error: %v", err)
		}
	}

	history, err := f.manager.History()
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 retained fixes, got %d", len(history))
	}
}
