package tracking

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"roam/internal/config"
	"roam/internal/domain"
	"roam/internal/geofence"
	"roam/internal/repository"
	"roam/internal/routing"
)

// trackingLockTTL bounds how long a crashed replica can hold a trip's lock.
const trackingLockTTL = 6 * time.Hour

// Alerter delivers exactly-once transition notifications.
type Alerter interface {
	NotifyOnce(ctx context.Context, tripID, stepID string, scenario domain.NotificationScenario, title, body string, data map[string]interface{}) error
	ClearTrip(ctx context.Context, tripID string) error
}

// RouteResolver produces a route overlay between two coordinates.
type RouteResolver interface {
	Resolve(ctx context.Context, stepID string, origin, dest routing.LatLng) *routing.Route
}

// TravelerLocator mirrors the traveler's latest fix into a shared geo index.
type TravelerLocator interface {
	UpdateLocation(ctx context.Context, tripID string, lat, lng float64) error
	RemoveLocation(ctx context.Context, tripID string) error
}

// SessionLocker guards a trip against being tracked by two replicas.
type SessionLocker interface {
	AcquireTrackingLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error)
	ReleaseTrackingLock(ctx context.Context, tripID string) error
}

// ManagerDeps contains the collaborators the tracking manager drives.
// Persistence and notification collaborators may fail without affecting
// tracking correctness; routing degrades to a straight line.
type ManagerDeps struct {
	Positions repository.PositionRepository
	Statuses  repository.StepStatusRepository
	Alerts    Alerter
	Routes    RouteResolver
	Locations TravelerLocator
	Locks     SessionLocker
}

// Manager owns the process-wide tracking session: at most one trip is
// tracked at a time, and starting a new trip stops the previous one first.
type Manager struct {
	cfg  config.TrackingConfig
	deps ManagerDeps
	now  func() time.Time

	mu       sync.Mutex
	starting bool
	session  *Session
}

// NewManager creates a tracking manager.
func NewManager(cfg config.TrackingConfig, deps ManagerDeps) *Manager {
	return &Manager{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
}

// Session holds all state derived for one tracked trip. All mutation goes
// through the single consumer loop; reads take the session mutex.
type Session struct {
	ID    string
	Trip  domain.TrackedTrip
	Steps []domain.Step

	rules  Rules
	radius float64
	deps   ManagerDeps
	now    func() time.Time

	source *PositionSource
	sub    *Subscription
	done   chan struct{}

	mu            sync.Mutex
	state         domain.SessionState
	lastError     string
	statuses      map[string]domain.StepStatus
	currentStepID string
	lastPosition  *domain.Position
	route         *routing.Route
	routeGen      uint64
	viewport      *Viewport
}

// SessionSnapshot is a read-only view of the session for the API layer.
type SessionSnapshot struct {
	SessionID     string
	TripID        string
	State         domain.SessionState
	Error         string
	CurrentStepID string
	LastPosition  *domain.Position
	Statuses      []domain.StepStatus
	Viewport      ViewportState
}

// Start begins tracking a trip. It is guarded against concurrent starts
// and enforces the single-active-trip invariant: an active predecessor is
// stopped, and none of its ticks are processed once the new trip is
// active. A start failure leaves the degraded session observable (state
// and error readable through Snapshot) rather than silently reverting.
func (m *Manager) Start(ctx context.Context, trip domain.TrackedTrip, steps []domain.Step) (*SessionSnapshot, error) {
	if trip.ID == "" {
		return nil, ErrInvalidTripID
	}
	if len(steps) == 0 {
		return nil, ErrNoTrackableSteps
	}

	m.mu.Lock()
	if m.starting {
		m.mu.Unlock()
		return nil, ErrStartInProgress
	}
	m.starting = true
	previous := m.session
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
	}()

	if previous != nil {
		m.stopSession(ctx, previous)
	}

	session := &Session{
		ID:    uuid.New().String(),
		Trip:  trip,
		Steps: steps,
		rules: Rules{
			ArrivalTolerance: m.cfg.ArrivalTolerance,
			LateThreshold:    m.cfg.LateThreshold,
		},
		radius:   m.cfg.GeofenceRadiusMeters,
		deps:     m.deps,
		now:      m.now,
		source:   NewPositionSource(m.cfg.PositionHistorySize),
		done:     make(chan struct{}),
		state:    domain.SessionStarting,
		statuses: make(map[string]domain.StepStatus, len(steps)),
		viewport: NewViewport(),
	}
	for _, step := range steps {
		session.statuses[step.ID] = NewStatus(step)
	}

	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	if m.deps.Locks != nil {
		acquired, err := m.deps.Locks.AcquireTrackingLock(ctx, trip.ID, trackingLockTTL)
		if err != nil {
			// Lock store down: proceed single-replica, but surface it.
			log.Printf("tracking lock unavailable for trip %s: %v", trip.ID, err)
		} else if !acquired {
			session.setError(ErrTrackingLockHeld.Error())
			return session.snapshot(), ErrTrackingLockHeld
		}
	}

	sub := session.source.Subscribe()
	if sub == nil {
		session.setError("position source unavailable")
		return session.snapshot(), ErrNoActiveSession
	}
	session.sub = sub

	session.mu.Lock()
	session.state = domain.SessionActive
	session.mu.Unlock()

	go session.run()

	return session.snapshot(), nil
}

// Stop ends the active session: the position subscription is cancelled
// before any state is cleared, derived state is dropped, notification
// flags for the trip are re-armed, and the shared geo index entry and
// tracking lock are released.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return ErrNoActiveSession
	}

	m.stopSession(ctx, session)

	m.mu.Lock()
	if m.session == session {
		m.session = nil
	}
	m.mu.Unlock()

	return nil
}

func (m *Manager) stopSession(ctx context.Context, session *Session) {
	session.mu.Lock()
	session.state = domain.SessionStopping
	session.mu.Unlock()

	// Unsubscribe first: no tick is processed past this point.
	if session.sub != nil {
		session.sub.Cancel()
	}
	session.source.Close()
	if session.sub != nil {
		<-session.done
	}

	session.mu.Lock()
	session.statuses = make(map[string]domain.StepStatus)
	session.currentStepID = ""
	session.route = nil
	session.lastPosition = nil
	session.mu.Unlock()

	tripID := session.Trip.ID
	if m.deps.Alerts != nil {
		if err := m.deps.Alerts.ClearTrip(ctx, tripID); err != nil {
			log.Printf("failed to clear notification flags for trip %s: %v", tripID, err)
		}
	}
	if m.deps.Locations != nil {
		if err := m.deps.Locations.RemoveLocation(ctx, tripID); err != nil {
			log.Printf("failed to remove location for trip %s: %v", tripID, err)
		}
	}
	if m.deps.Locks != nil {
		if err := m.deps.Locks.ReleaseTrackingLock(ctx, tripID); err != nil {
			log.Printf("failed to release tracking lock for trip %s: %v", tripID, err)
		}
	}
}

// Ingest feeds one position fix into the active session's stream.
func (m *Manager) Ingest(pos domain.Position) error {
	if !isValidLatitude(pos.Latitude) || !isValidLongitude(pos.Longitude) {
		return ErrInvalidPosition
	}

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil || session.State() != domain.SessionActive {
		return ErrNoActiveSession
	}

	if pos.Timestamp.IsZero() {
		pos.Timestamp = m.now()
	}

	session.source.Publish(pos)
	return nil
}

// Snapshot returns the active session's derived state.
func (m *Manager) Snapshot() (*SessionSnapshot, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session.snapshot(), nil
}

// Route returns the current route overlay, if one has been resolved.
func (m *Manager) Route() (*routing.Route, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, ErrNoActiveSession
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.route, nil
}

// History returns the session's retained raw positions, oldest first.
func (m *Manager) History() ([]domain.Position, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, ErrNoActiveSession
	}
	return session.source.History(), nil
}

// ReportGesture records a user-initiated map gesture; auto-fit is
// relinquished for the rest of the session.
func (m *Manager) ReportGesture() error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return ErrNoActiveSession
	}
	session.viewport.UserGesture()
	return nil
}

// Recenter centers the viewport on the traveler's last fix.
func (m *Manager) Recenter() error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return ErrNoActiveSession
	}

	session.mu.Lock()
	pos := session.lastPosition
	session.mu.Unlock()

	if pos == nil {
		return ErrInvalidPosition
	}
	session.viewport.RecenterOnUser(*pos)
	return nil
}

// run is the single consumer loop. Each tick is one synchronous
// derivation pass; ticks never interleave.
func (s *Session) run() {
	defer close(s.done)
	for pos := range s.sub.C {
		s.handleTick(pos)
	}
}

// handleTick derives the next state for one position fix: current step
// selection, geofence check, state machine advance, notification diff,
// then fire-and-continue persistence and route refresh.
func (s *Session) handleTick(pos domain.Position) {
	now := s.now()

	step, ok := CurrentStep(s.Steps, now)
	if !ok {
		return
	}

	eval := geofence.Evaluate(pos, step, s.radius)
	tick := Tick{Position: pos, Geofence: eval, Now: now}

	s.mu.Lock()
	prev, ok := s.statuses[step.ID]
	if !ok {
		prev = NewStatus(step)
	}
	next := s.rules.Advance(prev, step, tick)
	s.statuses[step.ID] = next
	s.currentStepID = step.ID
	s.lastPosition = &pos
	s.mu.Unlock()

	s.viewport.Observe(pos, step)

	ctx := context.Background()

	for _, scenario := range DiffScenarios(prev, next) {
		title, body := scenarioContent(scenario, step, next)
		_ = s.deps.Alerts.NotifyOnce(ctx, step.TripID, step.ID, scenario, title, body, map[string]interface{}{
			"trip_id":       step.TripID,
			"step_id":       step.ID,
			"place_name":    step.PlaceName,
			"delta_minutes": next.DeltaMinutes,
		})
	}

	// Persistence is fire-and-continue: a slow or failing write never
	// blocks the next tick.
	record := &domain.PositionRecord{
		ID:         uuid.New().String(),
		TripID:     step.TripID,
		StepID:     step.ID,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Accuracy:   pos.Accuracy,
		RecordedAt: pos.Timestamp,
	}
	go func() {
		if err := s.deps.Positions.Append(ctx, record); err != nil {
			log.Printf("failed to append position for trip %s: %v", record.TripID, err)
		}
	}()

	status := next
	go func() {
		if err := s.deps.Statuses.Upsert(ctx, &status); err != nil {
			log.Printf("failed to upsert status for step %s: %v", status.StepID, err)
		}
	}()

	if s.deps.Locations != nil {
		go func() {
			if err := s.deps.Locations.UpdateLocation(ctx, step.TripID, pos.Latitude, pos.Longitude); err != nil {
				log.Printf("failed to update traveler location for trip %s: %v", step.TripID, err)
			}
		}()
	}

	if s.deps.Routes != nil && next.State != domain.StateCompleted {
		origin := routing.LatLng{Lat: pos.Latitude, Lng: pos.Longitude}
		dest := routing.LatLng{Lat: step.Lat, Lng: step.Lng}

		// Only the most recently dispatched fetch may write back; a slow
		// fetch that finishes after a newer one was dispatched is discarded.
		s.mu.Lock()
		s.routeGen++
		gen := s.routeGen
		s.mu.Unlock()

		go func() {
			route := s.deps.Routes.Resolve(ctx, step.ID, origin, dest)
			s.mu.Lock()
			if gen == s.routeGen {
				s.route = route
			}
			s.mu.Unlock()
		}()
	}
}

// State returns the session lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
}

func (s *Session) snapshot() *SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]domain.StepStatus, 0, len(s.statuses))
	for _, step := range s.Steps {
		if status, ok := s.statuses[step.ID]; ok {
			statuses = append(statuses, status)
		}
	}

	var lastPos *domain.Position
	if s.lastPosition != nil {
		pos := *s.lastPosition
		lastPos = &pos
	}

	return &SessionSnapshot{
		SessionID:     s.ID,
		TripID:        s.Trip.ID,
		State:         s.state,
		Error:         s.lastError,
		CurrentStepID: s.currentStepID,
		LastPosition:  lastPos,
		Statuses:      statuses,
		Viewport:      s.viewport.State(),
	}
}

// scenarioContent builds the user-facing alert text for a transition.
func scenarioContent(scenario domain.NotificationScenario, step domain.Step, status domain.StepStatus) (title, body string) {
	place := step.PlaceName
	if place == "" {
		place = "your next stop"
	}

	switch scenario {
	case domain.ScenarioLateNotArrived:
		return "Running late", fmt.Sprintf("%s was scheduled for %s and you haven't arrived yet.",
			place, step.ScheduledStart.Format("15:04"))
	case domain.ScenarioArrived:
		switch status.Punctuality {
		case domain.PunctualityEarly:
			return "Arrived early", fmt.Sprintf("You reached %s %d minutes ahead of schedule.", place, -status.DeltaMinutes)
		case domain.PunctualityLate:
			return "Arrived", fmt.Sprintf("You reached %s %d minutes behind schedule.", place, status.DeltaMinutes)
		default:
			return "Arrived", fmt.Sprintf("You reached %s right on time.", place)
		}
	case domain.ScenarioInProgress:
		return "Activity started", fmt.Sprintf("Enjoy %s!", place)
	case domain.ScenarioCompleted:
		return "Activity completed", fmt.Sprintf("%s is done. On to the next stop.", place)
	default:
		return "Trip update", place
	}
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
