package domain

import "time"

// ArrivalState is the per-step tracking state. Transitions are strictly
// forward-only: NOT_ARRIVED -> ARRIVED -> PERFORMING -> COMPLETED.
type ArrivalState string

const (
	StateNotArrived ArrivalState = "NOT_ARRIVED"
	StateArrived    ArrivalState = "ARRIVED"
	StatePerforming ArrivalState = "PERFORMING"
	StateCompleted  ArrivalState = "COMPLETED"
)

// rank orders arrival states for monotonicity checks.
func (s ArrivalState) rank() int {
	switch s {
	case StateArrived:
		return 1
	case StatePerforming:
		return 2
	case StateCompleted:
		return 3
	default:
		return 0
	}
}

// AtLeast reports whether s is the same as or later than other in the
// forward-only ordering.
func (s ArrivalState) AtLeast(other ArrivalState) bool {
	return s.rank() >= other.rank()
}

// Phase is the coarse lifecycle stage of a step. It is monotonically
// non-decreasing: before_start -> in_progress -> completed.
type Phase string

const (
	PhaseBeforeStart Phase = "before_start"
	PhaseInProgress  Phase = "in_progress"
	PhaseCompleted   Phase = "completed"
)

// Punctuality compares the traveler against the step's schedule.
type Punctuality string

const (
	PunctualityOnTime Punctuality = "on_time"
	PunctualityLate   Punctuality = "late"
	PunctualityEarly  Punctuality = "early"
)

// StepStatus is the derived, per-tick state attached to one step.
// ActualArrivalTime transitions zero -> set exactly once per session.
type StepStatus struct {
	TripID            string
	StepID            string
	State             ArrivalState
	Phase             Phase
	Punctuality       Punctuality
	DeltaMinutes      int // signed, vs scheduled start; meaningful once arrived
	ActualArrivalTime time.Time
	Performing        bool
	DistanceMeters    float64 // last measured distance to the step
	UpdatedAt         time.Time
}

// NotificationScenario names a user-facing alert tied to a step transition.
type NotificationScenario string

const (
	ScenarioLateNotArrived NotificationScenario = "late_not_arrived"
	ScenarioArrived        NotificationScenario = "arrived"
	ScenarioInProgress     NotificationScenario = "in_progress"
	ScenarioCompleted      NotificationScenario = "completed"
)

// SessionState is the lifecycle state of the tracking session.
type SessionState string

const (
	SessionIdle     SessionState = "IDLE"
	SessionStarting SessionState = "STARTING"
	SessionActive   SessionState = "ACTIVE"
	SessionStopping SessionState = "STOPPING"
)
