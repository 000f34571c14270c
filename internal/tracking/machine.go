package tracking

import (
	"math"
	"time"

	"roam/internal/domain"
	"roam/internal/geofence"
)

// Tick carries everything the state machine needs for one evaluation pass.
type Tick struct {
	Position domain.Position
	Geofence geofence.Evaluation
	Now      time.Time
}

// Rules holds the schedule thresholds the state machine evaluates against.
type Rules struct {
	// ArrivalTolerance is the window around the scheduled start within
	// which an arrival still counts as on time.
	ArrivalTolerance time.Duration
	// LateThreshold marks a not-yet-arrived traveler as running late once
	// the scheduled start is this far in the past.
	LateThreshold time.Duration
}

// NewStatus returns the initial status for a step at session start.
func NewStatus(step domain.Step) domain.StepStatus {
	return domain.StepStatus{
		TripID:      step.TripID,
		StepID:      step.ID,
		State:       domain.StateNotArrived,
		Phase:       domain.PhaseBeforeStart,
		Punctuality: domain.PunctualityOnTime,
	}
}

// Advance applies one tick to a step's status and returns the next status.
// Transitions are strictly forward-only and the arrival time is write-once;
// a status never regresses no matter what sequence of ticks arrives.
func (r Rules) Advance(prev domain.StepStatus, step domain.Step, tick Tick) domain.StepStatus {
	next := prev
	next.DistanceMeters = tick.Geofence.DistanceMeters
	next.UpdatedAt = tick.Now

	start, end := step.Window()

	if next.State == domain.StateNotArrived {
		if tick.Geofence.Within {
			next.State = domain.StateArrived
			if next.ActualArrivalTime.IsZero() {
				next.ActualArrivalTime = tick.Now
				delta := tick.Now.Sub(start)
				next.DeltaMinutes = int(math.Round(delta.Minutes()))
				next.Punctuality = r.punctualityAt(delta)
			}
		} else if tick.Now.After(start.Add(r.LateThreshold)) {
			// Running late before arrival. Distinct from the arrival-delta
			// lateness computed at the moment of arrival.
			next.Punctuality = domain.PunctualityLate
		}
	}

	if next.State == domain.StateArrived {
		inWindow := !tick.Now.Before(start) && !tick.Now.After(end)
		if inWindow && tick.Geofence.Within {
			next.State = domain.StatePerforming
			next.Performing = true
			next.Phase = domain.PhaseInProgress
		}
	}

	if next.State == domain.StatePerforming {
		if tick.Now.After(end) {
			next.State = domain.StateCompleted
			next.Performing = false
			next.Phase = domain.PhaseCompleted
		}
	}

	return next
}

func (r Rules) punctualityAt(delta time.Duration) domain.Punctuality {
	switch {
	case delta < -r.ArrivalTolerance:
		return domain.PunctualityEarly
	case delta > r.ArrivalTolerance:
		return domain.PunctualityLate
	default:
		return domain.PunctualityOnTime
	}
}

// CurrentStep selects the step that receives ticks: the step whose window
// contains now, else the nearest future step, else the last step as the
// terminal fallback when the trip is over. Steps must be sorted ascending
// by scheduled start. Returns false only for an empty sequence.
func CurrentStep(steps []domain.Step, now time.Time) (domain.Step, bool) {
	if len(steps) == 0 {
		return domain.Step{}, false
	}

	for _, step := range steps {
		start, end := step.Window()
		if !now.Before(start) && !now.After(end) {
			return step, true
		}
	}

	for _, step := range steps {
		if step.ScheduledStart.After(now) {
			return step, true
		}
	}

	return steps[len(steps)-1], true
}

// DiffScenarios compares the previous and new per-step snapshot and returns
// the notification scenarios newly entered on this tick, in detection order.
func DiffScenarios(prev, next domain.StepStatus) []domain.NotificationScenario {
	var scenarios []domain.NotificationScenario

	prevLateUnarrived := prev.State == domain.StateNotArrived && prev.Punctuality == domain.PunctualityLate
	nextLateUnarrived := next.State == domain.StateNotArrived && next.Punctuality == domain.PunctualityLate
	if nextLateUnarrived && !prevLateUnarrived {
		scenarios = append(scenarios, domain.ScenarioLateNotArrived)
	}

	if prev.ActualArrivalTime.IsZero() && !next.ActualArrivalTime.IsZero() {
		scenarios = append(scenarios, domain.ScenarioArrived)
	}

	if !prev.Performing && next.Performing {
		scenarios = append(scenarios, domain.ScenarioInProgress)
	}

	if prev.Phase != domain.PhaseCompleted && next.Phase == domain.PhaseCompleted {
		scenarios = append(scenarios, domain.ScenarioCompleted)
	}

	return scenarios
}
