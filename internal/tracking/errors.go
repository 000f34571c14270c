package tracking

import "errors"

var (
	// ErrInvalidTripID is returned when the trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrNoTrackableSteps is returned when a trip has no steps with
	// coordinates and a schedule.
	ErrNoTrackableSteps = errors.New("trip has no trackable steps")

	// ErrStartInProgress is returned when a start call overlaps another.
	ErrStartInProgress = errors.New("tracking start already in progress")

	// ErrNoActiveSession is returned when an operation requires an active
	// tracking session and none exists.
	ErrNoActiveSession = errors.New("no active tracking session")

	// ErrTrackingLockHeld is returned when another replica already tracks
	// the trip.
	ErrTrackingLockHeld = errors.New("trip is already being tracked")

	// ErrInvalidPosition is returned when a position fix carries
	// out-of-range coordinates.
	ErrInvalidPosition = errors.New("invalid position")
)
