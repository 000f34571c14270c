package domain

import "time"

// Period identifies the slot of the day an itinerary activity belongs to.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodLunch     Period = "lunch"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// DefaultActivityDuration is assumed when an activity has no scheduled end.
const DefaultActivityDuration = 2 * time.Hour

// Step is one tracked, geolocated, time-scheduled itinerary activity.
// Steps are immutable once extracted; the ordered sequence of steps is the
// tracking timeline for one trip, sorted ascending by ScheduledStart.
type Step struct {
	ID             string
	TripID         string
	DateKey        string // calendar day, e.g. "2026-09-01"
	Period         Period
	ActivityType   string
	PlaceName      string
	PlaceDetails   string
	Lat            float64
	Lng            float64
	ScheduledStart time.Time
	ScheduledEnd   time.Time
}

// Window returns the activity's active window. A missing scheduled end
// defaults to start plus DefaultActivityDuration.
func (s Step) Window() (start, end time.Time) {
	start = s.ScheduledStart
	end = s.ScheduledEnd
	if end.IsZero() {
		end = start.Add(DefaultActivityDuration)
	}
	return start, end
}

// TrackedTrip is the trip whose itinerary is being tracked.
type TrackedTrip struct {
	ID        string
	Title     string
	OwnerID   string
	StartDate string
	EndDate   string
	CreatedAt time.Time
}
