package itinerary

import (
	"encoding/json"
	"sort"
	"time"

	"roam/internal/domain"
)

// Document is a day-keyed itinerary as produced by the trip-generation
// subsystem. Each day holds up to four periods; a period's value is either
// a single activity object or an array of activities, so it is kept raw
// until extraction.
type Document struct {
	TripID string                                `json:"trip_id"`
	Days   map[string]map[string]json.RawMessage `json:"days"`
}

// Activity is one itinerary entry as it appears in the document. Itineraries
// are optimistic data: coordinates and schedule may be missing.
type Activity struct {
	ID           string   `json:"id"`
	ActivityType string   `json:"activity_type"`
	PlaceName    string   `json:"place_name"`
	PlaceDetails string   `json:"place_details"`
	Lat          *float64 `json:"lat"`
	Lng          *float64 `json:"lng"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
}

// periodOrder fixes the within-day ordering used to break scheduling ties.
var periodOrder = []domain.Period{
	domain.PeriodMorning,
	domain.PeriodLunch,
	domain.PeriodAfternoon,
	domain.PeriodEvening,
}

// ExtractSteps flattens an itinerary document into the trackable timeline:
// a sequence of steps sorted ascending by scheduled start, ties broken by
// document order. Activities without an ID, numeric coordinates, or a
// parseable start instant are dropped silently. The function is pure;
// calling it twice on the same document yields an identical sequence.
func ExtractSteps(doc Document) []domain.Step {
	var steps []domain.Step

	dateKeys := make([]string, 0, len(doc.Days))
	for dateKey := range doc.Days {
		dateKeys = append(dateKeys, dateKey)
	}
	sort.Strings(dateKeys)

	for _, dateKey := range dateKeys {
		day := doc.Days[dateKey]
		for _, period := range periodOrder {
			raw, ok := day[string(period)]
			if !ok {
				continue
			}
			for _, activity := range decodePeriod(raw) {
				step, ok := toStep(doc.TripID, dateKey, period, activity)
				if !ok {
					continue
				}
				steps = append(steps, step)
			}
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].ScheduledStart.Before(steps[j].ScheduledStart)
	})

	return steps
}

// decodePeriod accepts either a single activity or an array of activities.
func decodePeriod(raw json.RawMessage) []Activity {
	var many []Activity
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}

	var one Activity
	if err := json.Unmarshal(raw, &one); err == nil {
		return []Activity{one}
	}

	return nil
}

// toStep validates an activity and builds the immutable step record.
// Validation happens once, here, not repeatedly downstream.
func toStep(tripID, dateKey string, period domain.Period, a Activity) (domain.Step, bool) {
	if a.ID == "" || a.Lat == nil || a.Lng == nil {
		return domain.Step{}, false
	}

	start, err := time.Parse(time.RFC3339, a.StartTime)
	if err != nil {
		return domain.Step{}, false
	}

	step := domain.Step{
		ID:             a.ID,
		TripID:         tripID,
		DateKey:        dateKey,
		Period:         period,
		ActivityType:   a.ActivityType,
		PlaceName:      a.PlaceName,
		PlaceDetails:   a.PlaceDetails,
		Lat:            *a.Lat,
		Lng:            *a.Lng,
		ScheduledStart: start,
	}

	if a.EndTime != "" {
		if end, err := time.Parse(time.RFC3339, a.EndTime); err == nil && end.After(start) {
			step.ScheduledEnd = end
		}
	}
	if step.ScheduledEnd.IsZero() {
		step.ScheduledEnd = start.Add(domain.DefaultActivityDuration)
	}

	return step, true
}
