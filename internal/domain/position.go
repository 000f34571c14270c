package domain

import "time"

// Position is one location fix from the traveler's device.
type Position struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // meters, 0 when the device did not report one
	Timestamp time.Time
}

// PositionRecord is a persisted position tick, tagged with the trip and the
// step that was current when the fix arrived. Records are append-only.
type PositionRecord struct {
	ID         string
	TripID     string
	StepID     string
	Latitude   float64
	Longitude  float64
	Accuracy   float64
	RecordedAt time.Time
}
