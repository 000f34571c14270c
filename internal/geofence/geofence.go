// Package geofence decides physical arrival: a circular radius around a
// step's coordinates, checked against the latest position fix.
package geofence

import (
	"github.com/golang/geo/s2"

	"roam/internal/domain"
)

// earthRadiusMeters is the mean Earth radius used for great-circle distance.
const earthRadiusMeters = 6371000.0

// Evaluation is the result of checking a position against a step's geofence.
type Evaluation struct {
	DistanceMeters float64
	Within         bool
}

// Distance returns the great-circle distance in meters between two points.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// Evaluate checks whether the position falls within radiusMeters of the
// step. Pure, O(1), called on every position tick against the current step.
func Evaluate(pos domain.Position, step domain.Step, radiusMeters float64) Evaluation {
	d := Distance(pos.Latitude, pos.Longitude, step.Lat, step.Lng)
	return Evaluation{
		DistanceMeters: d,
		Within:         d <= radiusMeters,
	}
}
