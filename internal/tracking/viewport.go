package tracking

import (
	"sync"

	"roam/internal/domain"
)

// recenterZoom is the fixed zoom level used by the manual recenter action.
const recenterZoom = 16.0

// boundsPaddingDegrees pads the auto-fit bounding box so markers do not sit
// on the viewport edge.
const boundsPaddingDegrees = 0.005

// BoundingBox is a lat/lng rectangle, padded, containing the fitted points.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// ViewportState is a snapshot of the map viewport policy.
type ViewportState struct {
	AutoFit   bool         `json:"auto_fit"`
	Bounds    *BoundingBox `json:"bounds,omitempty"`
	CenterLat float64      `json:"center_lat"`
	CenterLng float64      `json:"center_lng"`
	Zoom      float64      `json:"zoom"`
}

// Viewport auto-fits the map to the traveler and the current step until the
// user takes manual control. Control, once relinquished, stays with the
// user for the rest of the session.
type Viewport struct {
	mu      sync.Mutex
	autoFit bool
	state   ViewportState
}

// NewViewport returns a viewport with auto-fit enabled.
func NewViewport() *Viewport {
	return &Viewport{autoFit: true, state: ViewportState{AutoFit: true}}
}

// Observe is called on every tick. While auto-fit holds, the viewport is
// recomputed to contain both the traveler and the current step.
func (v *Viewport) Observe(pos domain.Position, step domain.Step) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.autoFit {
		return
	}

	box := BoundingBox{
		MinLat: min(pos.Latitude, step.Lat) - boundsPaddingDegrees,
		MinLng: min(pos.Longitude, step.Lng) - boundsPaddingDegrees,
		MaxLat: max(pos.Latitude, step.Lat) + boundsPaddingDegrees,
		MaxLng: max(pos.Longitude, step.Lng) + boundsPaddingDegrees,
	}

	v.state = ViewportState{
		AutoFit:   true,
		Bounds:    &box,
		CenterLat: (box.MinLat + box.MaxLat) / 2,
		CenterLng: (box.MinLng + box.MaxLng) / 2,
		Zoom:      v.state.Zoom,
	}
}

// UserGesture records a user-initiated drag or zoom. Auto-fit is
// relinquished for the remainder of the session.
func (v *Viewport) UserGesture() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.autoFit = false
	v.state.AutoFit = false
}

// RecenterOnUser is the manual "center on me" action: auto-fit stays off
// and the viewport centers on the traveler at a fixed zoom.
func (v *Viewport) RecenterOnUser(pos domain.Position) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.autoFit = false
	v.state = ViewportState{
		AutoFit:   false,
		CenterLat: pos.Latitude,
		CenterLng: pos.Longitude,
		Zoom:      recenterZoom,
	}
}

// State returns the current viewport snapshot.
func (v *Viewport) State() ViewportState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}
