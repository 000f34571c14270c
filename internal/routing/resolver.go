// Package routing fetches a route polyline between two coordinates from an
// OSRM-compatible routing API, throttled against GPS jitter and with a
// deterministic straight-line fallback. Routing failures never propagate.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"roam/internal/geofence"
)

// LatLng is a single route coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is a decoded route overlay for rendering.
type Route struct {
	Points          []LatLng `json:"points"`
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds float64  `json:"duration_seconds"`
	// Fallback is true when the route is the two-point straight line used
	// after a routing failure.
	Fallback bool `json:"fallback"`
}

// Resolver resolves routes with per-key throttling: the origin is rounded
// to roughly one kilometer, so GPS noise around a fixed origin reuses the
// last resolved route instead of issuing a new request. A newer key
// supersedes an older in-flight resolution rather than queueing behind it.
type Resolver struct {
	baseURL string
	profile string
	client  *http.Client

	mu         sync.Mutex
	lastKey    string
	lastRoute  *Route
	generation uint64
}

// NewResolver creates a resolver against an OSRM-style base URL.
func NewResolver(baseURL, profile string, timeout time.Duration) *Resolver {
	if profile == "" {
		profile = "driving"
	}
	return &Resolver{
		baseURL: baseURL,
		profile: profile,
		client:  &http.Client{Timeout: timeout},
	}
}

// throttleKey collapses origins within ~1km (two decimal places) so jitter
// around a stationary traveler does not trigger redundant requests.
func throttleKey(stepID string, origin LatLng) string {
	return fmt.Sprintf("%s:%.2f:%.2f", stepID, origin.Lat, origin.Lng)
}

// Resolve returns a route from origin to dest for the given step. It never
// returns an error: any network failure, malformed body, or empty route
// degrades to the two-point straight line between origin and destination.
func (r *Resolver) Resolve(ctx context.Context, stepID string, origin, dest LatLng) *Route {
	key := throttleKey(stepID, origin)

	r.mu.Lock()
	if key == r.lastKey && r.lastRoute != nil {
		route := r.lastRoute
		r.mu.Unlock()
		return route
	}
	r.generation++
	gen := r.generation
	r.lastKey = key
	r.mu.Unlock()

	route, err := r.fetch(ctx, origin, dest)
	if err != nil {
		route = straightLine(origin, dest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// A newer resolution superseded this one; discard the write-back.
	if gen == r.generation {
		r.lastRoute = route
	}
	return route
}

// osrmResponse mirrors the subset of the OSRM route response we consume.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

func (r *Resolver) fetch(ctx context.Context, origin, dest LatLng) (*Route, error) {
	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		r.baseURL, r.profile, origin.Lng, origin.Lat, dest.Lng, dest.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("routing api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var decoded osrmResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}

	if len(decoded.Routes) == 0 || len(decoded.Routes[0].Geometry.Coordinates) == 0 {
		return nil, fmt.Errorf("routing api returned empty route")
	}

	best := decoded.Routes[0]
	points := make([]LatLng, 0, len(best.Geometry.Coordinates))
	for _, coord := range best.Geometry.Coordinates {
		if len(coord) < 2 {
			return nil, fmt.Errorf("routing api returned malformed coordinate")
		}
		// GeoJSON order is [lng, lat].
		points = append(points, LatLng{Lat: coord[1], Lng: coord[0]})
	}

	return &Route{
		Points:          points,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}

// straightLine is the deterministic fallback: a two-point segment from
// origin to destination. It always succeeds.
func straightLine(origin, dest LatLng) *Route {
	return &Route{
		Points:         []LatLng{origin, dest},
		DistanceMeters: geofence.Distance(origin.Lat, origin.Lng, dest.Lat, dest.Lng),
		Fallback:       true,
	}
}
