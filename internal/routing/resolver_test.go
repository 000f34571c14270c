package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const osrmBody = `{
	"code": "Ok",
	"routes": [{
		"geometry": {"coordinates": [[2.3522, 48.8566], [2.3376, 48.8606]], "type": "LineString"},
		"distance": 1840.5,
		"duration": 420.0
	}]
}`

func newTestResolver(t *testing.T, handler http.HandlerFunc) (*Resolver, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	return NewResolver(server.URL, "driving", 2*time.Second), &calls
}

func TestResolve_DecodesGeoJSONRoute(t *testing.T) {
	t.Parallel()

	resolver, calls := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, osrmBody)
	})

	route := resolver.Resolve(context.Background(), "step-1",
		LatLng{Lat: 48.8566, Lng: 2.3522}, LatLng{Lat: 48.8606, Lng: 2.3376})

	if route.Fallback {
		t.Fatal("expected a resolved route, got fallback")
	}
	if len(route.Points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(route.Points))
	}
	// GeoJSON coordinates are [lng, lat]; decoding must swap them.
	if route.Points[0].Lat != 48.8566 || route.Points[0].Lng != 2.3522 {
		t.Errorf("coordinate order not swapped: %+v", route.Points[0])
	}
	if route.DistanceMeters != 1840.5 || route.DurationSeconds != 420.0 {
		t.Errorf("distance/duration not decoded: %+v", route)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("expected 1 network call, got %d", got)
	}
}

func TestResolve_ThrottlesJitteryOrigins(t *testing.T) {
	t.Parallel()

	resolver, calls := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, osrmBody)
	})

	origin := LatLng{Lat: 48.8566, Lng: 2.3522}
	dest := LatLng{Lat: 48.8606, Lng: 2.3376}

	first := resolver.Resolve(context.Background(), "step-1", origin, dest)

	// A few hundred meters of GPS noise rounds to the same throttle key.
	jittered := LatLng{Lat: 48.8581, Lng: 2.3519}
	second := resolver.Resolve(context.Background(), "step-1", jittered, dest)

	if got := atomic.LoadInt32(calls); got != 1 {
		t.Errorf("expected at most 1 network call for the same key, got %d", got)
	}
	if first != second {
		t.Error("expected the cached route for the same throttle key")
	}

	// A different step is a different key.
	resolver.Resolve(context.Background(), "step-2", origin, dest)
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Errorf("expected a fresh call for a new step, got %d calls", got)
	}
}

func TestResolve_FallsBackOnServerError(t *testing.T) {
	t.Parallel()

	resolver, _ := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	origin := LatLng{Lat: 0, Lng: 0}
	dest := LatLng{Lat: 0, Lng: 1}

	route := resolver.Resolve(context.Background(), "step-1", origin, dest)

	if !route.Fallback {
		t.Fatal("expected fallback route")
	}
	if len(route.Points) != 2 || route.Points[0] != origin || route.Points[1] != dest {
		t.Errorf("expected straight line [origin, dest], got %v", route.Points)
	}
	// One degree of longitude at the equator is ~111km.
	if route.DistanceMeters < 110000 || route.DistanceMeters > 112500 {
		t.Errorf("unexpected fallback distance: %v", route.DistanceMeters)
	}
}

func TestResolve_FallsBackOnMalformedBody(t *testing.T) {
	t.Parallel()

	resolver, _ := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": "Ok", "routes": `)
	})

	route := resolver.Resolve(context.Background(), "step-1",
		LatLng{Lat: 1, Lng: 1}, LatLng{Lat: 2, Lng: 2})

	if !route.Fallback {
		t.Error("expected fallback on malformed body")
	}
}

func TestResolve_FallsBackOnEmptyRoutes(t *testing.T) {
	t.Parallel()

	resolver, _ := newTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code": "NoRoute", "routes": []}`)
	})

	route := resolver.Resolve(context.Background(), "step-1",
		LatLng{Lat: 1, Lng: 1}, LatLng{Lat: 2, Lng: 2})

	if !route.Fallback {
		t.Error("expected fallback on empty route list")
	}
}

func TestResolve_UnreachableHost(t *testing.T) {
	t.Parallel()

	resolver := NewResolver("http://127.0.0.1:1", "driving", 500*time.Millisecond)

	route := resolver.Resolve(context.Background(), "step-1",
		LatLng{Lat: 1, Lng: 1}, LatLng{Lat: 2, Lng: 2})

	if !route.Fallback || len(route.Points) != 2 {
		t.Errorf("expected two-point fallback, got %+v", route)
	}
}
