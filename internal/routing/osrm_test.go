package routing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ecomap/internal/model"
)

func TestEncodeWaypointsLonLatOrder(t *testing.T) {
	got := EncodeWaypoints([]model.GeoPoint{
		{Lat: 36.80, Lng: 10.18},
		{Lat: 36.81, Lng: 10.19},
	})
	if got != "10.18,36.8;10.19,36.81" {
		t.Fatalf("encode: %q", got)
	}
}

func newOSRMTestClient(srv *httptest.Server) *OSRMClient {
	c := NewOSRMClient(srv.URL, "driving", time.Second, 0, 0)
	c.HTTP = srv.Client()
	return c
}

func TestRouteDecodesGeoJSONPairs(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[{"geometry":{"coordinates":[[10.19,36.81],[10.2,36.82]]},"distance":12500,"duration":1800}]}`))
	}))
	defer srv.Close()

	c := newOSRMTestClient(srv)
	road, err := c.Route(context.Background(), []model.GeoPoint{{Lat: 36.8, Lng: 10.18}, {Lat: 36.82, Lng: 10.2}})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/route/v1/driving/") {
		t.Fatalf("path: %q", gotPath)
	}
	if !strings.Contains(gotPath, "10.18,36.8;10.2,36.82") {
		t.Fatalf("waypoints not lon,lat encoded: %q", gotPath)
	}
	if !strings.Contains(gotQuery, "geometries=geojson") || !strings.Contains(gotQuery, "overview=full") {
		t.Fatalf("query: %q", gotQuery)
	}
	want := []model.GeoPoint{{Lat: 36.81, Lng: 10.19}, {Lat: 36.82, Lng: 10.2}}
	if len(road.Coordinates) != 2 || road.Coordinates[0] != want[0] || road.Coordinates[1] != want[1] {
		t.Fatalf("coordinates not flipped to lat,lng: %+v", road.Coordinates)
	}
	if road.DistanceM != 12500 || road.DurationSec != 1800 {
		t.Fatalf("distance/duration: %+v", road)
	}
}

func TestRouteRejectsNonOkCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"NoRoute","routes":[]}`))
	}))
	defer srv.Close()

	c := newOSRMTestClient(srv)
	if _, err := c.Route(context.Background(), []model.GeoPoint{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}); err == nil {
		t.Fatal("expected error for non-Ok code")
	}
}

func TestRouteRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newOSRMTestClient(srv)
	if _, err := c.Route(context.Background(), []model.GeoPoint{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestRouteRejectsEmptyRoutes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":"Ok","routes":[]}`))
	}))
	defer srv.Close()

	c := newOSRMTestClient(srv)
	if _, err := c.Route(context.Background(), []model.GeoPoint{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}); err == nil {
		t.Fatal("expected error for empty route list")
	}
}

func TestRouteRequiresTwoWaypoints(t *testing.T) {
	c := NewOSRMClient("http://example.invalid", "driving", time.Second, 0, 0)
	if _, err := c.Route(context.Background(), []model.GeoPoint{{Lat: 1, Lng: 2}}); err == nil {
		t.Fatal("expected error for single waypoint")
	}
}
