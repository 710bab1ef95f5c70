// Package routing resolves road-network geometry for collection routes via an
// external OSRM-compatible service, with a straight-line fallback when the
// service is unavailable.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ecomap/internal/model"
)

// RoadRoute is the raw geometry returned by the routing service for one call.
type RoadRoute struct {
	Coordinates []model.GeoPoint
	DistanceM   float64
	DurationSec float64
}

// RouteClient fetches road geometry for an ordered waypoint chain.
type RouteClient interface {
	Route(ctx context.Context, waypoints []model.GeoPoint) (RoadRoute, error)
}

// OSRMClient calls the OSRM route endpoint. Outbound calls are capped by a
// rate limiter so a burst of optimization results cannot flood the public
// routing instance.
type OSRMClient struct {
	BaseURL string
	Profile string
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// NewOSRMClient builds a client. rps <= 0 disables rate limiting.
func NewOSRMClient(baseURL, profile string, timeout time.Duration, rps float64, burst int) *OSRMClient {
	var lim *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &OSRMClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Profile: profile,
		HTTP:    &http.Client{Timeout: timeout},
		Limiter: lim,
	}
}

// osrmResponse mirrors the parts of the OSRM route response we consume.
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

// Route issues one GET per waypoint chain. The external protocol is lon,lat
// ordered, the inverse of the internal lat,lng convention. EncodeWaypoints
// and the geometry decode below are the only two places that conversion may
// happen.
func (c *OSRMClient) Route(ctx context.Context, waypoints []model.GeoPoint) (RoadRoute, error) {
	if len(waypoints) < 2 {
		return RoadRoute{}, fmt.Errorf("osrm: need at least 2 waypoints, got %d", len(waypoints))
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return RoadRoute{}, fmt.Errorf("osrm: rate limit wait: %w", err)
		}
	}
	url := fmt.Sprintf("%s/route/v1/%s/%s?overview=full&geometries=geojson",
		c.BaseURL, c.Profile, EncodeWaypoints(waypoints))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RoadRoute{}, fmt.Errorf("osrm: build request: %w", err)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return RoadRoute{}, fmt.Errorf("osrm: call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return RoadRoute{}, fmt.Errorf("osrm: status %d", resp.StatusCode)
	}
	var body osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return RoadRoute{}, fmt.Errorf("osrm: decode response: %w", err)
	}
	if body.Code != "Ok" {
		return RoadRoute{}, fmt.Errorf("osrm: code %q", body.Code)
	}
	if len(body.Routes) == 0 {
		return RoadRoute{}, fmt.Errorf("osrm: no route candidates")
	}
	first := body.Routes[0]
	coords := make([]model.GeoPoint, 0, len(first.Geometry.Coordinates))
	for _, pair := range first.Geometry.Coordinates {
		if len(pair) < 2 {
			return RoadRoute{}, fmt.Errorf("osrm: malformed coordinate pair")
		}
		// GeoJSON pairs are [lon, lat]
		coords = append(coords, model.GeoPoint{Lat: pair[1], Lng: pair[0]})
	}
	return RoadRoute{Coordinates: coords, DistanceM: first.Distance, DurationSec: first.Duration}, nil
}

// EncodeWaypoints renders the chain as "lon,lat;lon,lat;..." per the external
// protocol.
func EncodeWaypoints(waypoints []model.GeoPoint) string {
	var b strings.Builder
	for i, p := range waypoints {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
	}
	return b.String()
}
