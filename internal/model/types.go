package model

import (
	"fmt"
	"time"
)

// GeoPoint is an immutable lat/lng pair. Latitude in [-90,90], longitude in [-180,180].
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point lies inside the WGS84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Depot is a fixed facility anchoring collection routes. Owned by the backend;
// the map layer only reads it.
type Depot struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	CapacityMax float64 `json:"capacityMax,omitempty"`
	IsActive    bool    `json:"isActive"`
}

func (d Depot) Location() GeoPoint { return GeoPoint{Lat: d.Lat, Lng: d.Lng} }

// DepotInput is the write shape for depot create/patch.
type DepotInput struct {
	Name        string   `json:"name,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	CapacityMax *float64 `json:"capacityMax,omitempty"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

// Waste type enumeration.
const (
	WastePlastic = "plastic"
	WasteGlass   = "glass"
	WasteMetal   = "metal"
	WasteBattery = "battery"
	WastePaper   = "paper"
	WasteOther   = "other"
)

// Waste point status lifecycle.
const (
	StatusReported   = "reported"
	StatusInProgress = "in_progress"
	StatusCleaned    = "cleaned"
)

// WastePoint is a reported litter location, the unit of work collected by a route.
type WastePoint struct {
	ID         string    `json:"id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Zone       string    `json:"zone,omitempty"`
	ReportedAt time.Time `json:"reportedAt"`
}

func (w WastePoint) Location() GeoPoint { return GeoPoint{Lat: w.Lat, Lng: w.Lng} }

// WastePointIn is the report-intake shape.
type WastePointIn struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Type string  `json:"type"`
	Zone string  `json:"zone,omitempty"`
}

func ValidWasteType(t string) bool {
	switch t {
	case WastePlastic, WasteGlass, WasteMetal, WasteBattery, WastePaper, WasteOther:
		return true
	}
	return false
}

func ValidWasteStatus(s string) bool {
	switch s {
	case StatusReported, StatusInProgress, StatusCleaned:
		return true
	}
	return false
}

// Itinerary is one vehicle route inside an optimization result, accepted
// verbatim from the external optimizer.
type Itinerary struct {
	ID          string       `json:"id,omitempty"`
	VehicleInfo string       `json:"vehicleInfo,omitempty"`
	VehicleType string       `json:"vehicleType,omitempty"`
	DistanceKm  float64      `json:"distanceKm,omitempty"`
	DurationMin int          `json:"dureeEstimee,omitempty"`
	FuelLiters  float64      `json:"carburantLitres,omitempty"`
	PointCount  int          `json:"nombrePoints,omitempty"`
	Points      []WastePoint `json:"points"`
}

// OptimizationResult is the externally computed assignment of waste points to
// vehicle routes. The map consumes it as-is; it never recomputes assignments.
type OptimizationResult struct {
	ID              string      `json:"id"`
	Itineraries     []Itinerary `json:"itineraries"`
	DepotUsed       string      `json:"depotUtilise"`
	DepotAddress    string      `json:"depotAdresse,omitempty"`
	Zone            string      `json:"zoneGeographique,omitempty"`
	CollectedPoints int         `json:"nombrePointsCollectes,omitempty"`
	TotalDistanceKm float64     `json:"distanceTotale,omitempty"`
	TotalFuelLiters float64     `json:"carburantTotal,omitempty"`
	EfficiencyScore float64     `json:"scoreEfficacite,omitempty"`
	VehicleCount    int         `json:"nombreVehicules,omitempty"`
	ReceivedAt      time.Time   `json:"receivedAt"`
}

// RouteAssignment binds one itinerary to its anchor depot and an ordered stop
// list. The waypoint chain is the closed loop depot -> points -> depot.
type RouteAssignment struct {
	RouteIndex   int          `json:"routeIndex"`
	VehicleLabel string       `json:"vehicleLabel"`
	ColorToken   string       `json:"colorToken"`
	Depot        Depot        `json:"depot"`
	Points       []WastePoint `json:"points"`
}

// WaypointChain returns the closed depot->points->depot loop for resolution.
func (a RouteAssignment) WaypointChain() []GeoPoint {
	chain := make([]GeoPoint, 0, len(a.Points)+2)
	chain = append(chain, a.Depot.Location())
	for _, p := range a.Points {
		chain = append(chain, p.Location())
	}
	chain = append(chain, a.Depot.Location())
	return chain
}

// ResolvedRoute is the drawable polyline for one assignment. Degraded means
// the coordinates are the original waypoint chain because road-network
// resolution failed; distance/duration are then unknown. Ephemeral: held in
// resolver state per epoch, never persisted.
type ResolvedRoute struct {
	RouteIndex      int        `json:"routeIndex"`
	Coordinates     []GeoPoint `json:"coordinates"`
	DistanceKm      *float64   `json:"distanceKm"`
	DurationMinutes *int       `json:"durationMinutes"`
	Degraded        bool       `json:"degraded"`
}

// FormatDistance renders a resolved distance for popups, e.g. "12.50 km".
func (r ResolvedRoute) FormatDistance() string {
	if r.DistanceKm == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f km", *r.DistanceKm)
}

// FormatDuration renders a resolved duration for popups, e.g. "30 min".
func (r ResolvedRoute) FormatDuration() string {
	if r.DurationMinutes == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d min", *r.DurationMinutes)
}
