// Package mapview composes the render-ready map view: base viewport plus
// depot/waste-point markers, coverage circles, colored route polylines, and
// the legend. Failures never blank the map: missing data and degraded
// routes reduce to fewer or dimmer layers, not errors.
package mapview

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ecomap/internal/config"
	"ecomap/internal/model"
)

// Route layer resolution states.
const (
	LayerLoading  = "loading"
	LayerResolved = "resolved"
	LayerDegraded = "degraded"
)

// WarnUnresolvedDepot flags a route assignment whose anchor depot has no
// match in the depot list.
const WarnUnresolvedDepot = "UnresolvedDepotReference"

// AdvisoryText is shown at a degraded route's start waypoint.
const AdvisoryText = "approximate route — routing service unavailable"

type Marker struct {
	ID    string  `json:"id"`
	Kind  string  `json:"kind"` // depot, waste_point, advisory
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Popup string  `json:"popup,omitempty"`
}

type Circle struct {
	DepotID string  `json:"depotId"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radiusM"`
}

// RouteLayer is one polyline plus its draw style. Coordinates are empty while
// the layer is loading.
type RouteLayer struct {
	RouteIndex      int              `json:"routeIndex"`
	VehicleLabel    string           `json:"vehicleLabel"`
	Color           string           `json:"color"`
	State           string           `json:"state"`
	Coordinates     []model.GeoPoint `json:"coordinates,omitempty"`
	DistanceKm      *float64         `json:"distanceKm,omitempty"`
	DurationMinutes *int             `json:"durationMinutes,omitempty"`
	Dashed          bool             `json:"dashed"`
	Opacity         float64          `json:"opacity"`
	Popup           string           `json:"popup,omitempty"`
}

type Viewport struct {
	Center model.GeoPoint `json:"center"`
	Zoom   int            `json:"zoom"`
}

type Warning struct {
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
	RouteIndex int    `json:"routeIndex,omitempty"`
}

type MapView struct {
	Epoch       string        `json:"epoch,omitempty"`
	Viewport    Viewport      `json:"viewport"`
	Markers     []Marker      `json:"markers"`
	Circles     []Circle      `json:"circles,omitempty"`
	Routes      []RouteLayer  `json:"routes,omitempty"`
	Legend      []LegendEntry `json:"legend,omitempty"`
	Warnings    []Warning     `json:"warnings,omitempty"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// Compositor owns viewport state and builds MapView snapshots. Viewport
// auto-centers once per new optimization result; a user pan/zoom recorded via
// SetUserViewport wins over re-reads of the same result.
type Compositor struct {
	cfg     config.MapConfig
	palette Palette
	log     *slog.Logger

	mu        sync.Mutex
	autoEpoch string
	user      *Viewport
}

func NewCompositor(cfg config.MapConfig, log *slog.Logger) *Compositor {
	if log == nil {
		log = slog.Default()
	}
	return &Compositor{cfg: cfg, palette: Palette(cfg.Palette), log: log}
}

// Assignments derives route assignments from an optimization result, matching
// the anchor depot by name or id. An unmatched depot yields a structured
// warning instead of a silent skip.
func (c *Compositor) Assignments(result *model.OptimizationResult, depots []model.Depot) ([]model.RouteAssignment, []Warning) {
	if result == nil || len(result.Itineraries) == 0 {
		return nil, nil
	}
	depot, ok := findDepot(depots, result.DepotUsed)
	if !ok {
		w := Warning{Kind: WarnUnresolvedDepot, Detail: fmt.Sprintf("depot %q not found in depot list", result.DepotUsed)}
		c.log.Warn("unresolved depot reference", "kind", w.Kind, "depot", result.DepotUsed, "optimizationId", result.ID)
		return nil, []Warning{w}
	}
	assignments := make([]model.RouteAssignment, 0, len(result.Itineraries))
	for i, it := range result.Itineraries {
		label := it.VehicleInfo
		if label == "" {
			label = fmt.Sprintf("Vehicle %d", i+1)
		}
		assignments = append(assignments, model.RouteAssignment{
			RouteIndex:   i,
			VehicleLabel: label,
			ColorToken:   c.palette.ColorFor(i),
			Depot:        depot,
			Points:       it.Points,
		})
	}
	return assignments, nil
}

// BuildView composes the full view. resolved holds per-route resolution state
// for the result's epoch; routes absent from it render as loading layers.
// Empty depot/waste-point lists are not an error; the base view renders with
// no overlays.
func (c *Compositor) BuildView(depots []model.Depot, points []model.WastePoint, result *model.OptimizationResult, resolved map[int]model.ResolvedRoute) MapView {
	view := MapView{GeneratedAt: time.Now().UTC()}

	for _, d := range depots {
		view.Markers = append(view.Markers, Marker{
			ID: d.ID, Kind: "depot", Lat: d.Lat, Lng: d.Lng, Popup: depotPopup(d),
		})
	}
	for _, p := range points {
		view.Markers = append(view.Markers, Marker{
			ID: p.ID, Kind: "waste_point", Lat: p.Lat, Lng: p.Lng, Popup: wastePopup(p),
		})
	}

	assignments, warnings := c.Assignments(result, depots)
	view.Warnings = warnings

	anchors := map[string]model.Depot{}
	for _, a := range assignments {
		anchors[a.Depot.ID] = a.Depot
	}
	for _, d := range anchors {
		view.Circles = append(view.Circles, Circle{DepotID: d.ID, Lat: d.Lat, Lng: d.Lng, RadiusM: c.cfg.CoverageRadiusM})
	}

	for _, a := range assignments {
		layer := RouteLayer{
			RouteIndex:   a.RouteIndex,
			VehicleLabel: a.VehicleLabel,
			Color:        a.ColorToken,
			State:        LayerLoading,
			Opacity:      1,
		}
		if rr, ok := resolved[a.RouteIndex]; ok {
			layer.Coordinates = rr.Coordinates
			if rr.Degraded {
				layer.State = LayerDegraded
				layer.Dashed = true
				layer.Opacity = 0.45
				if len(rr.Coordinates) > 0 {
					start := rr.Coordinates[0]
					view.Markers = append(view.Markers, Marker{
						ID:    fmt.Sprintf("advisory-%d", a.RouteIndex),
						Kind:  "advisory",
						Lat:   start.Lat,
						Lng:   start.Lng,
						Popup: AdvisoryText,
					})
				}
			} else {
				layer.State = LayerResolved
				layer.DistanceKm = rr.DistanceKm
				layer.DurationMinutes = rr.DurationMinutes
				layer.Popup = fmt.Sprintf("%s - %s / %s", a.VehicleLabel, rr.FormatDistance(), rr.FormatDuration())
			}
		}
		view.Routes = append(view.Routes, layer)
	}

	if len(assignments) > 0 {
		view.Legend = c.palette.Legend(assignments)
	}
	if result != nil {
		view.Epoch = result.ID
	}
	view.Viewport = c.viewportFor(result, assignments)
	return view
}

// SetUserViewport records a manual pan/zoom. It holds until a new
// optimization result loads.
func (c *Compositor) SetUserViewport(v Viewport) {
	c.mu.Lock()
	c.user = &v
	c.mu.Unlock()
}

// viewportFor applies the auto-center rule: center on the anchor depot only
// the first time a result epoch is seen; otherwise honor the user's viewport,
// falling back to the configured home region.
func (c *Compositor) viewportFor(result *model.OptimizationResult, assignments []model.RouteAssignment) Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	def := Viewport{Center: c.cfg.DefaultCenter, Zoom: c.cfg.DefaultZoom}
	if result != nil && result.ID != c.autoEpoch {
		c.autoEpoch = result.ID
		c.user = nil
		if len(assignments) > 0 {
			return Viewport{Center: assignments[0].Depot.Location(), Zoom: c.cfg.DefaultZoom}
		}
		return def
	}
	if c.user != nil {
		return *c.user
	}
	if result != nil && len(assignments) > 0 {
		return Viewport{Center: assignments[0].Depot.Location(), Zoom: c.cfg.DefaultZoom}
	}
	return def
}

func findDepot(depots []model.Depot, ref string) (model.Depot, bool) {
	for _, d := range depots {
		if d.ID == ref || strings.EqualFold(d.Name, ref) {
			return d, true
		}
	}
	return model.Depot{}, false
}

func depotPopup(d model.Depot) string {
	state := "inactive"
	if d.IsActive {
		state = "active"
	}
	return fmt.Sprintf("%s - %s - capacity %.1f - (%.4f, %.4f)", d.Name, state, d.CapacityMax, d.Lat, d.Lng)
}

func wastePopup(p model.WastePoint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", p.Type, p.Status)
	if p.Zone != "" {
		fmt.Fprintf(&b, " - zone %s", p.Zone)
	}
	fmt.Fprintf(&b, " - reported %s", p.ReportedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, " - (%.4f, %.4f)", p.Lat, p.Lng)
	return b.String()
}
