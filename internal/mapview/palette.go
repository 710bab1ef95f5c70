package mapview

import "ecomap/internal/model"

// Palette is the fixed ordered color cycle for route polylines. Assignment is
// a pure function of the route index: index i always maps to palette[i mod n],
// so re-reads never reshuffle colors and two indices P apart share a color.
type Palette []string

// ColorFor returns the color token for a route index.
func (p Palette) ColorFor(routeIndex int) string {
	if len(p) == 0 {
		return "#000000"
	}
	if routeIndex < 0 {
		routeIndex = -routeIndex
	}
	return p[routeIndex%len(p)]
}

// LegendEntry correlates one route's color with its vehicle identity. The
// numeric badge keeps routes distinguishable once the palette cycles.
type LegendEntry struct {
	RouteIndex   int    `json:"routeIndex"`
	Badge        int    `json:"badge"`
	VehicleLabel string `json:"vehicleLabel"`
	Color        string `json:"color"`
}

// Legend builds one entry per assignment, in route order.
func (p Palette) Legend(assignments []model.RouteAssignment) []LegendEntry {
	entries := make([]LegendEntry, 0, len(assignments))
	for _, a := range assignments {
		entries = append(entries, LegendEntry{
			RouteIndex:   a.RouteIndex,
			Badge:        a.RouteIndex + 1,
			VehicleLabel: a.VehicleLabel,
			Color:        p.ColorFor(a.RouteIndex),
		})
	}
	return entries
}
