package api

import (
	"fmt"

	"ecomap/internal/model"
)

// validateOptimization checks an incoming optimization result before it is
// accepted. The result is external input; routes are taken verbatim, but the
// coordinates they carry must at least be plottable.
func validateOptimization(res *model.OptimizationResult) error {
	if res.DepotUsed == "" {
		return fmt.Errorf("depotUtilise is required")
	}
	if len(res.Itineraries) == 0 {
		return fmt.Errorf("at least one itinerary is required")
	}
	for i, it := range res.Itineraries {
		for j, p := range it.Points {
			if !p.Location().Valid() {
				return fmt.Errorf("itinerary %d point %d: coordinates out of range", i, j)
			}
		}
	}
	return nil
}

func validateWastePointIn(in model.WastePointIn) error {
	if !(model.GeoPoint{Lat: in.Lat, Lng: in.Lng}).Valid() {
		return fmt.Errorf("coordinates out of range")
	}
	if !model.ValidWasteType(in.Type) {
		return fmt.Errorf("unknown waste type %q", in.Type)
	}
	return nil
}

func validateDepotInput(in model.DepotInput, forCreate bool) error {
	if forCreate && in.Name == "" {
		return fmt.Errorf("name is required")
	}
	if forCreate && (in.Lat == nil || in.Lng == nil) {
		return fmt.Errorf("lat and lng are required")
	}
	if in.Lat != nil && in.Lng != nil {
		if !(model.GeoPoint{Lat: *in.Lat, Lng: *in.Lng}).Valid() {
			return fmt.Errorf("coordinates out of range")
		}
	}
	if in.CapacityMax != nil && *in.CapacityMax < 0 {
		return fmt.Errorf("capacityMax must be >= 0")
	}
	return nil
}
