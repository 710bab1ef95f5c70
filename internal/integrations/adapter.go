// Package integrations ingests waste reports from external sources
// (municipal exports, citizen-report feeds) into the store.
package integrations

import (
	"context"

	"ecomap/internal/model"
)

// ReportSource is the minimal interface for a waste-report feed.
type ReportSource interface {
	Name() string
	// FetchReports returns reports newer than the cursor plus the next cursor.
	FetchReports(ctx context.Context, cursor string) ([]model.WastePointIn, string, error)
}

// Importer writes fetched reports into the store, skipping invalid rows.
type Importer struct {
	Create func(ctx context.Context, in model.WastePointIn) (model.WastePoint, error)
}

// Run drains a source from the given cursor and returns how many reports were
// imported, how many rows were skipped, and the final cursor.
func (im Importer) Run(ctx context.Context, src ReportSource, cursor string) (imported, skipped int, next string, err error) {
	reports, next, err := src.FetchReports(ctx, cursor)
	if err != nil {
		return 0, 0, cursor, err
	}
	for _, in := range reports {
		if !(model.GeoPoint{Lat: in.Lat, Lng: in.Lng}).Valid() || !model.ValidWasteType(in.Type) {
			skipped++
			continue
		}
		if _, err := im.Create(ctx, in); err != nil {
			return imported, skipped, cursor, err
		}
		imported++
	}
	return imported, skipped, next, nil
}
