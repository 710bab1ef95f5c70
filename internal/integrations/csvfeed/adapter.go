// Package csvfeed reads waste reports from a CSV export with the header
// lat,lng,type,zone.
package csvfeed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ecomap/internal/model"
)

type Adapter struct {
	Path string
}

func (a Adapter) Name() string { return "csv-feed" }

// FetchReports parses the whole file on every call; the cursor is the number
// of data rows already consumed, so repeated runs only return new rows.
func (a Adapter) FetchReports(ctx context.Context, cursor string) ([]model.WastePointIn, string, error) {
	f, err := os.Open(a.Path)
	if err != nil {
		return nil, cursor, err
	}
	defer func() { _ = f.Close() }()
	return parse(f, cursor)
}

func parse(r io.Reader, cursor string) ([]model.WastePointIn, string, error) {
	skip := 0
	if cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil && n > 0 {
			skip = n
		}
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, cursor, fmt.Errorf("csv feed: read header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, req := range []string{"lat", "lng", "type"} {
		if _, ok := col[req]; !ok {
			return nil, cursor, fmt.Errorf("csv feed: missing column %q", req)
		}
	}
	out := []model.WastePointIn{}
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cursor, fmt.Errorf("csv feed: row %d: %w", row+1, err)
		}
		row++
		if row <= skip {
			continue
		}
		lat, err1 := strconv.ParseFloat(rec[col["lat"]], 64)
		lng, err2 := strconv.ParseFloat(rec[col["lng"]], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		in := model.WastePointIn{Lat: lat, Lng: lng, Type: strings.ToLower(strings.TrimSpace(rec[col["type"]]))}
		if i, ok := col["zone"]; ok && i < len(rec) {
			in.Zone = strings.TrimSpace(rec[i])
		}
		out = append(out, in)
	}
	return out, strconv.Itoa(row), nil
}
