package mapview

import (
	"testing"

	"ecomap/internal/config"
	"ecomap/internal/model"
)

func TestColorForIsDeterministicAndCyclic(t *testing.T) {
	p := Palette(config.DefaultPalette)
	n := len(p)
	if n < 2 {
		t.Fatalf("palette too small: %d", n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if p.ColorFor(i) == p.ColorFor(j) {
				t.Fatalf("indices %d and %d within one cycle share color %s", i, j, p.ColorFor(i))
			}
		}
	}
	for i := 0; i < 3*n; i++ {
		if p.ColorFor(i) != p.ColorFor(i+n) {
			t.Fatalf("index %d and %d must share a color", i, i+n)
		}
		if p.ColorFor(i) != p.ColorFor(i) {
			t.Fatalf("ColorFor not deterministic at %d", i)
		}
	}
}

func TestColorForEmptyPalette(t *testing.T) {
	var p Palette
	if got := p.ColorFor(3); got != "#000000" {
		t.Fatalf("empty palette fallback: %q", got)
	}
}

func TestLegendBadgesDisambiguateCycledColors(t *testing.T) {
	p := Palette([]string{"#111111", "#222222"})
	assignments := []model.RouteAssignment{
		{RouteIndex: 0, VehicleLabel: "Truck A"},
		{RouteIndex: 1, VehicleLabel: "Truck B"},
		{RouteIndex: 2, VehicleLabel: "Truck C"},
	}
	legend := p.Legend(assignments)
	if len(legend) != 3 {
		t.Fatalf("legend entries: %d", len(legend))
	}
	if legend[0].Color != legend[2].Color {
		t.Fatal("indices 0 and 2 should cycle to the same color")
	}
	if legend[0].Badge == legend[2].Badge {
		t.Fatal("badges must stay unique when colors cycle")
	}
	if legend[1].VehicleLabel != "Truck B" || legend[1].Badge != 2 {
		t.Fatalf("entry 1: %+v", legend[1])
	}
}
