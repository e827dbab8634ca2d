package survey

import (
	"math"
	"testing"
	"time"
)

func vol(v float64) *float64 { return &v }

func sparseSurvey() *EchoPlateSurvey {
	return &EchoPlateSurvey{
		PlateType:         "384PP_AQ_BP",
		Timestamp:         time.Date(2023, 5, 1, 12, 34, 56, 0, time.UTC),
		SerialNumber:      "E5XX-1234",
		VTL:               7,
		Original:          1,
		DataFormatVersion: 1,
		SurveyRows:        16,
		SurveyColumns:     24,
		SurveyTotalWells:  3,
		Wells: []WellSurvey{
			{Row: 1, Column: 1, Well: "B2", Volume: vol(10), Fluid: "AQ", FluidUnits: "Percent"},
			{Row: 2, Column: 3, Well: "C4", Fluid: "AQ", FluidUnits: "Percent"},
			{Row: 3, Column: 2, Well: "D3", Volume: vol(30), Fluid: "AQ", FluidUnits: "Percent"},
		},
	}
}

func TestWellExtents(t *testing.T) {
	s := sparseSurvey()
	extents, ok := s.WellExtents()
	if !ok {
		t.Fatalf("expected extents")
	}
	want := WellExtents{RowStart: 1, RowEnd: 4, ColStart: 1, ColEnd: 4}
	if extents != want {
		t.Fatalf("unexpected extents %+v", extents)
	}
	if rows, cols := extents.Shape(); rows != 3 || cols != 3 {
		t.Fatalf("unexpected shape %d x %d", rows, cols)
	}
}

func TestWellExtentsEmpty(t *testing.T) {
	s := &EchoPlateSurvey{}
	if _, ok := s.WellExtents(); ok {
		t.Fatalf("empty survey should have no extents")
	}
	if grid := s.VolumesGrid(); grid != nil {
		t.Fatalf("empty survey should have no grid, got %v", grid)
	}
}

func TestVolumesGrid(t *testing.T) {
	grid := sparseSurvey().VolumesGrid()
	if len(grid) != 3 || len(grid[0]) != 3 {
		t.Fatalf("unexpected grid shape %v", grid)
	}
	if grid[0][0] != 10 {
		t.Fatalf("B2 should land at the origin, got %v", grid[0][0])
	}
	if grid[2][1] != 30 {
		t.Fatalf("D3 misplaced, got %v", grid[2][1])
	}
	// A surveyed well with an absent volume reads NaN, same as an
	// unsurveyed position.
	if !math.IsNaN(grid[1][2]) {
		t.Fatalf("absent volume should be NaN, got %v", grid[1][2])
	}
	if !math.IsNaN(grid[0][1]) {
		t.Fatalf("unsurveyed position should be NaN, got %v", grid[0][1])
	}
}
