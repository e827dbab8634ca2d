package survey

import "math"

// WellExtents is the half-open bounding box of surveyed wells in
// zero-based grid indexes.
type WellExtents struct {
	RowStart int
	RowEnd   int
	ColStart int
	ColEnd   int
}

// Shape returns the bounding box dimensions in rows and columns.
func (e WellExtents) Shape() (rows, cols int) {
	return e.RowEnd - e.RowStart, e.ColEnd - e.ColStart
}

type gridPoint struct {
	row, col int
	volume   float64
}

func pointExtents(points []gridPoint) (WellExtents, bool) {
	if len(points) == 0 {
		return WellExtents{}, false
	}
	e := WellExtents{
		RowStart: points[0].row,
		RowEnd:   points[0].row + 1,
		ColStart: points[0].col,
		ColEnd:   points[0].col + 1,
	}
	for _, p := range points[1:] {
		e.RowStart = min(e.RowStart, p.row)
		e.RowEnd = max(e.RowEnd, p.row+1)
		e.ColStart = min(e.ColStart, p.col)
		e.ColEnd = max(e.ColEnd, p.col+1)
	}
	return e, true
}

// pointGrid lays points out as a dense row-major grid covering the
// extents, NaN everywhere a point is missing.
func pointGrid(points []gridPoint, e WellExtents) [][]float64 {
	rows, cols := e.Shape()
	grid := make([][]float64, rows)
	for i := range grid {
		row := make([]float64, cols)
		for j := range row {
			row[j] = math.NaN()
		}
		grid[i] = row
	}
	for _, p := range points {
		grid[p.row-e.RowStart][p.col-e.ColStart] = p.volume
	}
	return grid
}

// WellExtents returns the bounding box of the surveyed wells; ok is
// false when the survey has none.
func (s *EchoPlateSurvey) WellExtents() (WellExtents, bool) {
	e, ok := pointExtents(s.gridPoints())
	return e, ok
}

// VolumesGrid lays the measured volumes out over the well extents.
// Absent volumes and unsurveyed positions are NaN. Returns nil for a
// survey with no wells.
func (s *EchoPlateSurvey) VolumesGrid() [][]float64 {
	points := s.gridPoints()
	e, ok := pointExtents(points)
	if !ok {
		return nil
	}
	return pointGrid(points, e)
}

func (s *EchoPlateSurvey) gridPoints() []gridPoint {
	points := make([]gridPoint, 0, len(s.Wells))
	for i := range s.Wells {
		w := &s.Wells[i]
		volume := math.NaN()
		if w.Volume != nil {
			volume = *w.Volume
		}
		points = append(points, gridPoint{row: w.Row, col: w.Column, volume: volume})
	}
	return points
}
