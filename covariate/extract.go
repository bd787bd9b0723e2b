// Package covariate extracts per-unit scalar values from composite
// covariate rasters.
package covariate

import (
	"fmt"
	"math"

	"github.com/epimap/epimap-api/raster"
	"github.com/epimap/epimap-api/schema"
)

// NoCoverageError reports that no valid raster cell intersects the unit's
// geometry. Callers must treat this differently from a zero value: zero is
// a legitimate covariate reading, absence of signal is not.
type NoCoverageError struct {
	UnitID   string
	Variable string
}

func (e *NoCoverageError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("unit %s: no valid cells intersect geometry", e.UnitID)
	}
	return fmt.Sprintf("unit %s: no valid cells for variable %s", e.UnitID, e.Variable)
}

// Extract computes the area-weighted mean of raster cells whose centers
// fall inside the unit polygon. Cells are uniform, so the weighting
// reduces to a plain mean over the covered cells. No-data cells are
// skipped; if none remain, or the unit lies entirely outside the raster,
// a NoCoverageError is returned.
func Extract(g *raster.Grid, unit schema.SpatialUnit) (float64, error) {
	minLon, minLat, maxLon, maxLat := unit.BoundingBox()
	ext := g.Extent()

	if maxLon < ext.MinX || minLon > ext.MaxX || maxLat < ext.MinY || minLat > ext.MaxY {
		return 0, &NoCoverageError{UnitID: unit.ID}
	}

	startCol := clampIndex(int(math.Floor((minLon-g.OriginX)/g.CellSize)), g.Cols)
	endCol := clampIndex(int(math.Ceil((maxLon-g.OriginX)/g.CellSize)), g.Cols)
	startRow := clampIndex(int(math.Floor((g.OriginY-maxLat)/g.CellSize)), g.Rows)
	endRow := clampIndex(int(math.Ceil((g.OriginY-minLat)/g.CellSize)), g.Rows)

	var sum float64
	var count int
	for row := startRow; row <= endRow; row++ {
		for col := startCol; col <= endCol; col++ {
			x, y := g.CellCenter(col, row)
			if !unit.Contains(x, y) {
				continue
			}
			v := g.At(col, row)
			if raster.IsNoData(v) {
				continue
			}
			sum += v
			count++
		}
	}

	if count == 0 {
		return 0, &NoCoverageError{UnitID: unit.ID}
	}
	return sum / float64(count), nil
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
