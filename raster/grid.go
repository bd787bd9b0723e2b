package raster

import (
	"math"

	"github.com/epimap/epimap-api/schema"
)

// Grid is an in-memory single-band raster with a north-up geotransform.
// Data is row-major with row 0 at the top (maximum Y). No-data cells are
// stored as NaN regardless of the source format's sentinel.
type Grid struct {
	CRS      string
	OriginX  float64 // X of the left edge
	OriginY  float64 // Y of the top edge
	CellSize float64 // square cells
	Cols     int
	Rows     int
	Data     []float64
}

func NewGrid(crs string, originX, originY, cellSize float64, cols, rows int) *Grid {
	data := make([]float64, cols*rows)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Grid{
		CRS:      crs,
		OriginX:  originX,
		OriginY:  originY,
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		Data:     data,
	}
}

func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Cols+col]
}

func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Cols+col] = v
}

func IsNoData(v float64) bool {
	return math.IsNaN(v)
}

// Extent returns the outer bounds of the grid.
func (g *Grid) Extent() schema.Extent {
	return schema.Extent{
		MinX: g.OriginX,
		MinY: g.OriginY - float64(g.Rows)*g.CellSize,
		MaxX: g.OriginX + float64(g.Cols)*g.CellSize,
		MaxY: g.OriginY,
	}
}

// CellCenter returns the map coordinates of a cell's center.
func (g *Grid) CellCenter(col, row int) (float64, float64) {
	x := g.OriginX + (float64(col)+0.5)*g.CellSize
	y := g.OriginY - (float64(row)+0.5)*g.CellSize
	return x, y
}

// CellAt returns the cell containing the map coordinate, and whether the
// coordinate falls inside the grid.
func (g *Grid) CellAt(x, y float64) (int, int, bool) {
	col := int(math.Floor((x - g.OriginX) / g.CellSize))
	row := int(math.Floor((g.OriginY - y) / g.CellSize))
	if col < 0 || col >= g.Cols || row < 0 || row >= g.Rows {
		return 0, 0, false
	}
	return col, row, true
}

// Sample returns the value at the map coordinate, NaN when the coordinate
// is outside the grid or the cell holds no data.
func (g *Grid) Sample(x, y float64) float64 {
	col, row, ok := g.CellAt(x, y)
	if !ok {
		return math.NaN()
	}
	return g.At(col, row)
}
