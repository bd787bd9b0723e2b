package raster

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const rasterLogPrefix = "raster"

// ReferenceMismatchError reports incompatible coordinate reference systems
// within one tile group. The group is skipped; other groups still merge.
type ReferenceMismatchError struct {
	Group string
	Want  string
	Got   string
	File  string
}

func (e *ReferenceMismatchError) Error() string {
	return fmt.Sprintf("tile group %s: %s uses CRS %s, group uses %s", e.Group, e.File, e.Got, e.Want)
}

// MergeOptions controls directory merging.
type MergeOptions struct {
	Strategies  []PatternStrategy
	DeleteTiles bool     // original tiles are preserved unless set
	TIFFCRS     string   // CRS assumed for .tif tiles, default EPSG:4326
	TIFFNoData  *float64 // no-data pixel value for .tif tiles; nil for none, 0 is a valid sentinel
	Parallelism int      // concurrent group merges, default 1
}

// GroupResult is the per-group outcome of a directory merge. Partial
// success is reported per group, never folded into a single pass/fail.
type GroupResult struct {
	Prefix    string
	Strategy  string
	TileCount int
	Path      string // composite path when Err is nil
	Grid      *Grid
	Err       error
}

// MergeDirectory detects tile groups under dir and merges each into a
// composite written next to the tiles as <prefix>_merged.asc.gz.
func MergeDirectory(ctx context.Context, dir string, opts MergeOptions) ([]GroupResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.Contains(e.Name(), "_merged") {
			continue
		}
		names = append(names, e.Name())
	}

	strategies := opts.Strategies
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	groups := DetectGroups(names, strategies)

	results := make([]GroupResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			results[i] = MergeGroup(gctx, dir, group, opts)
			if results[i].Err != nil {
				log.WithFields(log.Fields{
					"prefix": rasterLogPrefix,
					"group":  group.Prefix,
					"error":  results[i].Err,
				}).Warn("tile group merge failed")
			}
			// group failures are reported per group, not propagated
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MergeGroup merges one detected tile group and writes its composite.
func MergeGroup(ctx context.Context, dir string, group TileGroup, opts MergeOptions) GroupResult {
	result := GroupResult{
		Prefix:    group.Prefix,
		Strategy:  group.Strategy,
		TileCount: len(group.Files),
	}

	tiles := make([]*Grid, 0, len(group.Files))
	for _, name := range group.Files {
		if err := ctx.Err(); err != nil {
			result.Err = err
			return result
		}
		tile, err := readTile(filepath.Join(dir, name), opts)
		if err != nil {
			result.Err = err
			return result
		}
		if len(tiles) > 0 && tile.CRS != tiles[0].CRS {
			result.Err = &ReferenceMismatchError{
				Group: group.Prefix,
				Want:  tiles[0].CRS,
				Got:   tile.CRS,
				File:  name,
			}
			return result
		}
		tiles = append(tiles, tile)
	}

	merged, err := MergeTiles(ctx, tiles)
	if err != nil {
		result.Err = err
		return result
	}

	path := filepath.Join(dir, group.Prefix+"_merged.asc.gz")
	if err := WriteASCIIGz(path, merged); err != nil {
		result.Err = err
		return result
	}

	if opts.DeleteTiles {
		for _, name := range group.Files {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				log.WithFields(log.Fields{
					"prefix": rasterLogPrefix,
					"file":   name,
					"error":  err,
				}).Warn("cannot remove merged tile")
			}
		}
	}

	result.Path = path
	result.Grid = merged
	return result
}

func readTile(path string, opts MergeOptions) (*Grid, error) {
	switch {
	case strings.HasSuffix(path, ".asc"), strings.HasSuffix(path, ".asc.gz"):
		return ReadASCII(path)
	case strings.HasSuffix(path, ".tif"), strings.HasSuffix(path, ".tiff"):
		crs := opts.TIFFCRS
		if crs == "" {
			crs = "EPSG:4326"
		}
		nodata := math.NaN()
		if opts.TIFFNoData != nil {
			nodata = *opts.TIFFNoData
		}
		return ReadTIFF(path, crs, nodata)
	default:
		return nil, fmt.Errorf("unsupported tile format: %s", filepath.Base(path))
	}
}

// MergeTiles places every tile into a destination grid covering the union
// of their extents at the finest encountered resolution. Overlaps resolve
// by last-write order over the sorted tile list, except that no-data never
// overwrites valid data.
func MergeTiles(ctx context.Context, tiles []*Grid) (*Grid, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("empty tile group")
	}

	crs := tiles[0].CRS
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	cell := math.Inf(1)
	for _, t := range tiles {
		if t.CRS != crs {
			return nil, &ReferenceMismatchError{Want: crs, Got: t.CRS}
		}
		ext := t.Extent()
		minX = math.Min(minX, ext.MinX)
		minY = math.Min(minY, ext.MinY)
		maxX = math.Max(maxX, ext.MaxX)
		maxY = math.Max(maxY, ext.MaxY)
		cell = math.Min(cell, t.CellSize)
	}

	cols := int(math.Round((maxX - minX) / cell))
	rows := int(math.Round((maxY - minY) / cell))
	dst := NewGrid(crs, minX, maxY, cell, cols, rows)

	for _, tile := range tiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stampTile(dst, tile)
	}
	return dst, nil
}

// stampTile samples the tile at each destination cell center inside the
// tile's extent. At equal resolution this is an exact copy; coarser tiles
// are nearest-neighbor upsampled.
func stampTile(dst, tile *Grid) {
	ext := tile.Extent()
	startCol, startRow, ok := dst.CellAt(ext.MinX+dst.CellSize/2, ext.MaxY-dst.CellSize/2)
	if !ok {
		return
	}
	endCol := startCol + int(math.Round((ext.MaxX-ext.MinX)/dst.CellSize))
	endRow := startRow + int(math.Round((ext.MaxY-ext.MinY)/dst.CellSize))

	for row := startRow; row < endRow && row < dst.Rows; row++ {
		for col := startCol; col < endCol && col < dst.Cols; col++ {
			x, y := dst.CellCenter(col, row)
			v := tile.Sample(x, y)
			if IsNoData(v) {
				continue
			}
			dst.Set(col, row, v)
		}
	}
}
