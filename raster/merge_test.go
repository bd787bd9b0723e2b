package raster_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimap/epimap-api/raster"
)

func makeTile(crs string, originX, originY, cellSize float64, cols, rows int, values []float64) *raster.Grid {
	g := raster.NewGrid(crs, originX, originY, cellSize, cols, rows)
	for i, v := range values {
		if !math.IsNaN(v) {
			g.Set(i%cols, i/cols, v)
		}
	}
	return g
}

func TestMergeTilesExactTiling(t *testing.T) {
	left := makeTile("EPSG:4326", 0, 2, 1, 2, 2, []float64{1, 2, 3, 4})
	right := makeTile("EPSG:4326", 2, 2, 1, 2, 2, []float64{5, 6, 7, 8})

	merged, err := raster.MergeTiles(context.Background(), []*raster.Grid{left, right})
	require.NoError(t, err)

	assert.Equal(t, 4, merged.Cols)
	assert.Equal(t, 2, merged.Rows)
	assert.Equal(t, []float64{1, 2, 5, 6, 3, 4, 7, 8}, merged.Data)
}

func TestMergeTilesNoDataNeverOverwrites(t *testing.T) {
	nan := math.NaN()
	first := makeTile("EPSG:4326", 0, 2, 1, 2, 2, []float64{1, 2, 3, 4})
	second := makeTile("EPSG:4326", 0, 2, 1, 2, 2, []float64{nan, 99, nan, nan})

	merged, err := raster.MergeTiles(context.Background(), []*raster.Grid{first, second})
	require.NoError(t, err)

	// later tile wins only where it carries data
	assert.Equal(t, 1.0, merged.At(0, 0))
	assert.Equal(t, 99.0, merged.At(1, 0))
	assert.Equal(t, 3.0, merged.At(0, 1))
	assert.Equal(t, 4.0, merged.At(1, 1))
}

func TestMergeTilesUnionExtentWithGap(t *testing.T) {
	a := makeTile("EPSG:4326", 0, 1, 1, 1, 1, []float64{7})
	b := makeTile("EPSG:4326", 2, 1, 1, 1, 1, []float64{9})

	merged, err := raster.MergeTiles(context.Background(), []*raster.Grid{a, b})
	require.NoError(t, err)

	assert.Equal(t, 3, merged.Cols)
	assert.Equal(t, 7.0, merged.At(0, 0))
	assert.True(t, raster.IsNoData(merged.At(1, 0)))
	assert.Equal(t, 9.0, merged.At(2, 0))
}

func TestMergeTilesReferenceMismatch(t *testing.T) {
	a := makeTile("EPSG:4326", 0, 1, 1, 1, 1, []float64{1})
	b := makeTile("EPSG:3857", 1, 1, 1, 1, 1, []float64{2})

	_, err := raster.MergeTiles(context.Background(), []*raster.Grid{a, b})

	var mismatch *raster.ReferenceMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "EPSG:4326", mismatch.Want)
	assert.Equal(t, "EPSG:3857", mismatch.Got)
}

func TestASCIIRoundTrip(t *testing.T) {
	nan := math.NaN()
	g := makeTile("EPSG:32632", 10.5, 20.25, 0.25, 3, 2, []float64{1.5, nan, -3, 0, 2.125, 7})

	path := filepath.Join(t.TempDir(), "grid.asc.gz")
	require.NoError(t, raster.WriteASCIIGz(path, g))

	got, err := raster.ReadASCII(path)
	require.NoError(t, err)

	assert.Equal(t, g.CRS, got.CRS)
	assert.Equal(t, g.Cols, got.Cols)
	assert.Equal(t, g.Rows, got.Rows)
	assert.InDelta(t, g.OriginX, got.OriginX, 1e-9)
	assert.InDelta(t, g.OriginY, got.OriginY, 1e-9)
	for i := range g.Data {
		if math.IsNaN(g.Data[i]) {
			assert.True(t, math.IsNaN(got.Data[i]), "cell %d", i)
		} else {
			assert.Equal(t, g.Data[i], got.Data[i], "cell %d", i)
		}
	}
}

func writeTileFile(t *testing.T, dir, name string, g *raster.Grid) {
	t.Helper()
	require.NoError(t, raster.WriteASCIIGz(filepath.Join(dir, name), g))
}

func TestMergeDirectoryDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "ndvi-1.asc.gz", makeTile("EPSG:4326", 0, 2, 1, 2, 2, []float64{1, 2, 3, 4}))
	writeTileFile(t, dir, "ndvi-2.asc.gz", makeTile("EPSG:4326", 2, 2, 1, 2, 2, []float64{5, 6, 7, 8}))

	results, err := raster.MergeDirectory(context.Background(), dir, raster.MergeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "ndvi", results[0].Prefix)
	assert.Equal(t, 2, results[0].TileCount)

	first, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)

	// tiles are preserved, so a second run rebuilds the same composite
	results, err = raster.MergeDirectory(context.Background(), dir, raster.MergeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	second, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMergeDirectoryIsolatesGroupFailure(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "bad-1.asc.gz", makeTile("EPSG:4326", 0, 1, 1, 1, 1, []float64{1}))
	writeTileFile(t, dir, "bad-2.asc.gz", makeTile("EPSG:3857", 1, 1, 1, 1, 1, []float64{2}))
	writeTileFile(t, dir, "good-1.asc.gz", makeTile("EPSG:4326", 0, 1, 1, 1, 1, []float64{3}))
	writeTileFile(t, dir, "good-2.asc.gz", makeTile("EPSG:4326", 1, 1, 1, 1, 1, []float64{4}))

	results, err := raster.MergeDirectory(context.Background(), dir, raster.MergeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPrefix := map[string]raster.GroupResult{}
	for _, r := range results {
		byPrefix[r.Prefix] = r
	}

	var mismatch *raster.ReferenceMismatchError
	assert.True(t, errors.As(byPrefix["bad"].Err, &mismatch))

	require.NoError(t, byPrefix["good"].Err)
	assert.FileExists(t, byPrefix["good"].Path)
	assert.Equal(t, 2, byPrefix["good"].Grid.Cols)
}

func TestMergeGroupCancelledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "ndvi-1.asc.gz", makeTile("EPSG:4326", 0, 2, 1, 2, 2, []float64{1, 2, 3, 4}))
	writeTileFile(t, dir, "ndvi-2.asc.gz", makeTile("EPSG:4326", 2, 2, 1, 2, 2, []float64{5, 6, 7, 8}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	group := raster.TileGroup{
		Prefix:   "ndvi",
		Strategy: "numeric-sequence",
		Files:    []string{"ndvi-1.asc.gz", "ndvi-2.asc.gz"},
	}
	result := raster.MergeGroup(ctx, dir, group, raster.MergeOptions{})

	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Nil(t, result.Grid)
	assert.NoFileExists(t, filepath.Join(dir, "ndvi_merged.asc.gz"))
}

func TestMergeDirectoryCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "evi-1.asc.gz", makeTile("EPSG:4326", 0, 1, 1, 1, 1, []float64{1}))
	writeTileFile(t, dir, "evi-2.asc.gz", makeTile("EPSG:4326", 1, 1, 1, 1, 1, []float64{2}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := raster.MergeDirectory(ctx, dir, raster.MergeOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "evi_merged.asc.gz"))
}

func TestMergeGroupTIFFZeroNoData(t *testing.T) {
	dir := t.TempDir()
	writeTIFF(t, filepath.Join(dir, "lst-1.tif"), [][]uint8{{0, 20}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lst-1.tfw"), []byte("1\n0\n0\n-1\n0.5\n0.5\n"), 0600))
	writeTIFF(t, filepath.Join(dir, "lst-2.tif"), [][]uint8{{30, 0}})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lst-2.tfw"), []byte("1\n0\n0\n-1\n2.5\n0.5\n"), 0600))

	group := raster.TileGroup{
		Prefix:   "lst",
		Strategy: "numeric-sequence",
		Files:    []string{"lst-1.tif", "lst-2.tif"},
	}

	// a zero sentinel must be honored, not treated as unset
	zero := 0.0
	result := raster.MergeGroup(context.Background(), dir, group, raster.MergeOptions{TIFFNoData: &zero})
	require.NoError(t, result.Err)

	assert.True(t, raster.IsNoData(result.Grid.At(0, 0)))
	assert.Equal(t, 20.0, result.Grid.At(1, 0))
	assert.Equal(t, 30.0, result.Grid.At(2, 0))
	assert.True(t, raster.IsNoData(result.Grid.At(3, 0)))

	// without a sentinel every pixel, zeros included, is data
	result = raster.MergeGroup(context.Background(), dir, group, raster.MergeOptions{})
	require.NoError(t, result.Err)
	assert.Equal(t, 0.0, result.Grid.At(0, 0))
}

func TestMergeDirectoryDeleteTiles(t *testing.T) {
	dir := t.TempDir()
	writeTileFile(t, dir, "evi-1.asc.gz", makeTile("EPSG:4326", 0, 1, 1, 1, 1, []float64{1}))
	writeTileFile(t, dir, "evi-2.asc.gz", makeTile("EPSG:4326", 1, 1, 1, 1, 1, []float64{2}))

	results, err := raster.MergeDirectory(context.Background(), dir, raster.MergeOptions{DeleteTiles: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	assert.NoFileExists(t, filepath.Join(dir, "evi-1.asc.gz"))
	assert.NoFileExists(t, filepath.Join(dir, "evi-2.asc.gz"))
	assert.FileExists(t, results[0].Path)
}
