package raster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epimap/epimap-api/raster"
)

func TestDetectGroupsOffsetPair(t *testing.T) {
	files := []string{
		"X-0000000000-0000000000.tif",
		"X-0000000000-0000001024.tif",
		"X-0000001024-0000000000.tif",
		"X-0000001024-0000001024.tif",
	}

	groups := raster.DetectGroups(files, raster.DefaultStrategies())

	require.Len(t, groups, 1)
	assert.Equal(t, "X", groups[0].Prefix)
	assert.Equal(t, "offset-pair", groups[0].Strategy)
	assert.Len(t, groups[0].Files, 4)
}

func TestDetectGroupsStrategyOrder(t *testing.T) {
	files := []string{
		"evi-0000000000-0000000000.tif",
		"evi-0000000000-0000000512.tif",
		"ndvi-1.asc",
		"ndvi-2.asc",
		"rainfall001.asc",
		"rainfall002.asc",
		"readme.txt",
	}

	groups := raster.DetectGroups(files, raster.DefaultStrategies())

	require.Len(t, groups, 3)
	byPrefix := map[string]raster.TileGroup{}
	for _, g := range groups {
		byPrefix[g.Prefix] = g
	}

	assert.Equal(t, "offset-pair", byPrefix["evi"].Strategy)
	assert.Equal(t, "numeric-sequence", byPrefix["ndvi"].Strategy)
	assert.Equal(t, "zero-padded", byPrefix["rainfall"].Strategy)
}

func TestDetectGroupsRequiresTwoFiles(t *testing.T) {
	files := []string{
		"lonely-0000000000-0000000000.tif",
		"alone-3.asc",
	}

	groups := raster.DetectGroups(files, raster.DefaultStrategies())
	assert.Empty(t, groups)
}

func TestDetectGroupsDeterministicOrder(t *testing.T) {
	shuffled := []string{"b-2.asc", "a-1.asc", "b-1.asc", "a-2.asc"}
	sorted := []string{"a-1.asc", "a-2.asc", "b-1.asc", "b-2.asc"}

	g1 := raster.DetectGroups(shuffled, raster.DefaultStrategies())
	g2 := raster.DetectGroups(sorted, raster.DefaultStrategies())

	assert.Equal(t, g2, g1)
}
