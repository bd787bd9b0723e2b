package raster

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// GeoTIFF tile support. Satellite-export tiles arrive as grayscale 8- or
// 16-bit TIFFs georeferenced by an ESRI world file (.tfw) next to the
// image. Rotated transforms are rejected; the engine only consumes
// north-up exports.

// ReadTIFF decodes a grayscale TIFF tile. nodata is the pixel value that
// marks missing cells; pass NaN when the export has no no-data sentinel.
// The CRS is taken from the caller since plain TIFF carries none.
func ReadTIFF(path, crs string, nodata float64) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	originX, originY, cellSize, err := readWorldFile(worldFilePath(path))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	g := NewGrid(crs, originX, originY, cellSize, cols, rows)

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			v := grayValue(img, bounds.Min.X+col, bounds.Min.Y+row)
			if !math.IsNaN(nodata) && v == nodata {
				continue
			}
			g.Set(col, row, v)
		}
	}
	return g, nil
}

func grayValue(img image.Image, x, y int) float64 {
	switch m := img.(type) {
	case *image.Gray:
		return float64(m.GrayAt(x, y).Y)
	case *image.Gray16:
		return float64(m.Gray16At(x, y).Y)
	default:
		r, g, b, _ := img.At(x, y).RGBA()
		return float64(r+g+b) / 3.0 / 257.0
	}
}

func worldFilePath(tiffPath string) string {
	ext := filepath.Ext(tiffPath)
	return strings.TrimSuffix(tiffPath, ext) + ".tfw"
}

// readWorldFile parses the six-line ESRI world file and converts its
// center-of-top-left-pixel anchor to the grid's edge-anchored origin.
func readWorldFile(path string) (originX, originY, cellSize float64, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("world file: %w", err)
	}

	fields := strings.Fields(string(raw))
	if len(fields) != 6 {
		return 0, 0, 0, fmt.Errorf("world file %s: expected 6 values, found %d", filepath.Base(path), len(fields))
	}
	vals := make([]float64, 6)
	for i, field := range fields {
		if vals[i], err = strconv.ParseFloat(field, 64); err != nil {
			return 0, 0, 0, fmt.Errorf("world file %s: %w", filepath.Base(path), err)
		}
	}

	if vals[1] != 0 || vals[2] != 0 {
		return 0, 0, 0, fmt.Errorf("world file %s: rotated transforms are not supported", filepath.Base(path))
	}
	if vals[0] <= 0 || vals[3] >= 0 {
		return 0, 0, 0, fmt.Errorf("world file %s: expected north-up transform", filepath.Base(path))
	}

	cellSize = vals[0]
	originX = vals[4] - cellSize/2
	originY = vals[5] + cellSize/2
	return originX, originY, cellSize, nil
}
