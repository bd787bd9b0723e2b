package raster

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ESRI ASCII grid support. This is the engine's native interchange format:
// tiles may arrive as .asc or .asc.gz, and composites are always written
// as gzipped ASCII so output stays lossless and byte-reproducible.

const asciiNoData = -9999.0

// ReadASCII parses an ESRI ASCII grid. The CRS is read from an optional
// trailing "crs" header line; files without one get "EPSG:4326".
func ReadASCII(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	return decodeASCII(r)
}

func decodeASCII(r io.Reader) (*Grid, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	header := map[string]string{}
	var rows [][]float64

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		key := strings.ToLower(fields[0])
		if len(rows) == 0 && len(fields) == 2 && isHeaderKey(key) {
			header[key] = fields[1]
			continue
		}
		row := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid cell value %q: %w", field, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	cols, err := headerInt(header, "ncols")
	if err != nil {
		return nil, err
	}
	nrows, err := headerInt(header, "nrows")
	if err != nil {
		return nil, err
	}
	xll, err := headerFloat(header, "xllcorner")
	if err != nil {
		return nil, err
	}
	yll, err := headerFloat(header, "yllcorner")
	if err != nil {
		return nil, err
	}
	cell, err := headerFloat(header, "cellsize")
	if err != nil {
		return nil, err
	}
	nodata := asciiNoData
	if raw, ok := header["nodata_value"]; ok {
		if nodata, err = strconv.ParseFloat(raw, 64); err != nil {
			return nil, fmt.Errorf("invalid nodata_value %q", raw)
		}
	}
	crs := header["crs"]
	if crs == "" {
		crs = "EPSG:4326"
	}

	if len(rows) != nrows {
		return nil, fmt.Errorf("expected %d rows, found %d", nrows, len(rows))
	}

	g := NewGrid(crs, xll, yll+float64(nrows)*cell, cell, cols, nrows)
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", r, len(row), cols)
		}
		for c, v := range row {
			if v == nodata {
				continue
			}
			g.Set(c, r, v)
		}
	}
	return g, nil
}

func isHeaderKey(key string) bool {
	switch key {
	case "ncols", "nrows", "xllcorner", "yllcorner", "cellsize", "nodata_value", "crs":
		return true
	}
	return false
}

func headerInt(header map[string]string, key string) (int, error) {
	raw, ok := header[key]
	if !ok {
		return 0, fmt.Errorf("missing header field %q", key)
	}
	return strconv.Atoi(raw)
}

func headerFloat(header map[string]string, key string) (float64, error) {
	raw, ok := header[key]
	if !ok {
		return 0, fmt.Errorf("missing header field %q", key)
	}
	return strconv.ParseFloat(raw, 64)
}

// WriteASCIIGz writes the grid as a gzipped ESRI ASCII file. Cell values
// are rendered with strconv's shortest exact representation, so writing
// the same grid twice produces identical bytes.
func WriteASCIIGz(path string, g *Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	w := bufio.NewWriter(gz)

	ext := g.Extent()
	fmt.Fprintf(w, "ncols %d\n", g.Cols)
	fmt.Fprintf(w, "nrows %d\n", g.Rows)
	fmt.Fprintf(w, "xllcorner %s\n", formatFloat(ext.MinX))
	fmt.Fprintf(w, "yllcorner %s\n", formatFloat(ext.MinY))
	fmt.Fprintf(w, "cellsize %s\n", formatFloat(g.CellSize))
	fmt.Fprintf(w, "nodata_value %s\n", formatFloat(asciiNoData))
	fmt.Fprintf(w, "crs %s\n", g.CRS)

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				w.WriteByte(' ')
			}
			v := g.At(col, row)
			if math.IsNaN(v) {
				v = asciiNoData
			}
			w.WriteString(formatFloat(v))
		}
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return gz.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
