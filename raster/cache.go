package raster

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/epimap/epimap-api/schema"
)

// Composite pairs a cached grid with its descriptor.
type Composite struct {
	Meta schema.CompositeRaster
	Grid *Grid
}

// Cache holds composite rasters shared read-only across sessions. A
// composite is built at most once per (variable, period, tile-set hash);
// concurrent requests for an uncached key coalesce into a single build and
// all callers receive the same result. Failed or cancelled builds publish
// nothing.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Composite
	group   singleflight.Group
}

func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]*Composite),
	}
}

// TileSetHash fingerprints the tile files of one group by sorted name and
// size, so a re-export with different content produces a new cache key.
func TileSetHash(dir string, files []string) (string, error) {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	h := sha256.New()
	for _, name := range sorted {
		info, err := os.Stat(dir + string(os.PathSeparator) + name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "%s:%d\n", name, info.Size())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func cacheKey(variable, period, tileSetHash string) string {
	return strings.Join([]string{variable, period, tileSetHash}, "|")
}

// Lookup returns a cached composite without building.
func (c *Cache) Lookup(variable, period, tileSetHash string) (*Composite, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	composite, ok := c.entries[cacheKey(variable, period, tileSetHash)]
	return composite, ok
}

// GetOrBuild returns the cached composite for the key, building it with
// build when absent. build runs at most once per key regardless of how
// many goroutines arrive; waiters share the first caller's result.
func (c *Cache) GetOrBuild(ctx context.Context, variable, period, tileSetHash string, build func(context.Context) (*Grid, string, error)) (*Composite, error) {
	key := cacheKey(variable, period, tileSetHash)

	if composite, ok := c.Lookup(variable, period, tileSetHash); ok {
		return composite, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		// re-check under the flight: a prior flight may have landed
		if composite, ok := c.Lookup(variable, period, tileSetHash); ok {
			return composite, nil
		}

		grid, path, err := build(ctx)
		if err != nil {
			return nil, err
		}
		ext := grid.Extent()
		composite := &Composite{
			Meta: schema.CompositeRaster{
				Variable:    variable,
				Period:      period,
				TileSetHash: tileSetHash,
				CRS:         grid.CRS,
				Cols:        grid.Cols,
				Rows:        grid.Rows,
				CellSize:    grid.CellSize,
				Extent:      ext,
				Path:        path,
				CreatedAt:   time.Now().UTC(),
			},
			Grid: grid,
		}

		c.mu.Lock()
		c.entries[key] = composite
		c.mu.Unlock()

		log.WithFields(log.Fields{
			"prefix":   rasterLogPrefix,
			"variable": variable,
			"period":   period,
		}).Info("composite raster cached")
		return composite, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.WithFields(log.Fields{
			"prefix":   rasterLogPrefix,
			"variable": variable,
			"period":   period,
		}).Debug("composite build coalesced")
	}
	return v.(*Composite), nil
}
