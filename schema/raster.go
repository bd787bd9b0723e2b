package schema

import "time"

// Extent is a bounding box in the raster's coordinate reference system.
type Extent struct {
	MinX float64 `json:"min_x" bson:"min_x"`
	MinY float64 `json:"min_y" bson:"min_y"`
	MaxX float64 `json:"max_x" bson:"max_x"`
	MaxY float64 `json:"max_y" bson:"max_y"`
}

// CompositeRaster describes one merged covariate grid. The pixel data
// itself lives on disk at Path; composites are immutable after creation
// and cached keyed by (variable, period, tile-set hash).
type CompositeRaster struct {
	Variable    string    `json:"variable" bson:"variable"`
	Period      string    `json:"period" bson:"period"`
	TileSetHash string    `json:"tile_set_hash" bson:"tile_set_hash"`
	CRS         string    `json:"crs" bson:"crs"`
	Cols        int       `json:"cols" bson:"cols"`
	Rows        int       `json:"rows" bson:"rows"`
	CellSize    float64   `json:"cell_size" bson:"cell_size"`
	Extent      Extent    `json:"extent" bson:"extent"`
	Path        string    `json:"path" bson:"path"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

const (
	CovariateCollection = "covariate_vectors"
)

// CovariateVector holds every covariate extracted for one unit in one
// session. Variables that had no raster coverage are listed in Missing
// rather than given a value; zero is a legitimate extracted value.
type CovariateVector struct {
	SessionID string             `json:"-" bson:"session_id"`
	UnitID    string             `json:"unit_id" bson:"unit_id"`
	Values    map[string]float64 `json:"values" bson:"values"`
	Missing   []string           `json:"missing,omitempty" bson:"missing,omitempty"`
}

func (v CovariateVector) Complete(variables []string) bool {
	for _, name := range variables {
		if _, ok := v.Values[name]; !ok {
			return false
		}
	}
	return true
}
