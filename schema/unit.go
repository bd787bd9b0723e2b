package schema

const (
	UnitCollection = "units"
)

// Geometry is a GeoJSON polygon. The first ring is the outer boundary,
// any following rings are holes. Coordinates are [longitude, latitude].
type Geometry struct {
	Type        string        `json:"type" bson:"type"`
	Coordinates [][][]float64 `json:"coordinates" bson:"coordinates"`
}

// SpatialUnit is one reporting area (e.g. an administrative ward).
// Units are immutable reference data loaded once per analysis session.
type SpatialUnit struct {
	ID         string   `json:"id" bson:"id"`
	Name       string   `json:"name" bson:"name"`
	State      string   `json:"state" bson:"state"`
	Zone       string   `json:"zone" bson:"zone"`
	Geometry   Geometry `json:"geometry" bson:"geometry"`
	Population *float64 `json:"population,omitempty" bson:"population,omitempty"`
}

// BoundingBox returns the extent of the unit's outer ring as
// minLon, minLat, maxLon, maxLat.
func (u SpatialUnit) BoundingBox() (float64, float64, float64, float64) {
	minLon, minLat := 180.0, 90.0
	maxLon, maxLat := -180.0, -90.0
	if len(u.Geometry.Coordinates) == 0 {
		return 0, 0, 0, 0
	}
	for _, pt := range u.Geometry.Coordinates[0] {
		if len(pt) < 2 {
			continue
		}
		if pt[0] < minLon {
			minLon = pt[0]
		}
		if pt[0] > maxLon {
			maxLon = pt[0]
		}
		if pt[1] < minLat {
			minLat = pt[1]
		}
		if pt[1] > maxLat {
			maxLat = pt[1]
		}
	}
	return minLon, minLat, maxLon, maxLat
}

// Contains reports whether the point lies inside the unit polygon,
// holes excluded, using even-odd ray casting.
func (u SpatialUnit) Contains(lon, lat float64) bool {
	inside := false
	for _, ring := range u.Geometry.Coordinates {
		if ringContains(ring, lon, lat) {
			inside = !inside
		}
	}
	return inside
}

func ringContains(ring [][]float64, lon, lat float64) bool {
	contains := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			contains = !contains
		}
	}
	return contains
}
