package geojson

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/epimap/epimap-api/schema"
)

type GeoFeature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   schema.Geometry        `json:"geometry"`
}

type FeatureCollection struct {
	Name     string       `json:"name"`
	Features []GeoFeature `json:"features"`
}

// Property key fallbacks for ward exports from different GIS sources.
var (
	idKeys         = []string{"ward_code", "wardcode", "id", "code"}
	nameKeys       = []string{"ward_name", "wardname", "name", "namelsad"}
	stateKeys      = []string{"state_name", "statename", "state"}
	zoneKeys       = []string{"lga_name", "lganame", "zone", "county"}
	populationKeys = []string{"population", "pop", "total_pop"}
)

// ParseUnits decodes a GeoJSON feature collection of ward boundaries into
// spatial units. Features without a polygon geometry or a resolvable
// identifier are rejected, naming the offending feature.
func ParseUnits(r io.Reader) ([]schema.SpatialUnit, error) {
	var collection FeatureCollection
	if err := json.NewDecoder(r).Decode(&collection); err != nil {
		return nil, err
	}

	units := make([]schema.SpatialUnit, 0, len(collection.Features))
	for i, feature := range collection.Features {
		if feature.Geometry.Type != "Polygon" {
			return nil, fmt.Errorf("feature %d: unsupported geometry type %q", i, feature.Geometry.Type)
		}

		id := stringProperty(feature.Properties, idKeys)
		name := stringProperty(feature.Properties, nameKeys)
		if id == "" {
			id = normalizeID(name)
		}
		if id == "" {
			return nil, fmt.Errorf("feature %d: no ward identifier property", i)
		}

		unit := schema.SpatialUnit{
			ID:       id,
			Name:     name,
			State:    stringProperty(feature.Properties, stateKeys),
			Zone:     stringProperty(feature.Properties, zoneKeys),
			Geometry: feature.Geometry,
		}
		if pop, ok := floatProperty(feature.Properties, populationKeys); ok {
			unit.Population = &pop
		}
		units = append(units, unit)
	}
	return units, nil
}

func stringProperty(properties map[string]interface{}, keys []string) string {
	lowered := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		lowered[strings.ToLower(k)] = v
	}
	for _, key := range keys {
		if v, ok := lowered[key]; ok {
			switch value := v.(type) {
			case string:
				return value
			case float64:
				return strconv.FormatFloat(value, 'f', -1, 64)
			}
		}
	}
	return ""
}

func floatProperty(properties map[string]interface{}, keys []string) (float64, bool) {
	lowered := make(map[string]interface{}, len(properties))
	for k, v := range properties {
		lowered[strings.ToLower(k)] = v
	}
	for _, key := range keys {
		if v, ok := lowered[key]; ok {
			switch value := v.(type) {
			case float64:
				return value, true
			case string:
				if f, err := strconv.ParseFloat(value, 64); err == nil {
					return f, true
				}
			}
		}
	}
	return 0, false
}

func normalizeID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
