package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epimap/epimap-api/schema"
)

var (
	ErrUnitNotFound = fmt.Errorf("no spatial unit found")
)

// Units - spatial reference data operations
type Units interface {
	UpsertUnits(ctx context.Context, units []schema.SpatialUnit) error
	ListUnits(ctx context.Context) ([]schema.SpatialUnit, error)
	FindUnitByPoint(ctx context.Context, lon, lat float64) (*schema.SpatialUnit, error)
}

func (m *mongoDB) UpsertUnits(ctx context.Context, units []schema.SpatialUnit) error {
	c := m.collection(schema.UnitCollection)
	for _, unit := range units {
		_, err := c.ReplaceOne(ctx,
			bson.M{"id": unit.ID},
			unit,
			options.Replace().SetUpsert(true))
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *mongoDB) ListUnits(ctx context.Context) ([]schema.SpatialUnit, error) {
	cursor, err := m.collection(schema.UnitCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var units []schema.SpatialUnit
	if err := cursor.All(ctx, &units); err != nil {
		return nil, err
	}
	return units, nil
}

// FindUnitByPoint resolves the unit whose boundary contains the point.
func (m *mongoDB) FindUnitByPoint(ctx context.Context, lon, lat float64) (*schema.SpatialUnit, error) {
	var unit schema.SpatialUnit
	if err := m.collection(schema.UnitCollection).FindOne(ctx, bson.M{
		"geometry": bson.M{
			"$geoIntersects": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lon, lat},
				},
			},
		},
	}).Decode(&unit); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	return &unit, nil
}
