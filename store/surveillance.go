package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epimap/epimap-api/schema"
)

// Surveillance - uploaded surveillance record operations
type Surveillance interface {
	ReplaceRecords(ctx context.Context, sessionID string, records []schema.SurveillanceRecord) error
	ListRecords(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.SurveillanceRecord, error)
}

// ReplaceRecords swaps a session's surveillance records wholesale. Derived
// results are recomputed from scratch afterwards, never patched.
func (m *mongoDB) ReplaceRecords(ctx context.Context, sessionID string, records []schema.SurveillanceRecord) error {
	c := m.collection(schema.SurveillanceCollection)
	if _, err := c.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, record := range records {
		record.SessionID = sessionID
		docs[i] = record
	}
	_, err := c.InsertMany(ctx, docs)
	return err
}

func (m *mongoDB) ListRecords(ctx context.Context, sessionID string, sel schema.Selections) ([]schema.SurveillanceRecord, error) {
	filter := bson.M{"session_id": sessionID}
	if sel.AgeGroup != "" && sel.AgeGroup != "all" {
		filter["stratum.age_group"] = sel.AgeGroup
	}
	if sel.Method != "" && sel.Method != "all" {
		filter["stratum.method"] = sel.Method
	}

	cursor, err := m.collection(schema.SurveillanceCollection).Find(ctx, filter,
		options.Find().SetSort(bson.D{
			{Key: "unit_id", Value: 1},
			{Key: "period", Value: 1},
		}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []schema.SurveillanceRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
