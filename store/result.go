package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epimap/epimap-api/schema"
)

// Results - positivity result operations
type Results interface {
	ReplaceResults(ctx context.Context, sessionID string, results []schema.PositivityResult) error
	ListResults(ctx context.Context, sessionID string) ([]schema.PositivityResult, error)
}

// Covariates - per-unit covariate vector operations
type Covariates interface {
	ReplaceVectors(ctx context.Context, sessionID string, vectors []schema.CovariateVector) error
	ListVectors(ctx context.Context, sessionID string) ([]schema.CovariateVector, error)
}

// RiskScores - risk score operations
type RiskScores interface {
	ReplaceScores(ctx context.Context, sessionID string, scores []schema.RiskScore) error
	ListScores(ctx context.Context, sessionID string) ([]schema.RiskScore, error)
}

func (m *mongoDB) ReplaceResults(ctx context.Context, sessionID string, results []schema.PositivityResult) error {
	c := m.collection(schema.ResultCollection)
	if _, err := c.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}
	docs := make([]interface{}, len(results))
	for i, result := range results {
		result.SessionID = sessionID
		docs[i] = result
	}
	_, err := c.InsertMany(ctx, docs)
	return err
}

func (m *mongoDB) ListResults(ctx context.Context, sessionID string) ([]schema.PositivityResult, error) {
	cursor, err := m.collection(schema.ResultCollection).Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{
			{Key: "unit_id", Value: 1},
			{Key: "formula", Value: -1},
		}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []schema.PositivityResult
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *mongoDB) ReplaceVectors(ctx context.Context, sessionID string, vectors []schema.CovariateVector) error {
	c := m.collection(schema.CovariateCollection)
	if _, err := c.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	docs := make([]interface{}, len(vectors))
	for i, vector := range vectors {
		vector.SessionID = sessionID
		docs[i] = vector
	}
	_, err := c.InsertMany(ctx, docs)
	return err
}

func (m *mongoDB) ListVectors(ctx context.Context, sessionID string) ([]schema.CovariateVector, error) {
	cursor, err := m.collection(schema.CovariateCollection).Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.M{"unit_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var vectors []schema.CovariateVector
	if err := cursor.All(ctx, &vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (m *mongoDB) ReplaceScores(ctx context.Context, sessionID string, scores []schema.RiskScore) error {
	c := m.collection(schema.RiskScoreCollection)
	if _, err := c.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return err
	}
	if len(scores) == 0 {
		return nil
	}
	docs := make([]interface{}, len(scores))
	for i, s := range scores {
		s.SessionID = sessionID
		docs[i] = s
	}
	_, err := c.InsertMany(ctx, docs)
	return err
}

func (m *mongoDB) ListScores(ctx context.Context, sessionID string) ([]schema.RiskScore, error) {
	cursor, err := m.collection(schema.RiskScoreCollection).Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{
			{Key: "composite_rank", Value: 1},
			{Key: "unit_id", Value: 1},
		}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var scores []schema.RiskScore
	if err := cursor.All(ctx, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}
