package schema

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDBIndexer struct {
	ctx      context.Context
	dbName   string
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDBIndexer(connectionString, dbName string) *MongoDBIndexer {
	ctx := context.Background()
	opts := options.Client().ApplyURI(connectionString)
	client, err := mongo.NewClient(opts)
	if err != nil {
		panic(err)
	}
	if err := client.Connect(ctx); err != nil {
		panic(err)
	}

	return &MongoDBIndexer{
		ctx:      ctx,
		dbName:   dbName,
		Client:   client,
		Database: client.Database(dbName),
	}
}

func (m *MongoDBIndexer) createIndex(collection string, index mongo.IndexModel) error {
	c := m.Database.Collection(collection)
	_, err := c.Indexes().CreateOne(m.ctx, index)
	return err
}

func panicIfError(err error) {
	if err != nil {
		panic(err)
	}
}

func (m *MongoDBIndexer) IndexAll() {
	panicIfError(m.IndexUnitCollection())
	panicIfError(m.IndexSurveillanceCollection())
	panicIfError(m.IndexResultCollection())
	panicIfError(m.IndexRiskScoreCollection())
	panicIfError(m.IndexSessionCollection())
}

func (m *MongoDBIndexer) IndexUnitCollection() error {
	if err := m.createIndex(UnitCollection, mongo.IndexModel{
		Keys: bson.M{
			"id": 1,
		},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	return m.createIndex(UnitCollection, mongo.IndexModel{
		Keys: bson.M{
			"geometry": "2dsphere",
		},
	})
}

func (m *MongoDBIndexer) IndexSurveillanceCollection() error {
	return m.createIndex(SurveillanceCollection, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "unit_id", Value: 1},
			{Key: "stratum.age_group", Value: 1},
			{Key: "stratum.method", Value: 1},
		},
	})
}

func (m *MongoDBIndexer) IndexResultCollection() error {
	return m.createIndex(ResultCollection, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "unit_id", Value: 1},
		},
	})
}

func (m *MongoDBIndexer) IndexRiskScoreCollection() error {
	return m.createIndex(RiskScoreCollection, mongo.IndexModel{
		Keys: bson.D{
			{Key: "session_id", Value: 1},
			{Key: "composite_rank", Value: 1},
		},
	})
}

func (m *MongoDBIndexer) IndexSessionCollection() error {
	return m.createIndex(SessionCollection, mongo.IndexModel{
		Keys: bson.M{
			"id": 1,
		},
		Options: options.Index().SetUnique(true),
	})
}
