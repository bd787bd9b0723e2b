package store

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/epimap/epimap-api/rate"
	"github.com/epimap/epimap-api/score"
)

const (
	mongoLogPrefix = "mongo"
	defaultTimeout = 5 * time.Second
)

// EpimapStore - interface for all engine persistence operations
type EpimapStore interface {
	Units
	Surveillance
	Results
	Covariates
	RiskScores
	Sessions
	Analysis
	Closer
	Pinger
}

// Closer - close db connection
type Closer interface {
	Close()
}

// Pinger - ping database
type Pinger interface {
	Ping() error
}

type mongoDB struct {
	client   *mongo.Client
	database string
	policy   rate.Policy
	scoring  score.Config
}

// Ping - ping mongo db
func (m *mongoDB) Ping() error {
	return m.client.Ping(context.Background(), nil)
}

// Close - close mongo db connections
func (m *mongoDB) Close() {
	log.WithField("prefix", mongoLogPrefix).Info("closing mongo db connections")
	_ = m.client.Disconnect(context.Background())
}

// NewMongoStore - return mongo-backed engine persistence. The rate policy
// and scoring configuration are injected once at startup; per-run weights
// may still override the scoring defaults.
func NewMongoStore(client *mongo.Client, database string, policy rate.Policy, scoring score.Config) EpimapStore {
	return &mongoDB{
		client:   client,
		database: database,
		policy:   policy,
		scoring:  scoring,
	}
}

func (m *mongoDB) collection(name string) *mongo.Collection {
	return m.client.Database(m.database).Collection(name)
}
