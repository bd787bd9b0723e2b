package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/epimap/epimap-api/schema"
)

// Sessions - conversational session state persistence. Only the workflow
// state machine mutates session state; everything else reads.
type Sessions interface {
	GetSession(ctx context.Context, id string) (*schema.SessionState, error)
	SaveSession(ctx context.Context, state *schema.SessionState) error
	DeleteSession(ctx context.Context, id string) error
}

// GetSession returns nil without error when the session does not exist.
func (m *mongoDB) GetSession(ctx context.Context, id string) (*schema.SessionState, error) {
	var state schema.SessionState
	err := m.collection(schema.SessionCollection).FindOne(ctx, bson.M{"id": id}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *mongoDB) SaveSession(ctx context.Context, state *schema.SessionState) error {
	_, err := m.collection(schema.SessionCollection).ReplaceOne(ctx,
		bson.M{"id": state.ID},
		state,
		options.Replace().SetUpsert(true))
	return err
}

func (m *mongoDB) DeleteSession(ctx context.Context, id string) error {
	_, err := m.collection(schema.SessionCollection).DeleteOne(ctx, bson.M{"id": id})
	return err
}
