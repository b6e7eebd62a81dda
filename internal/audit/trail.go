// Package audit keeps a Mongo-backed trail of order lifecycle actions, most
// importantly stock discrepancies: debits that failed after the order was
// already durable. Those must stay distinguishable from pre-write validation
// failures.
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ActionPlaceOrder       = "place_order"
	ActionMarkDelivered    = "mark_delivered"
	ActionStockDiscrepancy = "stock_discrepancy"
)

type Entry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Service   string             `bson:"service" json:"service"`
	Action    string             `bson:"action" json:"action"`
	EntityID  string             `bson:"entity_id" json:"entity_id"`
	Data      bson.M             `bson:"data" json:"data"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Trail is nil-safe: a nil *Trail records nothing and returns nothing, so
// callers never have to branch on whether auditing is configured.
type Trail struct {
	client  *mongo.Client
	col     *mongo.Collection
	service string
}

func Open(ctx context.Context, uri, database, service string) (*Trail, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Trail{
		client:  client,
		col:     client.Database(database).Collection("audit_log"),
		service: service,
	}, nil
}

func (t *Trail) Close(ctx context.Context) error {
	if t == nil {
		return nil
	}
	return t.client.Disconnect(ctx)
}

func (t *Trail) Record(ctx context.Context, action, entityID string, data bson.M) error {
	if t == nil {
		return nil
	}
	_, err := t.col.InsertOne(ctx, &Entry{
		Service:   t.service,
		Action:    action,
		EntityID:  entityID,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func (t *Trail) Recent(ctx context.Context, entityID string, limit int64) ([]Entry, error) {
	if t == nil {
		return []Entry{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := t.col.Find(ctx, bson.M{"entity_id": entityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []Entry
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
