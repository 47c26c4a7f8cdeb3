// Package audit records administrative catalog mutations.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const collectionName = "admin_audit"

// Record is one admin action and what came of it.
type Record struct {
	ID         string    `bson:"_id" json:"id"`
	Action     string    `bson:"action" json:"action"`
	ProductIDs []int64   `bson:"product_ids" json:"productIds"`
	DryRun     bool      `bson:"dry_run" json:"dryRun"`
	Outcome    string    `bson:"outcome" json:"outcome"`
	RequestID  string    `bson:"request_id,omitempty" json:"requestId,omitempty"`
	At         time.Time `bson:"at" json:"at"`
}

type Recorder interface {
	Save(ctx context.Context, r Record) error
	Recent(ctx context.Context, limit int64) ([]Record, error)
}

// Nop drops records; used when MONGO_URI is unset.
type Nop struct{}

func (Nop) Save(context.Context, Record) error { return nil }

func (Nop) Recent(context.Context, int64) ([]Record, error) { return []Record{}, nil }

// fill assigns an id and timestamp when the caller left them empty.
func fill(r Record, now time.Time) Record {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.At.IsZero() {
		r.At = now.UTC()
	}
	if r.ProductIDs == nil {
		r.ProductIDs = []int64{}
	}
	return r
}

// Repository stores records in MongoDB.
type Repository struct {
	coll *mongo.Collection
}

func NewRepository(client *mongo.Client, dbName string) *Repository {
	return &Repository{coll: client.Database(dbName).Collection(collectionName)}
}

func (r *Repository) Save(ctx context.Context, rec Record) error {
	if _, err := r.coll.InsertOne(ctx, fill(rec, time.Now())); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *Repository) Recent(ctx context.Context, limit int64) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit records: %w", err)
	}
	out := []Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode audit records: %w", err)
	}
	return out, nil
}

// Connect opens a client and checks it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}
