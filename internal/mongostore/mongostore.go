// Package mongostore persists the domain in MongoDB. Multi-document units of
// work run inside session transactions, which require a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/fundraiseer/apiserver/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection     = "users"
	campaignsCollection = "campaigns"
	donationsCollection = "donations"
	commentsCollection  = "comments"
	contactsCollection  = "contacts"
	locksCollection     = "locks"
)

// Store groups the collections of one database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// WithinTx runs fn in a session transaction. The driver retries fn on
// transient write conflicts, so fn must only touch the database.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// EnsureIndexes creates the indexes the repositories rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "role", Value: 1}}},
		},
		campaignsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "creatorId", Value: 1}}},
		},
		donationsCollection: {
			{Keys: bson.D{{Key: "campaignId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "campaignId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		contactsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := s.collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// touch bumps a version counter on the matched document. Two transactions
// touching the same document conflict, which serializes them the way a row
// lock would.
func touch(ctx context.Context, col *mongo.Collection, filter bson.M) *mongo.SingleResult {
	return col.FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"lockVersion": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
}

func decodeOne(res *mongo.SingleResult, v any) error {
	if err := res.Decode(v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrConflict
	}
	return err
}

func pageOptions(offset, limit int) *options.FindOptions {
	opts := options.Find()
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}

func countByField(ctx context.Context, col *mongo.Collection, field string) (map[string]int, error) {
	cur, err := col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$" + field, "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	counts := map[string]int{}
	for cur.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int    `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.ID] = row.Count
	}
	return counts, cur.Err()
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	out := make([]T, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
