package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Store is the MongoDB-backed persistence layer
type Store struct {
	client      *mongo.Client
	db          *mongo.Database
	users       *mongo.Collection
	products    *mongo.Collection
	carts       *mongo.Collection
	checkouts   *mongo.Collection
	orders      *mongo.Collection
	subscribers *mongo.Collection
}

// NewStore connects to MongoDB and verifies the connection
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(5)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return newStore(client, client.Database(database)), nil
}

func newStore(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:      client,
		db:          db,
		users:       db.Collection("users"),
		products:    db.Collection("products"),
		carts:       db.Collection("carts"),
		checkouts:   db.Collection("checkouts"),
		orders:      db.Collection("orders"),
		subscribers: db.Collection("subscribers"),
	}
}

// Close disconnects the client
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks the server is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique and lookup indexes the queries rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[*mongo.Collection][]mongo.IndexModel{
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		s.products: {
			{Keys: bson.D{{Key: "sku", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "gender", Value: 1}}},
			{Keys: bson.D{{Key: "sold", Value: -1}}},
		},
		s.carts: {
			{
				Keys: bson.D{{Key: "user", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"user": bson.M{"$exists": true}}),
			},
			{
				Keys: bson.D{{Key: "guestId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"guestId": bson.M{"$exists": true}}),
			},
		},
		s.checkouts: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		s.orders: {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{
				Keys: bson.D{{Key: "checkoutId", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"checkoutId": bson.M{"$exists": true}}),
			},
		},
		s.subscribers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for coll, indexes := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Reset drops every collection; used by the seeder
func (s *Store) Reset(ctx context.Context) error {
	return s.db.Drop(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
