// Package mongodb is the MongoDB adapter of the document store.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/tourhub/tourhub/internal/observability"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	usersCollection   = "users"
	toursCollection   = "tours"
	reviewsCollection = "reviews"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	prom   *observability.Prom
}

// Connect dials uri and confirms the deployment answers a ping.
func Connect(ctx context.Context, uri, database string, prom *observability.Prom) (*Store, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(serverAPI).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	return &Store{client: client, db: client.Database(database), prom: prom}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Users() *UsersRepo {
	return &UsersRepo{col: s.db.Collection(usersCollection), prom: s.prom}
}

func (s *Store) Tours() *ToursRepo {
	return &ToursRepo{col: s.db.Collection(toursCollection), prom: s.prom}
}

func (s *Store) Reviews() *ReviewsRepo {
	return &ReviewsRepo{col: s.db.Collection(reviewsCollection), prom: s.prom}
}

// EnsureIndexes creates the unique and geo indexes the repos rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		toursCollection: {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "slug", Value: 1}}},
			{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
			{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
		},
		reviewsCollection: {
			{Keys: bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func observe(prom *observability.Prom, op string, fn func() error) error {
	if prom != nil {
		return prom.ObserveDB(op, fn)
	}
	return fn()
}
