package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lessonbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LeaseCollectionName = "Booking_leases"

// MongoStore keeps one document per lease with the key as _id. A live lease
// makes the conditional upsert collide on _id, which is how contention is
// detected.
type MongoStore struct {
	collection *mongo.Collection
	timeout    time.Duration
	now        func() time.Time
}

func NewMongoStore(db *mongo.Database, timeout time.Duration) *MongoStore {
	return &MongoStore{
		collection: db.Collection(LeaseCollectionName),
		timeout:    timeout,
		now:        time.Now,
	}
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *MongoStore) TryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now().UTC()
	filter := bson.M{"_id": key, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": bson.M{
		"owner":      owner,
		"expires_at": now.Add(ttl),
		"created_at": now,
	}}

	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongo acquire lease: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Check(ctx context.Context, key, owner string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"_id": key, "owner": owner, "expires_at": bson.M{"$gt": s.now().UTC()}}

	var lease model.Lease
	err := s.collection.FindOne(ctx, filter).Decode(&lease)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mongo check lease: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Release(ctx context.Context, key, owner string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner}); err != nil {
		return fmt.Errorf("mongo release lease: %w", err)
	}
	return nil
}

func (s *MongoStore) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": s.now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongo purge leases: %w", err)
	}
	return res.DeletedCount, nil
}
