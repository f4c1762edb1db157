package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/pkg/config"
	"lessonbook/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CommitmentRepository interface {
	Insert(ctx context.Context, c *model.Commitment) error
	FindByID(ctx context.Context, id string) (*model.Commitment, error)
	// FindOverlapping returns occupying commitments of the owner on date whose
	// interval intersects [start, end). excludeID is skipped when set.
	FindOverlapping(ctx context.Context, ownerID, date string, start, end time.Time, excludeID string) ([]model.ConflictingCommitment, error)
	DeleteByTransaction(ctx context.Context, transactionID string) (int64, error)
}

type mongoCommitmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCommitmentRepository(cfg *config.Config) CommitmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCommitmentRepository{
		cfg:        cfg,
		collection: db.Collection(CommitmentsCollection),
	}
}

func (r *mongoCommitmentRepository) Insert(ctx context.Context, c *model.Commitment) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateCommitment, c.ID)
		}
		return fmt.Errorf("failed to insert commitment: %w", err)
	}
	return nil
}

func (r *mongoCommitmentRepository) FindByID(ctx context.Context, id string) (*model.Commitment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var c model.Commitment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find commitment: %w", err)
	}
	return &c, nil
}

func (r *mongoCommitmentRepository) FindOverlapping(ctx context.Context, ownerID, date string, start, end time.Time, excludeID string) ([]model.ConflictingCommitment, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"owner_id":   ownerID,
		"date":       date,
		"status":     bson.M{"$in": model.OccupyingStatuses},
		"start_time": bson.M{"$lt": end},
		"end_time":   bson.M{"$gt": start},
	}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetProjection(bson.M{"_id": 1, "start_time": 1, "end_time": 1, "status": 1, "transaction_id": 1})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping commitments: %w", err)
	}
	defer cursor.Close(ctx)

	conflicts := []model.ConflictingCommitment{}
	if err := cursor.All(ctx, &conflicts); err != nil {
		return nil, fmt.Errorf("failed to decode overlapping commitments: %w", err)
	}
	return conflicts, nil
}

func (r *mongoCommitmentRepository) DeleteByTransaction(ctx context.Context, transactionID string) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	res, err := r.collection.DeleteMany(ctx, bson.M{"transaction_id": transactionID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete commitments of transaction %s: %w", transactionID, err)
	}
	return res.DeletedCount, nil
}
