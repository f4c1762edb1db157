package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/pkg/config"
	"lessonbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *model.BookingTransaction) error
	FindByID(ctx context.Context, id string) (*model.BookingTransaction, error)
	// MarkCommitted moves an active, unexpired transaction to committed.
	MarkCommitted(ctx context.Context, id, commitmentID string) error
	// MarkRolledBack moves an active transaction to rolled_back.
	MarkRolledBack(ctx context.Context, id, reason string) error
	// FindExpiredActive lists abandoned transactions. Empty ownerID or date
	// means any.
	FindExpiredActive(ctx context.Context, ownerID, date string, limit int) ([]*model.BookingTransaction, error)
}

type mongoTransactionRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTransactionRepository(cfg *config.Config) TransactionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTransactionRepository{
		cfg:        cfg,
		collection: db.Collection(TransactionsCollection),
	}
}

func (r *mongoTransactionRepository) Create(ctx context.Context, tx *model.BookingTransaction) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, tx); err != nil {
		return fmt.Errorf("failed to create booking transaction: %w", err)
	}
	return nil
}

func (r *mongoTransactionRepository) FindByID(ctx context.Context, id string) (*model.BookingTransaction, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var tx model.BookingTransaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to find booking transaction: %w", err)
	}
	return &tx, nil
}

func (r *mongoTransactionRepository) MarkCommitted(ctx context.Context, id, commitmentID string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": model.TransactionStatusActive,
		"$expr":  liveExpr(),
	}
	update := bson.M{
		"$set":         bson.M{"status": model.TransactionStatusCommitted, "commitment_id": commitmentID},
		"$currentDate": bson.M{"updated_at": true},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to commit booking transaction: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return r.explainMiss(ctx, id)
}

func (r *mongoTransactionRepository) MarkRolledBack(ctx context.Context, id, reason string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": model.TransactionStatusActive}
	update := bson.M{
		"$set":         bson.M{"status": model.TransactionStatusRolledBack, "failure_reason": reason},
		"$currentDate": bson.M{"updated_at": true},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to roll back booking transaction: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	return r.explainMiss(ctx, id)
}

// explainMiss maps a compare-and-set that matched nothing to a sentinel.
func (r *mongoTransactionRepository) explainMiss(ctx context.Context, id string) error {
	var tx model.BookingTransaction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tx)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return bookingserrors.ErrTransactionNotFound
	case err != nil:
		return fmt.Errorf("failed to inspect booking transaction: %w", err)
	case tx.Status != model.TransactionStatusActive:
		return fmt.Errorf("%w: status %s", bookingserrors.ErrTransactionNotActive, tx.Status)
	default:
		return bookingserrors.ErrTransactionExpired
	}
}

func (r *mongoTransactionRepository) FindExpiredActive(ctx context.Context, ownerID, date string, limit int) ([]*model.BookingTransaction, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"status": model.TransactionStatusActive,
		"$expr":  expiredExpr(),
	}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}
	if date != "" {
		filter["date"] = date
	}

	opts := options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []*model.BookingTransaction
	if err := cursor.All(ctx, &txs); err != nil {
		return nil, fmt.Errorf("failed to decode expired transactions: %w", err)
	}
	return txs, nil
}
