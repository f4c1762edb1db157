package mongo

import (
	"context"
	"fmt"

	"lessonbook/internal/bookings/lock"
	"lessonbook/internal/bookings/repository"
	"lessonbook/internal/migrations/mongo/validators"
	"lessonbook/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CollectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

var (
	CommitmentsIndexes = []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "start_time", Value: 1},
				{Key: "end_time", Value: 1},
			},
			Options: options.Index().SetName("owner_date_window"),
		},
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
		{Keys: bson.D{{Key: "requester_id", Value: 1}, {Key: "start_time", Value: 1}}},
	}

	TransactionsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "date", Value: 1}, {Key: "status", Value: 1}}},
	}

	// Mongo drops dead leases on its own; acquisition never relies on it.
	LeasesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("lease_ttl"),
		},
	}

	AuditIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "request.owner_id", Value: 1}, {Key: "recorded_at", Value: -1}}},
		{Keys: bson.D{{Key: "transaction_id", Value: 1}}},
		{Keys: bson.D{{Key: "outcome", Value: 1}, {Key: "recorded_at", Value: -1}}},
	}

	OfferingsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	}
)

// Collections lists every collection lessonbook owns or reads.
func Collections() []CollectionDef {
	return []CollectionDef{
		{Name: repository.CommitmentsCollection, Indexes: CommitmentsIndexes, Validator: validators.CommitmentValidator},
		{Name: repository.TransactionsCollection, Indexes: TransactionsIndexes, Validator: validators.TransactionValidator},
		{Name: lock.LeaseCollectionName, Indexes: LeasesIndexes, Validator: validators.LeaseValidator},
		{Name: repository.AuditCollection, Indexes: AuditIndexes, Validator: validators.AuditValidator},
		{Name: repository.OwnersCollection, Validator: validators.ResourceOwnerValidator},
		{Name: repository.OfferingsCollection, Indexes: OfferingsIndexes, Validator: validators.OfferingValidator},
		{Name: repository.RequestersCollection, Validator: validators.RequesterValidator},
	}
}

func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
