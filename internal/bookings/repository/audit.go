package repository

import (
	"context"
	"fmt"

	"lessonbook/pkg/config"
	"lessonbook/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type AuditRepository interface {
	Insert(ctx context.Context, entry *model.AuditEntry) error
}

type mongoAuditRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAuditRepository(cfg *config.Config) AuditRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAuditRepository{
		cfg:        cfg,
		collection: db.Collection(AuditCollection),
	}
}

func (r *mongoAuditRepository) Insert(ctx context.Context, entry *model.AuditEntry) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}
