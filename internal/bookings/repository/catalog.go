package repository

import (
	"context"
	"errors"
	"fmt"

	bookingserrors "lessonbook/internal/bookings/errors"
	"lessonbook/pkg/config"
	"lessonbook/pkg/model"
	"lessonbook/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository reads the reference data a booking points at: owners,
// offerings and requesters. Lessonbook never writes these.
type CatalogRepository interface {
	FindOwner(ctx context.Context, id string) (*model.ResourceOwner, error)
	FindOffering(ctx context.Context, id string) (*model.Offering, error)
	FindRequester(ctx context.Context, id string) (*model.Requester, error)
}

type mongoCatalogRepository struct {
	cfg        *config.Config
	owners     *mongo.Collection
	offerings  *mongo.Collection
	requesters *mongo.Collection
}

func NewMongoCatalogRepository(cfg *config.Config) CatalogRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCatalogRepository{
		cfg:        cfg,
		owners:     db.Collection(OwnersCollection),
		offerings:  db.Collection(OfferingsCollection),
		requesters: db.Collection(RequestersCollection),
	}
}

func (r *mongoCatalogRepository) FindOwner(ctx context.Context, id string) (*model.ResourceOwner, error) {
	var owner model.ResourceOwner
	if err := r.findOne(ctx, r.owners, id, &owner, bookingserrors.ErrOwnerNotFound); err != nil {
		return nil, err
	}
	return &owner, nil
}

func (r *mongoCatalogRepository) FindOffering(ctx context.Context, id string) (*model.Offering, error) {
	var offering model.Offering
	if err := r.findOne(ctx, r.offerings, id, &offering, bookingserrors.ErrOfferingNotFound); err != nil {
		return nil, err
	}
	return &offering, nil
}

func (r *mongoCatalogRepository) FindRequester(ctx context.Context, id string) (*model.Requester, error) {
	var requester model.Requester
	if err := r.findOne(ctx, r.requesters, id, &requester, bookingserrors.ErrRequesterNotFound); err != nil {
		return nil, err
	}
	requester = sanitizer.SanitizeRequester(requester)
	return &requester, nil
}

func (r *mongoCatalogRepository) findOne(ctx context.Context, coll *mongo.Collection, id string, out any, notFound error) error {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: %s", notFound, id)
		}
		return fmt.Errorf("failed to load %s %s: %w", coll.Name(), id, err)
	}
	return nil
}
