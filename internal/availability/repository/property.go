package repository

import (
	"context"
	"errors"
	"fmt"
	availabilityerrors "shortlets/internal/availability/errors"
	"shortlets/pkg/config"
	mongotx "shortlets/pkg/db/mongo"
	"shortlets/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionName = "Properties"
)

// PropertyRepository reads properties and maintains their occupied and blocked range sets.
// Every other property field belongs to the listing service.
type PropertyRepository interface {
	FindByID(ctx context.Context, id string) (*model.Property, error)
	SetBlockedRanges(ctx context.Context, id string, ranges []model.DateRange) error
	// AddOccupiedRange appends r unless it overlaps a range already occupied, in which case
	// ErrRangeTaken is returned and nothing is written.
	AddOccupiedRange(ctx context.Context, id string, r model.DateRange) error
}

type mongoPropertyRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoPropertyRepository(cfg *config.Config) PropertyRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPropertyRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoPropertyRepository) FindByID(ctx context.Context, id string) (*model.Property, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	var property model.Property
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, availabilityerrors.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("failed to find property: %w", err)
	}

	return &property, nil
}

func (r *mongoPropertyRepository) SetBlockedRanges(ctx context.Context, id string, ranges []model.DateRange) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	if ranges == nil {
		ranges = []model.DateRange{}
	}
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"blocked_ranges": ranges}},
	)
	if err != nil {
		return fmt.Errorf("failed to update blocked ranges: %w", err)
	}
	if result.MatchedCount == 0 {
		return availabilityerrors.ErrPropertyNotFound
	}
	return nil
}

func (r *mongoPropertyRepository) AddOccupiedRange(ctx context.Context, id string, rng model.DateRange) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id": objectID,
		"occupied_ranges": bson.M{"$not": bson.M{"$elemMatch": bson.M{
			"start": bson.M{"$lte": rng.End},
			"end":   bson.M{"$gte": rng.Start},
		}}},
	}
	update := bson.M{
		"$push": bson.M{"occupied_ranges": bson.M{
			"$each": []model.DateRange{rng},
			"$sort": bson.M{"start": 1},
		}},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add occupied range: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to check property existence: %w", err)
	}
	if count == 0 {
		return availabilityerrors.ErrPropertyNotFound
	}
	return availabilityerrors.ErrRangeTaken
}
