package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "shortlets/internal/bookings/errors"
	"shortlets/pkg/config"
	mongotx "shortlets/pkg/db/mongo"
	"shortlets/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ApprovalsCollection = "Approvals"
)

type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
	FindByID(ctx context.Context, id string) (*model.Approval, error)
	// FindByBookingIDs returns approvals for bookingIDs, restricted to status unless it is empty.
	FindByBookingIDs(ctx context.Context, bookingIDs []string, status string) ([]*model.Approval, error)
	// UpdateStatus moves an approval from one status to another, failing with ErrStatusChanged
	// if it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to string) error
	DeleteByBookingIDs(ctx context.Context, bookingIDs []string) (int64, error)
	FindPendingByProperty(ctx context.Context, propertyID string, limit int, offset int64) ([]*model.Approval, error)
	CountPendingByProperty(ctx context.Context, propertyID string) (int64, error)
}

type mongoApprovalRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoApprovalRepository(cfg *config.Config) ApprovalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoApprovalRepository{
		cfg:        cfg,
		collection: db.Collection(ApprovalsCollection),
	}
}

func (r *mongoApprovalRepository) Create(ctx context.Context, approval *model.Approval) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	approval.CreatedAt = now()
	approval.UpdatedAt = approval.CreatedAt
	result, err := r.collection.InsertOne(ctx, approval)
	if err != nil {
		return fmt.Errorf("failed to create approval: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		approval.ID = oid.Hex()
	}
	return nil
}

func (r *mongoApprovalRepository) FindByID(ctx context.Context, id string) (*model.Approval, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var approval model.Approval
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&approval)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrApprovalNotFound
		}
		return nil, fmt.Errorf("failed to find approval: %w", err)
	}
	return &approval, nil
}

func (r *mongoApprovalRepository) FindByBookingIDs(ctx context.Context, bookingIDs []string, status string) ([]*model.Approval, error) {
	if len(bookingIDs) == 0 {
		return []*model.Approval{}, nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"booking_id": bson.M{"$in": bookingIDs}}
	if status != "" {
		filter["status"] = status
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find approvals: %w", err)
	}
	defer cursor.Close(ctx)

	var approvals []*model.Approval
	if err = cursor.All(ctx, &approvals); err != nil {
		return nil, fmt.Errorf("failed to decode approvals: %w", err)
	}
	return approvals, nil
}

func (r *mongoApprovalRepository) UpdateStatus(ctx context.Context, id string, from, to string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update approval: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrStatusChanged
	}
	return nil
}

func (r *mongoApprovalRepository) DeleteByBookingIDs(ctx context.Context, bookingIDs []string) (int64, error) {
	if len(bookingIDs) == 0 {
		return 0, nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"booking_id": bson.M{"$in": bookingIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete approvals: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoApprovalRepository) FindPendingByProperty(ctx context.Context, propertyID string, limit int, offset int64) ([]*model.Approval, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{"property_id": propertyID, "status": model.ApprovalPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending approvals: %w", err)
	}
	defer cursor.Close(ctx)

	var approvals []*model.Approval
	if err = cursor.All(ctx, &approvals); err != nil {
		return nil, fmt.Errorf("failed to decode approvals: %w", err)
	}
	return approvals, nil
}

func (r *mongoApprovalRepository) CountPendingByProperty(ctx context.Context, propertyID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"property_id": propertyID, "status": model.ApprovalPending})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending approvals: %w", err)
	}
	return count, nil
}
