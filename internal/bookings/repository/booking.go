package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "shortlets/internal/bookings/errors"
	"shortlets/pkg/config"
	mongotx "shortlets/pkg/db/mongo"
	"shortlets/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	BookingsCollection = "Bookings"
)

// OverlapFilter narrows FindOverlapping. Zero values match everything.
type OverlapFilter struct {
	ExcludeID     string
	Status        string
	EnablePayment *bool
	IsActive      *bool
}

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindOverlapping(ctx context.Context, propertyID string, rng model.DateRange, filter OverlapFilter) ([]*model.Booking, error)
	FindLinked(ctx context.Context, winnerID string) ([]*model.Booking, error)
	// Deactivate marks every still-active, not-yet-approved booking in ids as superseded by winnerID.
	Deactivate(ctx context.Context, ids []string, winnerID string) (int64, error)
	// OpenCheckout turns a pending, active request into the payable winner.
	OpenCheckout(ctx context.Context, id string, expiresAt time.Time) error
	Confirm(ctx context.Context, id string, reference string) error
	FailPayment(ctx context.Context, id string, reference string) error
	Cancel(ctx context.Context, id string) error
	// Forfeit cancels an unpaid winner whose checkout window has lapsed.
	Forfeit(ctx context.Context, id string) error
	// Reactivate returns the requests superseded by winnerID to contention.
	Reactivate(ctx context.Context, winnerID string) (int64, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(BookingsCollection),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func objectIDs(ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
		}
		out = append(out, oid)
	}
	return out, nil
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = now()
	booking.UpdatedAt = booking.CreatedAt
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	var booking model.Booking
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}

	return &booking, nil
}

func (r *mongoBookingRepository) FindOverlapping(ctx context.Context, propertyID string, rng model.DateRange, f OverlapFilter) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"property_id": propertyID,
		"start_date":  bson.M{"$lte": rng.End},
		"end_date":    bson.M{"$gte": rng.Start},
	}
	if f.ExcludeID != "" {
		oid, err := primitive.ObjectIDFromHex(f.ExcludeID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, f.ExcludeID)
		}
		filter["_id"] = bson.M{"$ne": oid}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.EnablePayment != nil {
		filter["enable_payment"] = *f.EnablePayment
	}
	if f.IsActive != nil {
		filter["is_active"] = *f.IsActive
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) FindLinked(ctx context.Context, winnerID string) ([]*model.Booking, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"linked_booking_id": winnerID})
	if err != nil {
		return nil, fmt.Errorf("failed to find linked bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) Deactivate(ctx context.Context, ids []string, winnerID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oids, err := objectIDs(ids)
	if err != nil {
		return 0, err
	}

	ts := now()
	models := make([]mongo.WriteModel, 0, len(oids))
	for _, oid := range oids {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": oid, "is_active": true, "enable_payment": false}).
			SetUpdate(bson.M{"$set": bson.M{
				"is_active":         false,
				"linked_booking_id": winnerID,
				"updated_at":        ts,
			}}))
	}

	result, err := r.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoBookingRepository) OpenCheckout(ctx context.Context, id string, expiresAt time.Time) error {
	filter := bson.M{
		"status":         model.BookingPending,
		"is_active":      true,
		"enable_payment": false,
	}
	update := bson.M{"$set": bson.M{
		"enable_payment":      true,
		"is_active":           false,
		"checkout_expires_at": expiresAt.UTC(),
	}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *mongoBookingRepository) Confirm(ctx context.Context, id string, reference string) error {
	filter := bson.M{
		"payment.status": model.PaymentPending,
		"enable_payment": true,
		"status":         model.BookingPending,
	}
	update := bson.M{"$set": bson.M{
		"status":                 model.BookingConfirmed,
		"payment.status":         model.PaymentCompleted,
		"payment.transaction_id": reference,
	}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *mongoBookingRepository) FailPayment(ctx context.Context, id string, reference string) error {
	filter := bson.M{"payment.status": model.PaymentPending}
	update := bson.M{"$set": bson.M{
		"status":                 model.BookingCancelled,
		"payment.status":         model.PaymentFailed,
		"payment.transaction_id": reference,
	}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *mongoBookingRepository) Cancel(ctx context.Context, id string) error {
	filter := bson.M{"status": model.BookingPending}
	update := bson.M{"$set": bson.M{"status": model.BookingCancelled}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *mongoBookingRepository) Forfeit(ctx context.Context, id string) error {
	filter := bson.M{
		"status":         model.BookingPending,
		"enable_payment": true,
		"payment.status": model.PaymentPending,
	}
	update := bson.M{"$set": bson.M{
		"status":         model.BookingCancelled,
		"enable_payment": false,
	}}
	return r.conditionalUpdate(ctx, id, filter, update)
}

func (r *mongoBookingRepository) Reactivate(ctx context.Context, winnerID string) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"linked_booking_id": winnerID,
		"status":            model.BookingPending,
		"enable_payment":    false,
	}
	update := bson.M{
		"$set":   bson.M{"is_active": true, "updated_at": now()},
		"$unset": bson.M{"linked_booking_id": ""},
	}

	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to reactivate bookings: %w", err)
	}
	return result.ModifiedCount, nil
}

// conditionalUpdate applies update to id only while filter still holds. A document that exists
// but no longer matches yields ErrStatusChanged.
func (r *mongoBookingRepository) conditionalUpdate(ctx context.Context, id string, filter, update bson.M) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	filter["_id"] = objectID
	set := update["$set"].(bson.M)
	set["updated_at"] = now()

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to check booking existence: %w", err)
	}
	if count == 0 {
		return bookingserrors.ErrNotFound
	}
	return bookingserrors.ErrStatusChanged
}

func (r *mongoBookingRepository) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oids, err := objectIDs(ids)
	if err != nil {
		return 0, err
	}

	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete bookings: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
