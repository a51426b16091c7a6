package lock

import (
	"context"
	"fmt"
	"time"

	"shortlets/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const CollectionName = "Property_locks"

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(CollectionName)}
}

// Acquire inserts the lease document; a duplicate key means it is held. An expired lease is
// removed first since the TTL monitor only sweeps about once a minute.
func (s *MongoStore) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()

	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return false, fmt.Errorf("failed to clear expired lease: %w", err)
	}

	lease := model.PropertyLock{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := s.collection.InsertOne(ctx, lease); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert lease: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Release(ctx context.Context, key, owner string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete lease: %w", err)
	}
	return nil
}
