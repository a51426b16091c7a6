package mongo

import (
	"context"
	"fmt"
	apperrors "shortlets/pkg/errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// TransactionFunc runs inside a transaction. ctx is the session context; repositories must pass
// it through unchanged so their writes join the transaction.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
}

func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, txnOpts)

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// IsSessionContext reports whether ctx already carries a session, in which case callers
// must not wrap it with a new deadline.
func IsSessionContext(ctx context.Context) bool {
	_, ok := ctx.(mongo.SessionContext)
	return ok
}

// WithTimeout bounds ctx unless it belongs to a running transaction.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if IsSessionContext(ctx) {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
