// Package lock serializes workflows that mutate the same property.
//
// A lock is a lease: it carries an owner token and an expiry so a crashed holder
// cannot block a property forever. Only the owner may release it.
package lock

import (
	"context"
	"fmt"
	"time"

	apperrors "shortlets/pkg/errors"
	"shortlets/pkg/logger"

	"github.com/google/uuid"
)

const releaseTimeout = 5 * time.Second

// Locker runs fn while holding the lock for propertyID.
type Locker interface {
	WithPropertyLock(ctx context.Context, propertyID string, fn func(ctx context.Context) error) error
}

// Store is a lease backend.
type Store interface {
	// Acquire returns false without error when another owner holds an unexpired lease.
	Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, owner string) error
}

type Options struct {
	TTL            time.Duration
	AcquireTimeout time.Duration
	RetryInterval  time.Duration
}

type leaseLocker struct {
	store Store
	opts  Options
	log   *logger.Logger
}

func New(store Store, opts Options, log *logger.Logger) Locker {
	return &leaseLocker{store: store, opts: opts, log: log}
}

func Key(propertyID string) string {
	return "property_lock_" + propertyID
}

func (l *leaseLocker) WithPropertyLock(ctx context.Context, propertyID string, fn func(ctx context.Context) error) error {
	key := Key(propertyID)
	owner := uuid.NewString()

	if err := l.acquire(ctx, key, owner); err != nil {
		return err
	}
	defer l.release(ctx, key, owner)

	return fn(ctx)
}

func (l *leaseLocker) acquire(ctx context.Context, key, owner string) error {
	deadline := time.Now().Add(l.opts.AcquireTimeout)
	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.store.Acquire(ctx, key, owner, l.opts.TTL)
		if err != nil {
			return apperrors.Internal("Failed to acquire property lock", err)
		}
		if ok {
			return nil
		}

		if !time.Now().Before(deadline) {
			l.log.Warn("Property lock acquire timed out",
				"lock", key,
				"timeout", l.opts.AcquireTimeout,
			)
			return apperrors.ConcurrencyConflict("Another request is updating this property, please retry")
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release runs on a detached context so a cancelled request still frees its lease.
func (l *leaseLocker) release(ctx context.Context, key, owner string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := l.store.Release(rctx, key, owner); err != nil {
		l.log.Error("Failed to release property lock",
			"lock", key,
			"error", err,
		)
	}
}
