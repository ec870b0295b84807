package shared

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/platform/db"
)

// IdempotencyHeader carries the client-chosen key for admin actions.
const IdempotencyHeader = "Idempotency-Key"

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyGuard claims action keys so a retried submission is applied once.
// Keys are scoped to (actor, action): two admins may pick the same key.
type IdempotencyGuard interface {
	Claim(ctx context.Context, key, action string, actor uuid.UUID) error
	Release(ctx context.Context, key, action string, actor uuid.UUID) error
}

// IdempotencyStore persists processed keys in idempotency_keys.
type IdempotencyStore struct {
	pool db.Querier
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool db.Querier) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Claim inserts the key; a second claim by the same actor for the same action
// returns ErrIdempotencyConflict.
func (s *IdempotencyStore) Claim(ctx context.Context, key, action string, actor uuid.UUID) error {
	if s == nil || s.pool == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" || action == "" {
		return errors.New("idempotency key and action required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, action, actor_id, created_at) VALUES ($1, $2, $3, $4)`, key, action, actor, time.Now().UTC())
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Release removes a key so a failed action can be retried.
func (s *IdempotencyStore) Release(ctx context.Context, key, action string, actor uuid.UUID) error {
	if s == nil || s.pool == nil || key == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE actor_id = $1 AND action = $2 AND key = $3`, actor, action, key)
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
