package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jurnal-press/jurnal/internal/platform/db"
	"github.com/jurnal-press/jurnal/internal/shared"
)

// UserFinder loads user rows by ID.
type UserFinder interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*UserRecord, error)
}

// Repository defines persistence operations for the identity store.
type Repository interface {
	UserFinder
	FindUserByEmail(ctx context.Context, email string) (*UserRecord, error)
	CreateSession(ctx context.Context, rec SessionRecord, ip, ua string) error
	FindSessionByRefreshHash(ctx context.Context, hash string) (*SessionRecord, error)
	FindSessionByPreviousHash(ctx context.Context, hash string) (*SessionRecord, error)
	RotateSession(ctx context.Context, id uuid.UUID, oldHash, newHash string, expiresAt, rotatedAt time.Time) error
	RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	q db.Querier
}

// NewRepository constructs a PostgreSQL repository over q. Pass the service
// pool to obtain the elevated directory used for admin lookups.
func NewRepository(q db.Querier) *PGRepository {
	return &PGRepository{q: q}
}

const userColumns = `id, email, password_hash, email_confirmed_at, banned_until, deleted_at, created_at, updated_at`

const sessionColumns = `id, user_id, refresh_token_hash, COALESCE(previous_token_hash, ''), rotated_at, expires_at, revoked_at, created_at`

// FindUserByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// FindUserByID fetches a user by primary key.
func (r *PGRepository) FindUserByID(ctx context.Context, id uuid.UUID) (*UserRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateSession persists a new auth session.
func (r *PGRepository) CreateSession(ctx context.Context, rec SessionRecord, ip, ua string) error {
	_, err := r.q.Exec(ctx, `INSERT INTO auth_sessions (id, user_id, refresh_token_hash, expires_at, ip, user_agent, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7)`,
		rec.ID, rec.UserID, rec.RefreshHash, rec.ExpiresAt, ip, ua, rec.CreatedAt)
	return err
}

// FindSessionByRefreshHash looks up the session whose current refresh token hashes to hash.
func (r *PGRepository) FindSessionByRefreshHash(ctx context.Context, hash string) (*SessionRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE refresh_token_hash = $1`, hash)
	return scanSession(row)
}

// FindSessionByPreviousHash looks up the session whose last rotated-out token hashes to hash.
func (r *PGRepository) FindSessionByPreviousHash(ctx context.Context, hash string) (*SessionRecord, error) {
	row := r.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM auth_sessions WHERE previous_token_hash = $1`, hash)
	return scanSession(row)
}

// RotateSession swaps the refresh token hash if it still equals oldHash.
// It returns shared.ErrNotFound when a concurrent rotation won.
func (r *PGRepository) RotateSession(ctx context.Context, id uuid.UUID, oldHash, newHash string, expiresAt, rotatedAt time.Time) error {
	tag, err := r.q.Exec(ctx, `UPDATE auth_sessions
SET refresh_token_hash = $3, previous_token_hash = $2, rotated_at = $5, expires_at = $4
WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL`,
		id, oldHash, newHash, expiresAt, rotatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RevokeSession marks the session revoked.
func (r *PGRepository) RevokeSession(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.q.Exec(ctx, `UPDATE auth_sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	return err
}

func scanUser(row pgx.Row) (*UserRecord, error) {
	var u UserRecord
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.EmailConfirmedAt, &u.BannedUntil, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanSession(row pgx.Row) (*SessionRecord, error) {
	var s SessionRecord
	if err := row.Scan(&s.ID, &s.UserID, &s.RefreshHash, &s.PreviousHash, &s.RotatedAt, &s.ExpiresAt, &s.RevokedAt, &s.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

var _ Repository = (*PGRepository)(nil)
