package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jurnal-press/jurnal/internal/platform/db"
	"github.com/jurnal-press/jurnal/internal/shared"
)

const (
	listUsersSQL = `SELECT id, email,
	(deleted_at IS NOT NULL OR (banned_until IS NOT NULL AND banned_until > NOW())) AS disabled,
	created_at
FROM users ORDER BY lower(email)`

	listMembershipsSQL = `SELECT tu.user_id, tu.tenant_id, t.slug, tu.role, tu.is_active
FROM tenant_users tu
JOIN tenants t ON t.id = tu.tenant_id
ORDER BY t.slug`

	upsertMembershipSQL = `WITH up AS (
	INSERT INTO tenant_users (user_id, tenant_id, role, is_active)
	VALUES ($1, $2, $3, TRUE)
	ON CONFLICT (user_id, tenant_id) DO UPDATE SET role = EXCLUDED.role, is_active = TRUE, updated_at = NOW()
	RETURNING user_id, tenant_id, role, is_active
)
SELECT up.user_id, up.tenant_id, t.slug, up.role, up.is_active FROM up JOIN tenants t ON t.id = up.tenant_id`

	deactivateMembershipSQL = `WITH up AS (
	UPDATE tenant_users SET is_active = FALSE, updated_at = NOW()
	WHERE user_id = $1 AND tenant_id = $2 AND is_active
	RETURNING user_id, tenant_id, role, is_active
)
SELECT up.user_id, up.tenant_id, t.slug, up.role, up.is_active FROM up JOIN tenants t ON t.id = up.tenant_id`
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// ListUsers returns all users without memberships.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.q.Query(ctx, listUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (User, error) {
		var u User
		err := row.Scan(&u.ID, &u.Email, &u.Disabled, &u.CreatedAt)
		return u, err
	})
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	return out, nil
}

// ListMemberships returns every tenant_users row.
func (r *Repository) ListMemberships(ctx context.Context) ([]Membership, error) {
	rows, err := r.q.Query(ctx, listMembershipsSQL)
	if err != nil {
		return nil, fmt.Errorf("users: list memberships: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Membership, error) {
		return scanMembership(row)
	})
	if err != nil {
		return nil, fmt.Errorf("users: list memberships: %w", err)
	}
	return out, nil
}

// UpsertMembership creates or reactivates a membership with the given role.
// Unknown users or tenants yield shared.ErrNotFound.
func (r *Repository) UpsertMembership(ctx context.Context, userID, tenantID uuid.UUID, role string) (Membership, error) {
	m, err := scanMembership(r.q.QueryRow(ctx, upsertMembershipSQL, userID, tenantID, role))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Membership{}, shared.ErrNotFound
		}
		return Membership{}, fmt.Errorf("users: upsert membership: %w", err)
	}
	return m, nil
}

// DeactivateMembership turns off an active membership.
func (r *Repository) DeactivateMembership(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error) {
	m, err := scanMembership(r.q.QueryRow(ctx, deactivateMembershipSQL, userID, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Membership{}, shared.ErrNotFound
	}
	if err != nil {
		return Membership{}, fmt.Errorf("users: deactivate membership: %w", err)
	}
	return m, nil
}

func scanMembership(row pgx.Row) (Membership, error) {
	var m Membership
	err := row.Scan(&m.UserID, &m.TenantID, &m.TenantSlug, &m.Role, &m.Active)
	return m, err
}
