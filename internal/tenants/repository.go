package tenants

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jurnal-press/jurnal/internal/platform/db"
	"github.com/jurnal-press/jurnal/internal/shared"
)

const (
	listTenantsSQL  = `SELECT id, slug, name, created_at FROM tenants ORDER BY slug`
	createTenantSQL = `INSERT INTO tenants (slug, name) VALUES ($1, $2) RETURNING id, slug, name, created_at`
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// List returns every tenant ordered by slug.
func (r *Repository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.q.Query(ctx, listTenantsSQL)
	if err != nil {
		return nil, fmt.Errorf("tenants: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tenant, error) {
		return scanTenant(row)
	})
	if err != nil {
		return nil, fmt.Errorf("tenants: list: %w", err)
	}
	return out, nil
}

// Create inserts a tenant. A taken slug yields shared.ErrConflict.
func (r *Repository) Create(ctx context.Context, slug, name string) (Tenant, error) {
	t, err := scanTenant(r.q.QueryRow(ctx, createTenantSQL, slug, name))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Tenant{}, shared.ErrConflict
		}
		return Tenant{}, fmt.Errorf("tenants: create: %w", err)
	}
	return t, nil
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.CreatedAt)
	return t, err
}
