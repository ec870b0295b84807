package roles

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
	listDefinitionsSQL = `SELECT id, role_key, name, created_at FROM roles ORDER BY role_key, created_at`

	findDefinitionSQL = `SELECT id, role_key, name, created_at FROM roles
WHERE role_key = $1 ORDER BY created_at ASC, id ASC LIMIT 1`

	insertDefinitionSQL = `INSERT INTO roles (role_key, name) VALUES ($1, $2)
RETURNING id, role_key, name, created_at`

	listAssignmentsSQL = `SELECT a.id, a.user_id, r.role_key, a.tenant_id, a.journal_id, a.is_active, a.created_at
FROM user_role_assignments a
JOIN roles r ON r.id = a.role_id
WHERE a.user_id = $1
ORDER BY a.created_at DESC`

	insertAssignmentSQL = `INSERT INTO user_role_assignments (user_id, role_id, tenant_id, journal_id, is_active)
VALUES ($1, $2, $3, $4, TRUE)
RETURNING id, created_at`

	deactivateAssignmentSQL = `UPDATE user_role_assignments a SET is_active = FALSE, updated_at = NOW()
FROM roles r
WHERE a.id = $1 AND r.id = a.role_id AND a.is_active
RETURNING a.id, a.user_id, r.role_key, a.tenant_id, a.journal_id, a.is_active, a.created_at`
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	q db.Querier
}

// NewRepository constructs a repository.
func NewRepository(q db.Querier) *Repository {
	return &Repository{q: q}
}

// ListDefinitions returns all role definitions.
func (r *Repository) ListDefinitions(ctx context.Context) ([]Definition, error) {
	rows, err := r.q.Query(ctx, listDefinitionsSQL)
	if err != nil {
		return nil, fmt.Errorf("roles: list definitions: %w", err)
	}
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Definition, error) {
		return scanDefinition(row)
	})
	if err != nil {
		return nil, fmt.Errorf("roles: list definitions: %w", err)
	}
	return defs, nil
}

// FindDefinition returns the oldest definition for key or shared.ErrNotFound.
func (r *Repository) FindDefinition(ctx context.Context, key string) (Definition, error) {
	def, err := scanDefinition(r.q.QueryRow(ctx, findDefinitionSQL, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Definition{}, shared.ErrNotFound
	}
	if err != nil {
		return Definition{}, fmt.Errorf("roles: find definition: %w", err)
	}
	return def, nil
}

// CreateDefinition inserts a definition.
func (r *Repository) CreateDefinition(ctx context.Context, key, name string) (Definition, error) {
	def, err := scanDefinition(r.q.QueryRow(ctx, insertDefinitionSQL, key, name))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Definition{}, shared.ErrConflict
		}
		return Definition{}, fmt.Errorf("roles: create definition: %w", err)
	}
	return def, nil
}

// ListAssignments returns every assignment of a user, newest first.
func (r *Repository) ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	rows, err := r.q.Query(ctx, listAssignmentsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("roles: list assignments: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Assignment, error) {
		return scanAssignment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("roles: list assignments: %w", err)
	}
	return out, nil
}

// CreateAssignment inserts an active assignment. Unknown users, tenants or
// journals yield shared.ErrNotFound and duplicates shared.ErrConflict.
func (r *Repository) CreateAssignment(ctx context.Context, a Assignment, roleID uuid.UUID) (Assignment, error) {
	err := r.q.QueryRow(ctx, insertAssignmentSQL, a.UserID, roleID, a.TenantID, a.JournalID).Scan(&a.ID, &a.CreatedAt)
	switch {
	case err == nil:
		a.Active = true
		return a, nil
	case db.IsUniqueViolation(err):
		return Assignment{}, shared.ErrConflict
	case db.IsForeignKeyViolation(err):
		return Assignment{}, shared.ErrNotFound
	default:
		return Assignment{}, fmt.Errorf("roles: create assignment: %w", err)
	}
}

// DeactivateAssignment marks an active assignment inactive.
func (r *Repository) DeactivateAssignment(ctx context.Context, id uuid.UUID) (Assignment, error) {
	a, err := scanAssignment(r.q.QueryRow(ctx, deactivateAssignmentSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, shared.ErrNotFound
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("roles: deactivate assignment: %w", err)
	}
	return a, nil
}

func scanDefinition(row pgx.Row) (Definition, error) {
	var d Definition
	err := row.Scan(&d.ID, &d.Key, &d.Name, &d.CreatedAt)
	return d, err
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.UserID, &a.RoleKey, &a.TenantID, &a.JournalID, &a.Active, &a.CreatedAt)
	return a, err
}
