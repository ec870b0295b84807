package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jurnal-press/jurnal/internal/platform/db"
)

const (
	// Duplicate definitions for one key are tolerated; the oldest wins.
	roleDefinitionSQL = `SELECT id FROM roles WHERE role_key = $1 ORDER BY created_at ASC, id ASC LIMIT 1`

	roleAssignmentSQL = `SELECT EXISTS (
	SELECT 1 FROM user_role_assignments
	WHERE user_id = $1 AND role_id = $2 AND is_active
)`

	legacyMembershipSQL = `SELECT EXISTS (
	SELECT 1 FROM tenant_users
	WHERE user_id = $1 AND role = $2 AND is_active
)`
)

// Source names reported in decisions and logs.
const (
	SourceCurrentSchema = "user_role_assignments"
	SourceLegacySchema  = "tenant_users"
)

// CurrentSchemaSource checks user_role_assignments through the roles table.
// Assignments of any tenant or journal scope count.
type CurrentSchemaSource struct {
	q db.Querier
}

// NewCurrentSchemaSource constructs a CurrentSchemaSource. q must bypass row-level security.
func NewCurrentSchemaSource(q db.Querier) *CurrentSchemaSource {
	return &CurrentSchemaSource{q: q}
}

// Name implements GrantSource.
func (s *CurrentSchemaSource) Name() string { return SourceCurrentSchema }

// HasRole implements GrantSource. A missing role definition is a denial, not an error.
func (s *CurrentSchemaSource) HasRole(ctx context.Context, userID uuid.UUID, roleKey string) (bool, error) {
	var roleID uuid.UUID
	if err := s.q.QueryRow(ctx, roleDefinitionSQL, roleKey).Scan(&roleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("rbac: role definition %q: %w", roleKey, err)
	}
	var exists bool
	if err := s.q.QueryRow(ctx, roleAssignmentSQL, userID, roleID).Scan(&exists); err != nil {
		return false, fmt.Errorf("rbac: role assignment: %w", err)
	}
	return exists, nil
}

// LegacySchemaSource checks the tenant_users role column.
type LegacySchemaSource struct {
	q db.Querier
}

// NewLegacySchemaSource constructs a LegacySchemaSource. q must bypass row-level security.
func NewLegacySchemaSource(q db.Querier) *LegacySchemaSource {
	return &LegacySchemaSource{q: q}
}

// Name implements GrantSource.
func (s *LegacySchemaSource) Name() string { return SourceLegacySchema }

// HasRole implements GrantSource.
func (s *LegacySchemaSource) HasRole(ctx context.Context, userID uuid.UUID, roleKey string) (bool, error) {
	var exists bool
	if err := s.q.QueryRow(ctx, legacyMembershipSQL, userID, roleKey).Scan(&exists); err != nil {
		return false, fmt.Errorf("rbac: tenant membership: %w", err)
	}
	return exists, nil
}

var (
	_ GrantSource = (*CurrentSchemaSource)(nil)
	_ GrantSource = (*LegacySchemaSource)(nil)
)
