// Package rbac answers whether a principal holds a role, reconciling the
// current role-assignment schema with the legacy tenant membership table.
package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrLookupFailed wraps source failures that left a role check without a grant.
var ErrLookupFailed = errors.New("rbac: role lookup failed")

// GrantSource is one place a role grant may be recorded.
type GrantSource interface {
	Name() string
	HasRole(ctx context.Context, userID uuid.UUID, roleKey string) (bool, error)
}

// Decision describes the outcome of a role check.
type Decision struct {
	Granted bool
	// Source names the GrantSource that granted the role, if any.
	Source string
	// Consulted lists the sources queried, in order.
	Consulted []string
}
