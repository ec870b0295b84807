package roles

import (
	"time"

	"github.com/google/uuid"
)

// PathList is the admin page listing role definitions.
const PathList = "/admin/roles"

// Definition is a row of the roles table.
type Definition struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Assignment grants a role to a user, optionally scoped to a tenant or journal.
type Assignment struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	RoleKey   string     `json:"role_key"`
	TenantID  *uuid.UUID `json:"tenant_id,omitempty"`
	JournalID *uuid.UUID `json:"journal_id,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

// EnsureInput is the payload of the ensure-definition action.
type EnsureInput struct {
	Key  string `json:"key" validate:"required,max=64"`
	Name string `json:"name" validate:"omitempty,max=120"`
}

// AssignInput is the payload of the assign action.
type AssignInput struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	RoleKey   string `json:"role_key" validate:"required,max=64"`
	TenantID  string `json:"tenant_id" validate:"omitempty,uuid"`
	JournalID string `json:"journal_id" validate:"omitempty,uuid"`
}

// DeactivateInput is the payload of the deactivate action.
type DeactivateInput struct {
	AssignmentID string `json:"assignment_id" validate:"required,uuid"`
}
