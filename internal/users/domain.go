package users

import (
	"time"

	"github.com/google/uuid"
)

// PathList is the admin page listing users.
const PathList = "/admin/users"

// User is a principal with its legacy tenant memberships.
type User struct {
	ID          uuid.UUID    `json:"id"`
	Email       string       `json:"email"`
	Disabled    bool         `json:"disabled"`
	CreatedAt   time.Time    `json:"created_at"`
	Memberships []Membership `json:"memberships"`
}

// Membership is a tenant_users row.
type Membership struct {
	UserID     uuid.UUID `json:"user_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	TenantSlug string    `json:"tenant_slug"`
	Role       string    `json:"role"`
	Active     bool      `json:"active"`
}

// MembershipInput is the payload of the upsert-membership action.
type MembershipInput struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	TenantID string `json:"tenant_id" validate:"required,uuid"`
	Role     string `json:"role" validate:"required,max=64"`
}

// MembershipRef identifies a membership to deactivate.
type MembershipRef struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	TenantID string `json:"tenant_id" validate:"required,uuid"`
}
