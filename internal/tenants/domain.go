package tenants

import (
	"time"

	"github.com/google/uuid"
)

// PathList is the admin page listing tenants; writes revalidate it.
const PathList = "/admin/tenants"

// Tenant is one publisher hosting journals on the platform.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateInput is the payload of the create action.
type CreateInput struct {
	Slug string `json:"slug" validate:"required,min=2,max=63"`
	Name string `json:"name" validate:"required,max=200"`
}
