package users

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	ListMemberships(ctx context.Context) ([]Membership, error)
	UpsertMembership(ctx context.Context, userID, tenantID uuid.UUID, role string) (Membership, error)
	DeactivateMembership(ctx context.Context, userID, tenantID uuid.UUID) (Membership, error)
}

// Service handles user business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns all users with their memberships attached.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	list, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	memberships, err := s.repo.ListMemberships(ctx)
	if err != nil {
		return nil, err
	}
	byUser := make(map[uuid.UUID][]Membership, len(list))
	for _, m := range memberships {
		byUser[m.UserID] = append(byUser[m.UserID], m)
	}
	for i := range list {
		list[i].Memberships = byUser[list[i].ID]
	}
	return list, nil
}

// UpsertMembership grants a legacy tenant role.
func (s *Service) UpsertMembership(ctx context.Context, in MembershipInput) (Membership, error) {
	userID, tenantID, err := parseRef(MembershipRef{UserID: in.UserID, TenantID: in.TenantID})
	if err != nil {
		return Membership{}, err
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if !shared.IsKnownRole(role) {
		return Membership{}, shared.FieldErrors{"role": "peran tidak dikenal"}
	}
	return s.repo.UpsertMembership(ctx, userID, tenantID, role)
}

// DeactivateMembership revokes a legacy tenant role.
func (s *Service) DeactivateMembership(ctx context.Context, ref MembershipRef) (Membership, error) {
	userID, tenantID, err := parseRef(ref)
	if err != nil {
		return Membership{}, err
	}
	return s.repo.DeactivateMembership(ctx, userID, tenantID)
}

func parseRef(ref MembershipRef) (uuid.UUID, uuid.UUID, error) {
	fields := shared.FieldErrors{}
	userID, err := uuid.Parse(ref.UserID)
	if err != nil {
		fields["user_id"] = "harus berupa UUID"
	}
	tenantID, err := uuid.Parse(ref.TenantID)
	if err != nil {
		fields["tenant_id"] = "harus berupa UUID"
	}
	if len(fields) > 0 {
		return uuid.Nil, uuid.Nil, fields
	}
	return userID, tenantID, nil
}
