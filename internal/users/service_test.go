package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurnal-press/jurnal/internal/shared"
)

type memRepo struct {
	users       []User
	memberships []Membership
	slugs       map[uuid.UUID]string
}

func newMemRepo() *memRepo {
	return &memRepo{slugs: map[uuid.UUID]string{}}
}

func (m *memRepo) addUser(email string) User {
	u := User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
	m.users = append(m.users, u)
	return u
}

func (m *memRepo) addTenant(slug string) uuid.UUID {
	id := uuid.New()
	m.slugs[id] = slug
	return id
}

func (m *memRepo) ListUsers(context.Context) ([]User, error) {
	return append([]User(nil), m.users...), nil
}

func (m *memRepo) ListMemberships(context.Context) ([]Membership, error) {
	return append([]Membership(nil), m.memberships...), nil
}

func (m *memRepo) UpsertMembership(_ context.Context, userID, tenantID uuid.UUID, role string) (Membership, error) {
	slug, ok := m.slugs[tenantID]
	if !ok {
		return Membership{}, shared.ErrNotFound
	}
	for i, existing := range m.memberships {
		if existing.UserID == userID && existing.TenantID == tenantID {
			m.memberships[i].Role = role
			m.memberships[i].Active = true
			return m.memberships[i], nil
		}
	}
	mb := Membership{UserID: userID, TenantID: tenantID, TenantSlug: slug, Role: role, Active: true}
	m.memberships = append(m.memberships, mb)
	return mb, nil
}

func (m *memRepo) DeactivateMembership(_ context.Context, userID, tenantID uuid.UUID) (Membership, error) {
	for i, existing := range m.memberships {
		if existing.UserID == userID && existing.TenantID == tenantID && existing.Active {
			m.memberships[i].Active = false
			return m.memberships[i], nil
		}
	}
	return Membership{}, shared.ErrNotFound
}

func TestListUsersAttachesMemberships(t *testing.T) {
	repo := newMemRepo()
	alice := repo.addUser("alice@jurnal.test")
	bob := repo.addUser("bob@jurnal.test")
	tenant := repo.addTenant("ugm")
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.UpsertMembership(ctx, MembershipInput{UserID: alice.ID.String(), TenantID: tenant.String(), Role: "Editor"})
	require.NoError(t, err)

	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Len(t, list[0].Memberships, 1)
	assert.Equal(t, "editor", list[0].Memberships[0].Role)
	assert.Equal(t, "ugm", list[0].Memberships[0].TenantSlug)
	assert.Equal(t, bob.ID, list[1].ID)
	assert.Empty(t, list[1].Memberships)
}

func TestUpsertMembershipReactivates(t *testing.T) {
	repo := newMemRepo()
	u := repo.addUser("c@jurnal.test")
	tenant := repo.addTenant("ui")
	svc := NewService(repo)
	ctx := context.Background()
	ref := MembershipRef{UserID: u.ID.String(), TenantID: tenant.String()}

	_, err := svc.UpsertMembership(ctx, MembershipInput{UserID: ref.UserID, TenantID: ref.TenantID, Role: shared.RoleReviewer})
	require.NoError(t, err)
	off, err := svc.DeactivateMembership(ctx, ref)
	require.NoError(t, err)
	assert.False(t, off.Active)

	_, err = svc.DeactivateMembership(ctx, ref)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	on, err := svc.UpsertMembership(ctx, MembershipInput{UserID: ref.UserID, TenantID: ref.TenantID, Role: shared.RoleSuperAdmin})
	require.NoError(t, err)
	assert.True(t, on.Active)
	assert.Equal(t, shared.RoleSuperAdmin, on.Role)
	assert.Len(t, repo.memberships, 1)
}

func TestUpsertMembershipValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.UpsertMembership(ctx, MembershipInput{UserID: "x", TenantID: "y", Role: "editor"})
	var fields shared.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Len(t, fields, 2)

	_, err = svc.UpsertMembership(ctx, MembershipInput{UserID: uuid.NewString(), TenantID: uuid.NewString(), Role: "janitor"})
	require.ErrorAs(t, err, &fields)
	assert.Equal(t, "peran tidak dikenal", fields["role"])

	_, err = svc.UpsertMembership(ctx, MembershipInput{UserID: uuid.NewString(), TenantID: uuid.NewString(), Role: "editor"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
