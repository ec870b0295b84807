package roles

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jurnal-press/jurnal/internal/shared"
)

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListDefinitions(ctx context.Context) ([]Definition, error)
	FindDefinition(ctx context.Context, key string) (Definition, error)
	CreateDefinition(ctx context.Context, key, name string) (Definition, error)
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error)
	CreateAssignment(ctx context.Context, a Assignment, roleID uuid.UUID) (Assignment, error)
	DeactivateAssignment(ctx context.Context, id uuid.UUID) (Assignment, error)
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
	lang language.Tag
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, lang: language.Indonesian}
}

// ListDefinitions returns all role definitions.
func (s *Service) ListDefinitions(ctx context.Context) ([]Definition, error) {
	return s.repo.ListDefinitions(ctx)
}

// DisplayName derives a human readable name from a role key: "section_editor" becomes "Section Editor".
// A Caser carries state, so each call builds its own.
func (s *Service) DisplayName(key string) string {
	return cases.Title(s.lang).String(strings.ReplaceAll(key, "_", " "))
}

// Ensure returns the definition for in.Key, creating it when missing. The
// boolean reports whether a row was inserted.
func (s *Service) Ensure(ctx context.Context, in EnsureInput) (Definition, bool, error) {
	key, err := normalizeKey(in.Key, "key")
	if err != nil {
		return Definition{}, false, err
	}
	def, err := s.repo.FindDefinition(ctx, key)
	if err == nil {
		return def, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Definition{}, false, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = s.DisplayName(key)
	}
	def, err = s.repo.CreateDefinition(ctx, key, name)
	if errors.Is(err, shared.ErrConflict) {
		// Lost a race with a concurrent ensure.
		def, err = s.repo.FindDefinition(ctx, key)
		return def, false, err
	}
	if err != nil {
		return Definition{}, false, err
	}
	return def, true, nil
}

// ListAssignments returns the role assignments of a user.
func (s *Service) ListAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error) {
	return s.repo.ListAssignments(ctx, userID)
}

// Assign grants an existing role to a user.
func (s *Service) Assign(ctx context.Context, in AssignInput) (Assignment, error) {
	key, err := normalizeKey(in.RoleKey, "role_key")
	if err != nil {
		return Assignment{}, err
	}
	a := Assignment{RoleKey: key}
	fields := shared.FieldErrors{}
	a.UserID, err = uuid.Parse(in.UserID)
	if err != nil {
		fields["user_id"] = "harus berupa UUID"
	}
	if a.TenantID, err = optionalID(in.TenantID); err != nil {
		fields["tenant_id"] = "harus berupa UUID"
	}
	if a.JournalID, err = optionalID(in.JournalID); err != nil {
		fields["journal_id"] = "harus berupa UUID"
	}
	if len(fields) > 0 {
		return Assignment{}, fields
	}

	def, err := s.repo.FindDefinition(ctx, key)
	if errors.Is(err, shared.ErrNotFound) {
		return Assignment{}, shared.FieldErrors{"role_key": "peran belum didefinisikan"}
	}
	if err != nil {
		return Assignment{}, err
	}
	return s.repo.CreateAssignment(ctx, a, def.ID)
}

// Deactivate turns off an active assignment.
func (s *Service) Deactivate(ctx context.Context, in DeactivateInput) (Assignment, error) {
	id, err := uuid.Parse(in.AssignmentID)
	if err != nil {
		return Assignment{}, shared.FieldErrors{"assignment_id": "harus berupa UUID"}
	}
	return s.repo.DeactivateAssignment(ctx, id)
}

func normalizeKey(raw, field string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, " ", "_")
	if !keyPattern.MatchString(key) {
		return "", shared.FieldErrors{field: "hanya huruf kecil, angka dan garis bawah"}
	}
	return key, nil
}

func optionalID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
