package tenants

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jurnal-press/jurnal/internal/platform/cache"
	"github.com/jurnal-press/jurnal/internal/shared"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// RepositoryPort defines data access methods for tenants.
type RepositoryPort interface {
	List(ctx context.Context) ([]Tenant, error)
	Create(ctx context.Context, slug, name string) (Tenant, error)
}

// Service handles tenant business logic.
type Service struct {
	repo  RepositoryPort
	pages *cache.PageCache
}

// NewService builds a Service. pages may be nil to disable caching.
func NewService(repo RepositoryPort, pages *cache.PageCache) *Service {
	return &Service{repo: repo, pages: pages}
}

// List returns all tenants through the page cache.
func (s *Service) List(ctx context.Context) ([]Tenant, error) {
	var out []Tenant
	err := s.pages.FetchJSON(ctx, cache.Key(PathList, "data"), &out, func(ctx context.Context) (any, error) {
		return s.repo.List(ctx)
	})
	return out, err
}

// Create normalises and stores a new tenant.
func (s *Service) Create(ctx context.Context, in CreateInput) (Tenant, error) {
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	name := strings.TrimSpace(in.Name)
	fields := shared.FieldErrors{}
	if !slugPattern.MatchString(slug) {
		fields["slug"] = "hanya huruf kecil, angka dan tanda hubung"
	}
	if name == "" {
		fields["name"] = "wajib diisi"
	}
	if len(fields) > 0 {
		return Tenant{}, fields
	}
	t, err := s.repo.Create(ctx, slug, name)
	if errors.Is(err, shared.ErrConflict) {
		return Tenant{}, shared.FieldErrors{"slug": "sudah dipakai"}
	}
	return t, err
}
