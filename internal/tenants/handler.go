package tenants

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jurnal-press/jurnal/internal/admin"
	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
)

// Handler manages tenant admin endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   admin.Pages
	deps    admin.Deps
	page    func(http.Handler) http.Handler
	action  func(http.Handler) http.Handler
}

// NewHandler builds a Handler. page and action are the redirecting and
// structured super-admin guards.
func NewHandler(logger *slog.Logger, service *Service, pages admin.Pages, deps admin.Deps, page, action func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pages: pages, deps: deps, page: page, action: action}
}

// MountRoutes registers tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.page).Get("/", h.listTenants)
	r.Group(func(r chi.Router) {
		r.Use(h.action)
		r.Get("/data", h.listData)
		r.Post("/actions/create", admin.Handle(h.deps, admin.Action[CreateInput]{
			Name:   "tenant.create",
			Entity: "tenant",
			Status: http.StatusCreated,
			Paths:  []string{PathList},
			Apply:  h.create,
		}))
	})
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list tenants failed", slog.Any("error", err))
		h.pages.Render(w, r, "Tenant", "pages/tenants.html", map[string]any{"Errors": map[string]string{"general": "Gagal memuat tenant"}}, http.StatusInternalServerError)
		return
	}
	h.pages.Render(w, r, "Tenant", "pages/tenants.html", map[string]any{"Tenants": list}, http.StatusOK)
}

func (h *Handler) listData(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list tenants failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) create(ctx context.Context, _ auth.Principal, in CreateInput) (admin.Outcome, error) {
	t, err := h.service.Create(ctx, in)
	if err != nil {
		return admin.Outcome{}, err
	}
	return admin.Outcome{
		EntityID: t.ID.String(),
		TenantID: &t.ID,
		Data:     t,
		Meta:     map[string]any{"slug": t.Slug, "name": t.Name},
	}, nil
}
