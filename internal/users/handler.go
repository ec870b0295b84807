package users

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jurnal-press/jurnal/internal/admin"
	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   admin.Pages
	deps    admin.Deps
	page    func(http.Handler) http.Handler
	action  func(http.Handler) http.Handler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, pages admin.Pages, deps admin.Deps, page, action func(http.Handler) http.Handler) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pages: pages, deps: deps, page: page, action: action}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.page).Get("/", h.listUsers)
	r.Group(func(r chi.Router) {
		r.Use(h.action)
		r.Get("/data", h.listData)
		r.Post("/actions/membership", admin.Handle(h.deps, admin.Action[MembershipInput]{
			Name:   "membership.upsert",
			Entity: "tenant_user",
			Paths:  []string{PathList},
			Apply:  h.upsertMembership,
		}))
		r.Post("/actions/membership/deactivate", admin.Handle(h.deps, admin.Action[MembershipRef]{
			Name:   "membership.deactivate",
			Entity: "tenant_user",
			Paths:  []string{PathList},
			Apply:  h.deactivateMembership,
		}))
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		h.pages.Render(w, r, "Pengguna", "pages/users.html", map[string]any{"Errors": map[string]string{"general": "Gagal memuat pengguna"}}, http.StatusInternalServerError)
		return
	}
	h.pages.Render(w, r, "Pengguna", "pages/users.html", map[string]any{"Users": list}, http.StatusOK)
}

func (h *Handler) listData(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) upsertMembership(ctx context.Context, _ auth.Principal, in MembershipInput) (admin.Outcome, error) {
	m, err := h.service.UpsertMembership(ctx, in)
	if err != nil {
		return admin.Outcome{}, err
	}
	return membershipOutcome(m), nil
}

func (h *Handler) deactivateMembership(ctx context.Context, _ auth.Principal, in MembershipRef) (admin.Outcome, error) {
	m, err := h.service.DeactivateMembership(ctx, in)
	if err != nil {
		return admin.Outcome{}, err
	}
	return membershipOutcome(m), nil
}

func membershipOutcome(m Membership) admin.Outcome {
	tenantID := m.TenantID
	return admin.Outcome{
		EntityID: m.UserID.String() + ":" + m.TenantID.String(),
		TenantID: &tenantID,
		Data:     m,
		Meta:     map[string]any{"user_id": m.UserID.String(), "role": m.Role, "active": m.Active},
	}
}
