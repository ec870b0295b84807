package roles

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/admin"
	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
)

// pathUsers lists memberships and is affected by assignment changes.
const pathUsers = "/admin/users"

// Handler manages role management endpoints.
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

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.page).Get("/", h.listRoles)
	r.Group(func(r chi.Router) {
		r.Use(h.action)
		r.Get("/data", h.listData)
		r.Get("/assignments", h.listAssignments)
		r.Post("/actions/ensure", admin.Handle(h.deps, admin.Action[EnsureInput]{
			Name:   "role.ensure",
			Entity: "role",
			Paths:  []string{PathList},
			Apply:  h.ensure,
		}))
		r.Post("/actions/assign", admin.Handle(h.deps, admin.Action[AssignInput]{
			Name:   "role.assign",
			Entity: "user_role_assignment",
			Status: http.StatusCreated,
			Paths:  []string{PathList, pathUsers},
			Apply:  h.assign,
		}))
		r.Post("/actions/deactivate", admin.Handle(h.deps, admin.Action[DeactivateInput]{
			Name:   "role.deactivate",
			Entity: "user_role_assignment",
			Paths:  []string{PathList, pathUsers},
			Apply:  h.deactivate,
		}))
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.ListDefinitions(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		h.pages.Render(w, r, "Peran", "pages/roles.html", map[string]any{"Errors": map[string]string{"general": "Gagal memuat peran"}}, http.StatusInternalServerError)
		return
	}
	h.pages.Render(w, r, "Peran", "pages/roles.html", map[string]any{"Roles": defs}, http.StatusOK)
}

func (h *Handler) listData(w http.ResponseWriter, r *http.Request) {
	defs, err := h.service.ListDefinitions(r.Context())
	if err != nil {
		h.logger.Error("list roles failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	httpx.OK(w, http.StatusOK, defs)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		httpx.Invalid(w, map[string]string{"user_id": "harus berupa UUID"})
		return
	}
	list, err := h.service.ListAssignments(r.Context(), userID)
	if err != nil {
		h.logger.Error("list assignments failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, httpx.MsgInternal)
		return
	}
	httpx.OK(w, http.StatusOK, list)
}

func (h *Handler) ensure(ctx context.Context, _ auth.Principal, in EnsureInput) (admin.Outcome, error) {
	def, created, err := h.service.Ensure(ctx, in)
	if err != nil {
		return admin.Outcome{}, err
	}
	return admin.Outcome{
		EntityID: def.ID.String(),
		Data:     map[string]any{"role": def, "created": created},
		Meta:     map[string]any{"role_key": def.Key, "created": created},
	}, nil
}

func (h *Handler) assign(ctx context.Context, _ auth.Principal, in AssignInput) (admin.Outcome, error) {
	a, err := h.service.Assign(ctx, in)
	if err != nil {
		return admin.Outcome{}, err
	}
	return assignmentOutcome(a), nil
}

func (h *Handler) deactivate(ctx context.Context, _ auth.Principal, in DeactivateInput) (admin.Outcome, error) {
	a, err := h.service.Deactivate(ctx, in)
	if err != nil {
		return admin.Outcome{}, err
	}
	return assignmentOutcome(a), nil
}

func assignmentOutcome(a Assignment) admin.Outcome {
	meta := map[string]any{"user_id": a.UserID.String(), "role_key": a.RoleKey, "active": a.Active}
	if a.JournalID != nil {
		meta["journal_id"] = a.JournalID.String()
	}
	return admin.Outcome{EntityID: a.ID.String(), TenantID: a.TenantID, Data: a, Meta: meta}
}
