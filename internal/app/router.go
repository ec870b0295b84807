package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jurnal-press/jurnal/internal/audit"
	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/authz"
	"github.com/jurnal-press/jurnal/internal/observability"
	"github.com/jurnal-press/jurnal/internal/roles"
	"github.com/jurnal-press/jurnal/internal/shared"
	"github.com/jurnal-press/jurnal/internal/tenants"
	"github.com/jurnal-press/jurnal/internal/users"
	"github.com/jurnal-press/jurnal/internal/view"
	"github.com/jurnal-press/jurnal/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	AuthzHandler   *authz.Handler
	TenantsHandler *tenants.Handler
	RolesHandler   *roles.Handler
	UsersHandler   *users.Handler
	AuditHandler   *audit.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with jurnal defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	landing := "/welcome"
	if params.Config != nil && params.Config.LandingPath != "" {
		landing = params.Config.LandingPath
	}
	r.Get(landing, func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
		var flash *shared.FlashMessage
		if sess != nil {
			flash = sess.PopFlash()
		}
		data := view.TemplateData{
			Title:     "Jurnal",
			CSRFToken: csrfToken,
			Flash:     flash,
		}
		if err := params.Templates.Render(w, "pages/landing.html", data); err != nil {
			params.Logger.Error("render landing", slog.Any("error", err))
		}
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, tenants.PathList, http.StatusSeeOther)
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/authz", params.AuthzHandler.MountRoutes)
	if params.TenantsHandler != nil {
		r.Route(tenants.PathList, params.TenantsHandler.MountRoutes)
	}
	if params.RolesHandler != nil {
		r.Route(roles.PathList, params.RolesHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route(users.PathList, params.UsersHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route(audit.PathTimeline, params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.AuthzHandler.RequireAction)
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if static, err := staticHandler(); err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		r.Handle("/static/*", static)
	}

	return r
}
