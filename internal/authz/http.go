package authz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
	"github.com/jurnal-press/jurnal/internal/shared"
	"github.com/jurnal-press/jurnal/internal/view"
)

// RecheckConfig bounds rechecks of transient denials.
type RecheckConfig struct {
	Attempts int
	Step     time.Duration
}

// Handler exposes the guard to pages, JSON actions and the client-side recheck.
type Handler struct {
	guard     *Guard
	evidence  *EvidenceBuilder
	templates *view.Engine
	csrf      *shared.CSRFManager
	recheck   RecheckConfig
	logger    *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(guard *Guard, evidence *EvidenceBuilder, templates *view.Engine, csrf *shared.CSRFManager, recheck RecheckConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := NewRecheck(recheck.Attempts, recheck.Step)
	recheck.Attempts, recheck.Step = defaults.attempts, defaults.step
	return &Handler{guard: guard, evidence: evidence, templates: templates, csrf: csrf, recheck: recheck, logger: logger}
}

// MountRoutes registers the recheck endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/check", h.handleCheck)
}

type checkResponse struct {
	Authorized bool   `json:"authorized"`
	Transient  bool   `json:"transient"`
	Error      string `json:"error,omitempty"`
}

// handleCheck answers one structured check; the verifying page polls it.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	res := h.guard.CheckSuperAdmin(r.Context(), w, h.evidence.FromRequest(w, r))
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, checkResponse{
		Authorized: res.Authorized,
		Transient:  res.Transient(),
		Error:      res.Error,
	})
}

// RequirePage guards server-rendered pages with the redirecting check.
func (h *Handler) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.guard.RequireSuperAdmin(r.Context(), w, h.evidence.FromRequest(w, r))
		if err == nil {
			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), *principal)))
			return
		}
		if errors.Is(err, ErrIndeterminate) {
			h.renderVerifying(w, r)
			return
		}
		if re, ok := AsRedirect(err); ok {
			http.Redirect(w, r, re.WithNext(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		h.logger.Error("authz: unexpected page guard error", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	})
}

// Authorize runs the structured check, rechecking transient denials within
// the configured budget. Rechecks reload the session from the store.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) Result {
	rc := NewRecheck(h.recheck.Attempts, h.recheck.Step)
	first := true
	res := rc.Run(r.Context(), func(ctx context.Context) Result {
		ev := h.evidence.FromRequest(w, r)
		if !first {
			reloaded, err := h.evidence.Reload(ctx, w, r)
			if err != nil {
				return h.guard.fail(ctx, Diagnostic{Stage: StageSession, Reason: ReasonProvider, Err: err})
			}
			ev = reloaded
		}
		first = false
		return h.guard.CheckSuperAdmin(ctx, w, ev)
	})
	if rc.State() == RecheckGaveUp {
		h.logger.Warn("authz: recheck gave up", slog.Int("attempts", rc.Attempts()))
	}
	return res
}

// RequireAction guards JSON actions. Failures are written as tagged results
// carrying only the public message.
func (h *Handler) RequireAction(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := h.Authorize(w, r)
		if !res.Authorized {
			httpx.Fail(w, res.Status(), res.Error)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), *res.Principal)))
	})
}

func (h *Handler) renderVerifying(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	if h.csrf != nil && sess != nil {
		csrfToken, _ = h.csrf.EnsureToken(r.Context(), sess)
	}
	w.Header().Set("Cache-Control", "no-store")
	data := view.TemplateData{
		Title:       "Memverifikasi sesi",
		CSRFToken:   csrfToken,
		CurrentPath: r.URL.Path,
		Data: map[string]any{
			"Next":       r.URL.RequestURI(),
			"Attempts":   h.recheck.Attempts,
			"StepMillis": h.recheck.Step.Milliseconds(),
		},
	}
	if err := h.templates.Render(w, "pages/verifying.html", data); err != nil {
		h.logger.Error("render verifying", slog.Any("error", err))
	}
}
