package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/platform/httpx"
	"github.com/jurnal-press/jurnal/internal/shared"
	"github.com/jurnal-press/jurnal/internal/view"
)

// HandlerConfig groups cookie settings and redirect targets for Handler.
type HandlerConfig struct {
	Refresh     RefreshCookie
	Trusted     *TrustedCookie
	LandingPath string
}

// Handler wires HTTP endpoints for sign-in flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
	cfg            HandlerConfig
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
		cfg:            cfg,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/token", h.handlePasswordGrant)
	r.Post("/token/refresh", h.handleRefreshGrant)
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
	Next     string `validate:"omitempty,startswith=/"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type passwordGrant struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{Next: safeNext(r.URL.Query().Get("next"))}
	h.renderLogin(w, r, http.StatusOK, loginPageData{Form: form})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		Next:     safeNext(r.PostFormValue("next")),
	}
	errs := h.validate(form)
	if len(errs) == 0 {
		principal, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err != nil {
			errs["general"] = "Email atau password tidak valid"
		} else if sess == nil {
			h.logger.Error("session missing during login")
			errs["general"] = httpx.MsgInternal
		} else {
			started, err := h.service.StartSession(r.Context(), principal.ID, r.RemoteAddr, r.UserAgent())
			if err != nil {
				h.logger.Error("start auth session", slog.Any("error", err))
				errs["general"] = httpx.MsgInternal
			} else {
				h.sessionManager.Regenerate(sess)
				sess.SetUser(principal.ID.String())
				sess.Set(shared.AuthSessionKey, started.SessionID.String())
				h.csrfManager.Rotate(sess)
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Selamat datang kembali"})
				h.cfg.Refresh.Write(w, started.RefreshToken)
				next := form.Next
				if next == "" {
					next = h.cfg.LandingPath
				}
				http.Redirect(w, r, next, http.StatusSeeOther)
				return
			}
		}
	}

	form.Password = ""
	h.renderLogin(w, r, http.StatusBadRequest, loginPageData{Form: form, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if raw := sess.Get(shared.AuthSessionKey); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				if err := h.service.EndSession(r.Context(), id); err != nil {
					h.logger.Warn("end auth session", slog.Any("error", err))
				}
			}
		}
		h.sessionManager.Destroy(sess)
	}
	h.cfg.Refresh.Clear(w)
	if h.cfg.Trusted != nil {
		h.cfg.Trusted.Clear(w)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) handlePasswordGrant(w http.ResponseWriter, r *http.Request) {
	var req passwordGrant
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}
	principal, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, httpx.MsgUnauthorized, "")
		return
	}
	started, err := h.service.StartSession(r.Context(), principal.ID, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.logger.Error("start auth session", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, httpx.MsgInternal, "")
		return
	}
	h.writeTokens(w, principal, started)
}

func (h *Handler) handleRefreshGrant(w http.ResponseWriter, r *http.Request) {
	var req refreshGrant
	if err := httpx.DecodeJSON(r, &req); err != nil || h.validator.Struct(req) != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "refresh_token is required")
		return
	}
	refreshed, err := h.service.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		h.logger.Info("refresh grant rejected", slog.String("code", string(CodeOf(err))))
		var ae *Error
		if errors.As(err, &ae) {
			httpx.Problem(w, http.StatusUnauthorized, httpx.MsgUnauthorized, string(ae.Code))
			return
		}
		httpx.Problem(w, http.StatusInternalServerError, httpx.MsgInternal, "")
		return
	}
	principal, err := h.service.UserByID(r.Context(), refreshed.UserID)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, httpx.MsgUnauthorized, "")
		return
	}
	h.writeTokens(w, principal, refreshed)
}

func (h *Handler) writeTokens(w http.ResponseWriter, p Principal, session Refreshed) {
	pair, err := h.service.IssueTokens(p, session)
	if err != nil {
		h.logger.Error("issue tokens", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, httpx.MsgInternal, "")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.JSON(w, http.StatusOK, pair)
}

func (h *Handler) validate(form loginForm) map[string]string {
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	return errs
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Masuk",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

// safeNext only accepts same-site absolute paths.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}
