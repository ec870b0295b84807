package authz

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
	"github.com/jurnal-press/jurnal/internal/rbac"
)

// Resolver turns request evidence into a principal.
type Resolver interface {
	Resolve(ctx context.Context, ev auth.Evidence) (auth.Principal, error)
}

// RoleChecker answers the super-admin question.
type RoleChecker interface {
	IsSuperAdmin(ctx context.Context, userID uuid.UUID) (rbac.Decision, error)
}

// TrustedWriter records the last authorized principal for the cookie fallback.
type TrustedWriter interface {
	Write(w http.ResponseWriter, id uuid.UUID)
}

// Recorder counts decisions.
type Recorder interface {
	ObserveAuthzDecision(entry, outcome string)
}

// Entry points reported to the Recorder.
const (
	EntryStructured  = "structured"
	EntryRedirecting = "redirecting"
)

// Outcomes reported to the Recorder.
const (
	OutcomeAuthorized    = "authorized"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeForbidden     = "forbidden"
	OutcomeIndeterminate = "indeterminate"
	OutcomeError         = "error"
)

// GuardConfig holds redirect targets.
type GuardConfig struct {
	LoginPath   string
	LandingPath string
}

// Guard composes the principal resolver and the role lookup. It keeps no
// per-request state and may be shared across goroutines.
type Guard struct {
	resolver Resolver
	roles    RoleChecker
	trusted  TrustedWriter
	metrics  Recorder
	logger   *slog.Logger
	cfg      GuardConfig
}

// NewGuard constructs a Guard. trusted and metrics may be nil.
func NewGuard(resolver Resolver, roles RoleChecker, trusted TrustedWriter, metrics Recorder, logger *slog.Logger, cfg GuardConfig) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/auth/login"
	}
	if cfg.LandingPath == "" {
		cfg.LandingPath = "/"
	}
	return &Guard{resolver: resolver, roles: roles, trusted: trusted, metrics: metrics, logger: logger, cfg: cfg}
}

// CheckSuperAdmin is the structured variant. It never redirects and never
// returns provider failures to the caller; they are folded into the Result.
func (g *Guard) CheckSuperAdmin(ctx context.Context, w http.ResponseWriter, ev auth.Evidence) Result {
	res := g.decide(ctx, w, ev)
	g.observe(EntryStructured, res)
	return res
}

// RequireSuperAdmin is the redirecting variant. It returns the principal, a
// *RedirectError naming where to send the browser, or ErrIndeterminate when
// the session looks mid-propagation.
func (g *Guard) RequireSuperAdmin(ctx context.Context, w http.ResponseWriter, ev auth.Evidence) (*auth.Principal, error) {
	res := g.decide(ctx, w, ev)
	g.observe(EntryRedirecting, res)
	switch {
	case res.Authorized:
		return res.Principal, nil
	case res.Transient():
		return nil, ErrIndeterminate
	case res.Principal == nil:
		return nil, &RedirectError{Kind: RedirectLogin, Location: g.cfg.LoginPath}
	default:
		return nil, &RedirectError{Kind: RedirectLanding, Location: g.cfg.LandingPath}
	}
}

func (g *Guard) decide(ctx context.Context, w http.ResponseWriter, ev auth.Evidence) (res Result) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if re, ok := rec.(*RedirectError); ok {
			panic(re)
		}
		res = g.deny(ctx, nil, httpx.MsgInternal, Diagnostic{
			Stage:  StageUnexpected,
			Reason: ReasonPanic,
			Err:    fmt.Errorf("authz: panic: %v", rec),
		})
	}()

	principal, err := g.resolver.Resolve(ctx, ev)
	if err != nil {
		return g.deny(ctx, nil, messageFor(err), diagnoseResolve(err))
	}

	decision, err := g.roles.IsSuperAdmin(ctx, principal.ID)
	if !decision.Granted {
		diag := Diagnostic{Stage: StageRoleLookup, Reason: ReasonNotPrivileged}
		msg := httpx.MsgForbidden
		if err != nil {
			diag.Reason = ReasonLookupFailed
			diag.Err = err
			msg = httpx.MsgInternal
		}
		return g.deny(ctx, &principal, msg, diag)
	}

	if w != nil && g.trusted != nil && !principal.TokenDerived() {
		g.trusted.Write(w, principal.ID)
	}
	return Result{Authorized: true, Principal: &principal}
}

func (g *Guard) deny(ctx context.Context, p *auth.Principal, msg string, diag Diagnostic) Result {
	attrs := []any{
		slog.String("stage", string(diag.Stage)),
		slog.String("reason", diag.Reason),
		slog.Bool("transient", diag.Transient),
	}
	if p != nil {
		attrs = append(attrs, slog.String("user_id", p.ID.String()))
	}
	if diag.Err != nil {
		attrs = append(attrs, slog.Any("error", diag.Err))
	}
	level := slog.LevelInfo
	if msg == httpx.MsgInternal {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "authz: denied", attrs...)
	return Result{Principal: p, Error: msg, Diagnostic: diag}
}

func (g *Guard) observe(entry string, res Result) {
	if g.metrics == nil {
		return
	}
	g.metrics.ObserveAuthzDecision(entry, outcomeOf(res))
}

func outcomeOf(res Result) string {
	switch {
	case res.Authorized:
		return OutcomeAuthorized
	case res.Transient():
		return OutcomeIndeterminate
	case res.Error == httpx.MsgUnauthorized:
		return OutcomeUnauthorized
	case res.Error == httpx.MsgForbidden:
		return OutcomeForbidden
	default:
		return OutcomeError
	}
}

func messageFor(err error) string {
	if _, ok := auth.ReasonOf(err); ok {
		return httpx.MsgUnauthorized
	}
	return httpx.MsgInternal
}

func diagnoseResolve(err error) Diagnostic {
	reason, ok := auth.ReasonOf(err)
	if !ok {
		return Diagnostic{Stage: StageUnexpected, Reason: ReasonProvider, Err: err, Transient: auth.IsTransient(err)}
	}
	diag := Diagnostic{Stage: StageSession, Reason: string(reason), Err: err}
	switch auth.CodeOf(err) {
	case auth.CodeTokenMissing, auth.CodeTokenInvalid, auth.CodeTokenExpired:
		diag.Stage = StageToken
	}
	if reason == auth.ReasonInvalidCredential {
		diag.Transient = auth.IsTransient(err)
	}
	return diag
}

// fail builds a denial for failures outside Resolve and the role lookup.
func (g *Guard) fail(ctx context.Context, diag Diagnostic) Result {
	res := g.deny(ctx, nil, httpx.MsgInternal, diag)
	g.observe(EntryStructured, res)
	return res
}
