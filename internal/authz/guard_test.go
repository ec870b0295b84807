package authz

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
	"github.com/jurnal-press/jurnal/internal/rbac"
)

// tokenResolver resolves principals keyed by bearer token; unknown tokens
// yield the configured error.
type tokenResolver struct {
	principals map[string]auth.Principal
	err        error
	panicWith  any
	calls      int
}

func (f *tokenResolver) Resolve(_ context.Context, ev auth.Evidence) (auth.Principal, error) {
	f.calls++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if p, ok := f.principals[ev.BearerToken]; ok {
		return p, nil
	}
	if f.err != nil {
		return auth.Principal{}, f.err
	}
	return auth.Principal{}, &auth.UnauthenticatedError{Reason: auth.ReasonNoCredential}
}

type fakeRoles struct {
	admins map[uuid.UUID]bool
	err    error
}

func (f *fakeRoles) IsSuperAdmin(_ context.Context, id uuid.UUID) (rbac.Decision, error) {
	if f.admins[id] {
		return rbac.Decision{Granted: true, Source: rbac.SourceCurrentSchema}, nil
	}
	return rbac.Decision{}, f.err
}

type trustedSpy struct {
	written []uuid.UUID
}

func (s *trustedSpy) Write(_ http.ResponseWriter, id uuid.UUID) {
	s.written = append(s.written, id)
}

type recorderSpy struct {
	counts map[string]int
}

func (r *recorderSpy) ObserveAuthzDecision(entry, outcome string) {
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[entry+"/"+outcome]++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type guardFixture struct {
	guard    *Guard
	resolver *tokenResolver
	roles    *fakeRoles
	trusted  *trustedSpy
	metrics  *recorderSpy
	admin    auth.Principal
	member   auth.Principal
}

func newGuardFixture() *guardFixture {
	admin := auth.Principal{ID: uuid.New(), Email: "admin@example.org", Source: auth.SourceSession}
	member := auth.Principal{ID: uuid.New(), Email: "editor@example.org", Source: auth.SourceSession}
	bearer := admin
	bearer.Source = auth.SourceBearer
	f := &guardFixture{
		resolver: &tokenResolver{principals: map[string]auth.Principal{
			"admin":        admin,
			"member":       member,
			"admin-bearer": bearer,
		}},
		roles:   &fakeRoles{admins: map[uuid.UUID]bool{admin.ID: true}},
		trusted: &trustedSpy{},
		metrics: &recorderSpy{},
		admin:   admin,
		member:  member,
	}
	f.guard = NewGuard(f.resolver, f.roles, f.trusted, f.metrics, discardLogger(), GuardConfig{
		LoginPath:   "/auth/login",
		LandingPath: "/welcome",
	})
	return f
}

func TestCheckSuperAdminAuthorized(t *testing.T) {
	f := newGuardFixture()
	res := f.guard.CheckSuperAdmin(context.Background(), httptest.NewRecorder(), auth.Evidence{BearerToken: "admin"})

	assert.True(t, res.Authorized)
	require.NotNil(t, res.Principal)
	assert.Equal(t, f.admin.ID, res.Principal.ID)
	assert.Empty(t, res.Error)
	assert.Equal(t, []uuid.UUID{f.admin.ID}, f.trusted.written)
	assert.Equal(t, 1, f.metrics.counts["structured/authorized"])
}

func TestCheckSuperAdminSkipsTrustedCookieForBearer(t *testing.T) {
	f := newGuardFixture()
	res := f.guard.CheckSuperAdmin(context.Background(), httptest.NewRecorder(), auth.Evidence{BearerToken: "admin-bearer"})

	assert.True(t, res.Authorized)
	assert.Empty(t, f.trusted.written)
}

func TestCheckSuperAdminDenials(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*guardFixture)
		token     string
		message   string
		stage     Stage
		reason    string
		transient bool
		principal bool
	}{
		{
			name:    "no credential",
			message: httpx.MsgUnauthorized, stage: StageSession, reason: string(auth.ReasonNoCredential),
		},
		{
			name: "invalid token",
			setup: func(f *guardFixture) {
				f.resolver.err = &auth.UnauthenticatedError{Reason: auth.ReasonInvalidCredential, Cause: &auth.Error{Code: auth.CodeTokenExpired}}
			},
			token:   "stale",
			message: httpx.MsgUnauthorized, stage: StageToken, reason: string(auth.ReasonInvalidCredential),
		},
		{
			name: "session not propagated",
			setup: func(f *guardFixture) {
				f.resolver.err = &auth.UnauthenticatedError{Reason: auth.ReasonInvalidCredential, Cause: &auth.Error{Code: auth.CodeSessionNotPropagated}}
			},
			message: httpx.MsgUnauthorized, stage: StageSession, reason: string(auth.ReasonInvalidCredential), transient: true,
		},
		{
			name:    "not privileged",
			token:   "member",
			message: httpx.MsgForbidden, stage: StageRoleLookup, reason: ReasonNotPrivileged, principal: true,
		},
		{
			name:    "role lookup failure",
			setup:   func(f *guardFixture) { f.roles.err = rbac.ErrLookupFailed },
			token:   "member",
			message: httpx.MsgInternal, stage: StageRoleLookup, reason: ReasonLookupFailed, principal: true,
		},
		{
			name:    "provider failure",
			setup:   func(f *guardFixture) { f.resolver.err = errors.New("connection refused") },
			token:   "unknown",
			message: httpx.MsgInternal, stage: StageUnexpected, reason: ReasonProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGuardFixture()
			if tt.setup != nil {
				tt.setup(f)
			}
			res := f.guard.CheckSuperAdmin(context.Background(), httptest.NewRecorder(), auth.Evidence{BearerToken: tt.token})

			assert.False(t, res.Authorized)
			assert.Equal(t, tt.message, res.Error)
			assert.Equal(t, tt.stage, res.Diagnostic.Stage)
			assert.Equal(t, tt.reason, res.Diagnostic.Reason)
			assert.Equal(t, tt.transient, res.Transient())
			assert.Equal(t, tt.principal, res.Principal != nil)
			assert.Empty(t, f.trusted.written)
		})
	}
}

func TestRequireSuperAdminOutcomes(t *testing.T) {
	f := newGuardFixture()
	ctx := context.Background()

	p, err := f.guard.RequireSuperAdmin(ctx, nil, auth.Evidence{BearerToken: "admin"})
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, p.ID)

	_, err = f.guard.RequireSuperAdmin(ctx, nil, auth.Evidence{})
	re, ok := AsRedirect(err)
	require.True(t, ok)
	assert.Equal(t, RedirectLogin, re.Kind)
	assert.Equal(t, "/auth/login", re.Location)

	_, err = f.guard.RequireSuperAdmin(ctx, nil, auth.Evidence{BearerToken: "member"})
	re, ok = AsRedirect(err)
	require.True(t, ok)
	assert.Equal(t, RedirectLanding, re.Kind)
	assert.Equal(t, "/welcome", re.Location)

	f.resolver.err = &auth.UnauthenticatedError{Reason: auth.ReasonInvalidCredential, Cause: &auth.Error{Code: auth.CodeSessionNotPropagated}}
	p, err = f.guard.RequireSuperAdmin(ctx, nil, auth.Evidence{BearerToken: "racing"})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrIndeterminate)
	assert.Equal(t, 1, f.metrics.counts["redirecting/indeterminate"])
}

func TestGuardRecoversPanics(t *testing.T) {
	f := newGuardFixture()
	f.resolver.panicWith = "nil map write"

	res := f.guard.CheckSuperAdmin(context.Background(), nil, auth.Evidence{BearerToken: "admin"})
	assert.False(t, res.Authorized)
	assert.Equal(t, httpx.MsgInternal, res.Error)
	assert.Equal(t, StageUnexpected, res.Diagnostic.Stage)
	assert.Equal(t, ReasonPanic, res.Diagnostic.Reason)
}

func TestGuardPassesRedirectPanicsThrough(t *testing.T) {
	f := newGuardFixture()
	signal := &RedirectError{Kind: RedirectLogin, Location: "/auth/login"}
	f.resolver.panicWith = signal

	assert.PanicsWithValue(t, signal, func() {
		f.guard.CheckSuperAdmin(context.Background(), nil, auth.Evidence{})
	})
}

func TestRedirectWithNext(t *testing.T) {
	login := &RedirectError{Kind: RedirectLogin, Location: "/auth/login"}
	assert.Equal(t, "/auth/login?next=%2Fadmin%2Froles%3Ftab%3D1", login.WithNext("/admin/roles?tab=1"))
	assert.Equal(t, "/auth/login", login.WithNext(""))

	landing := &RedirectError{Kind: RedirectLanding, Location: "/welcome"}
	assert.Equal(t, "/welcome", landing.WithNext("/admin"))
}

func TestRecheckStateMachine(t *testing.T) {
	transient := Result{Error: httpx.MsgUnauthorized, Diagnostic: Diagnostic{Transient: true}}
	rc := NewRecheck(3, 10*time.Millisecond)
	assert.Equal(t, RecheckIdle, rc.State())

	wait, again := rc.Observe(transient)
	assert.True(t, again)
	assert.Equal(t, 10*time.Millisecond, wait)
	assert.Equal(t, RecheckRetrying, rc.State())

	wait, again = rc.Observe(transient)
	assert.True(t, again)
	assert.Equal(t, 20*time.Millisecond, wait)

	_, again = rc.Observe(transient)
	assert.False(t, again)
	assert.Equal(t, RecheckGaveUp, rc.State())
	assert.Equal(t, 3, rc.Attempts())

	_, again = rc.Observe(Result{Authorized: true})
	assert.False(t, again)
	assert.Equal(t, RecheckGaveUp, rc.State())
}

func TestRecheckSucceedsOnConclusiveResult(t *testing.T) {
	calls := 0
	rc := NewRecheck(5, time.Millisecond)
	res := rc.Run(context.Background(), func(context.Context) Result {
		calls++
		if calls < 2 {
			return Result{Error: httpx.MsgUnauthorized, Diagnostic: Diagnostic{Transient: true}}
		}
		return Result{Authorized: true}
	})
	assert.True(t, res.Authorized)
	assert.Equal(t, 2, calls)
	assert.Equal(t, RecheckSucceeded, rc.State())

	rc = NewRecheck(5, time.Millisecond)
	res = rc.Run(context.Background(), func(context.Context) Result {
		return Result{Error: httpx.MsgForbidden}
	})
	assert.Equal(t, httpx.MsgForbidden, res.Error)
	assert.Equal(t, RecheckSucceeded, rc.State())
	assert.Equal(t, 1, rc.Attempts())
}

func TestRecheckStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rc := NewRecheck(10, time.Hour)
	res := rc.Run(ctx, func(context.Context) Result {
		cancel()
		return Result{Error: httpx.MsgUnauthorized, Diagnostic: Diagnostic{Transient: true}}
	})
	assert.True(t, res.Transient())
	assert.Equal(t, RecheckGaveUp, rc.State())
	assert.Equal(t, 1, rc.Attempts())
}

func TestRecheckDefaults(t *testing.T) {
	rc := NewRecheck(0, 0)
	assert.Equal(t, 3, rc.attempts)
	assert.Equal(t, 250*time.Millisecond, rc.step)
}

// racingSessions has a cookie that the store has not seen yet: refresh
// reports the propagation race.
type racingSessions struct{}

func (racingSessions) Presented() bool { return true }

func (racingSessions) Session(context.Context) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (racingSessions) Refresh(context.Context) (bool, error) {
	return false, &auth.Error{Code: auth.CodeSessionNotPropagated, Status: http.StatusUnauthorized}
}

func (racingSessions) User(context.Context) (auth.Principal, error) {
	return auth.Principal{}, errors.New("no session user")
}

type directoryFunc func(ctx context.Context, id uuid.UUID) (auth.Principal, error)

func (fn directoryFunc) AdminUserByID(ctx context.Context, id uuid.UUID) (auth.Principal, error) {
	return fn(ctx, id)
}

func TestRequireSuperAdminIndeterminateWhenTrustedCookieAlsoFails(t *testing.T) {
	f := newGuardFixture()
	trusted := auth.NewTrustedCookie("jurnal_trusted", "secret", time.Hour, false)
	lookups := 0
	directory := directoryFunc(func(context.Context, uuid.UUID) (auth.Principal, error) {
		lookups++
		return f.admin, nil
	})
	verifier := auth.NewVerifier(nil, directory, trusted, discardLogger())
	guard := NewGuard(verifier, f.roles, f.trusted, f.metrics, discardLogger(), GuardConfig{
		LoginPath:   "/auth/login",
		LandingPath: "/welcome",
	})

	stale := auth.NewTrustedCookie("jurnal_trusted", "rotated", time.Hour, false).Sign(f.admin.ID)
	p, err := guard.RequireSuperAdmin(context.Background(), nil, auth.Evidence{
		Sessions:         racingSessions{},
		TrustedPrincipal: stale,
	})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrIndeterminate)
	_, redirected := AsRedirect(err)
	assert.False(t, redirected)
	assert.Equal(t, 1, f.metrics.counts["redirecting/indeterminate"])
	assert.Zero(t, lookups, "a forged cookie never reaches the directory")
}
