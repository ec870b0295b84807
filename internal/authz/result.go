// Package authz decides whether a request may use super-admin surfaces.
package authz

import (
	"errors"
	"net/url"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/platform/httpx"
)

// Stage names the sub-check that produced a denial.
type Stage string

const (
	StageNone       Stage = ""
	StageToken      Stage = "token"
	StageSession    Stage = "session"
	StageRoleLookup Stage = "role_lookup"
	StageUnexpected Stage = "unexpected"
)

// Diagnostic reasons outside the auth package's vocabulary.
const (
	ReasonNotPrivileged = "not_privileged"
	ReasonLookupFailed  = "lookup_failed"
	ReasonPanic         = "panic"
	ReasonProvider      = "provider_error"
)

// Diagnostic is server-side detail about a decision. It is logged, never rendered.
type Diagnostic struct {
	Stage     Stage
	Reason    string
	Transient bool
	Err       error
}

// Result is the structured outcome of an authorization check.
type Result struct {
	Authorized bool
	Principal  *auth.Principal
	// Error is one of the public messages in httpx, or empty when authorized.
	Error      string
	Diagnostic Diagnostic
}

// Transient reports whether the denial looks like a session propagation race
// that a later recheck may resolve.
func (r Result) Transient() bool {
	return !r.Authorized && r.Diagnostic.Transient
}

// Status maps Error to an HTTP status code.
func (r Result) Status() int {
	return httpx.StatusForMessage(r.Error)
}

// ErrIndeterminate is returned by the redirecting check when the decision must
// be deferred to a client-side recheck instead of redirecting.
var ErrIndeterminate = errors.New("authz: session not yet propagated")

// RedirectKind distinguishes the two redirect targets.
type RedirectKind string

const (
	RedirectLogin   RedirectKind = "login"
	RedirectLanding RedirectKind = "landing"
)

// RedirectError is a navigation signal. Callers must act on it rather than
// treat it as a failure.
type RedirectError struct {
	Kind     RedirectKind
	Location string
}

func (e *RedirectError) Error() string {
	return "authz: redirect to " + e.Location
}

// WithNext returns the location carrying a return path for login redirects.
func (e *RedirectError) WithNext(next string) string {
	if e.Kind != RedirectLogin || next == "" {
		return e.Location
	}
	u, err := url.Parse(e.Location)
	if err != nil {
		return e.Location
	}
	q := u.Query()
	q.Set("next", next)
	u.RawQuery = q.Encode()
	return u.String()
}

// AsRedirect extracts a *RedirectError from err.
func AsRedirect(err error) (*RedirectError, bool) {
	var re *RedirectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
