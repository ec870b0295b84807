package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// TokenVerifier resolves the principal named by a bearer token.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (Principal, error)
}

// UserDirectory performs elevated principal lookups.
type UserDirectory interface {
	AdminUserByID(ctx context.Context, id uuid.UUID) (Principal, error)
}

// TrustedVerifier validates the trusted-principal cookie value.
type TrustedVerifier interface {
	Verify(value string) (uuid.UUID, error)
}

// Evidence is everything a request presents to prove who it is.
type Evidence struct {
	BearerToken      string
	Sessions         SessionAccessor
	TrustedPrincipal string
}

// Presented reports whether any credential was supplied at all.
func (e Evidence) Presented() bool {
	return e.BearerToken != "" || e.TrustedPrincipal != "" || (e.Sessions != nil && e.Sessions.Presented())
}

// Verifier resolves a principal from Evidence. It holds no per-request state
// and performs no retries; every step is at most one round trip.
type Verifier struct {
	tokens    TokenVerifier
	directory UserDirectory
	trusted   TrustedVerifier
	logger    *slog.Logger
}

// NewVerifier constructs a Verifier. trusted may be nil to disable the cookie fallback.
func NewVerifier(tokens TokenVerifier, directory UserDirectory, trusted TrustedVerifier, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{tokens: tokens, directory: directory, trusted: trusted, logger: logger}
}

// Resolve walks bearer token, cookie session (with one refresh) and the trusted
// cookie in that order; the first principal found wins. When nothing resolves
// it returns *UnauthenticatedError.
func (v *Verifier) Resolve(ctx context.Context, ev Evidence) (Principal, error) {
	// A propagation race seen at any step outranks later failures, so the
	// caller can still answer indeterminate instead of sending to login.
	var lastErr, transientErr error
	fail := func(stage string, err error) {
		lastErr = err
		if transientErr == nil && IsTransient(err) {
			transientErr = err
		}
		v.logger.Warn("auth: evidence rejected",
			slog.String("stage", stage),
			slog.String("code", string(CodeOf(err))),
			slog.Any("error", err))
	}

	if ev.BearerToken != "" && v.tokens != nil {
		p, err := v.tokens.VerifyAccessToken(ctx, ev.BearerToken)
		if err == nil && !p.Disabled() {
			p.Source = SourceBearer
			return p, nil
		}
		if err == nil {
			err = &Error{Code: CodeUserDisabled, Status: http.StatusForbidden}
		}
		fail("token", err)
	}

	if ev.Sessions != nil {
		if p, ok := v.fromSession(ctx, ev.Sessions, fail); ok {
			return p, nil
		}
	}

	if ev.TrustedPrincipal != "" && v.trusted != nil && v.directory != nil {
		if id, err := v.trusted.Verify(ev.TrustedPrincipal); err != nil {
			fail("trusted_cookie", err)
		} else if p, err := v.directory.AdminUserByID(ctx, id); err != nil {
			fail("trusted_cookie", err)
		} else if p.Disabled() {
			fail("trusted_cookie", &Error{Code: CodeUserDisabled, Status: http.StatusForbidden})
		} else {
			p.Source = SourceTrustedCookie
			return p, nil
		}
	}

	if !ev.Presented() {
		return Principal{}, &UnauthenticatedError{Reason: ReasonNoCredential}
	}
	cause := lastErr
	if transientErr != nil {
		cause = transientErr
	}
	if cause == nil {
		cause = newError(CodeSessionMissing, "", nil)
	}
	return Principal{}, &UnauthenticatedError{Reason: ReasonInvalidCredential, Cause: cause}
}

func (v *Verifier) fromSession(ctx context.Context, sessions SessionAccessor, fail func(string, error)) (Principal, bool) {
	_, ok, err := sessions.Session(ctx)
	if err != nil {
		fail("session", err)
	}
	if !ok {
		refreshed, err := sessions.Refresh(ctx)
		if err != nil {
			fail("refresh", err)
		}
		ok = refreshed
	}
	if !ok {
		return Principal{}, false
	}
	p, err := sessions.User(ctx)
	if err != nil {
		fail("session_user", err)
		return Principal{}, false
	}
	if p.Disabled() {
		fail("session_user", &Error{Code: CodeUserDisabled, Status: http.StatusForbidden})
		return Principal{}, false
	}
	if p.Source == "" {
		p.Source = SourceSession
	}
	return p, true
}
