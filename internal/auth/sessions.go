package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jurnal-press/jurnal/internal/shared"
)

// SessionAccessor is the request-scoped view of the browser session.
type SessionAccessor interface {
	// Presented reports whether the request carried an authenticated session or
	// a refresh token. An anonymous session cookie is not a credential.
	Presented() bool
	// Session reports the principal ID stored in the current session, if any.
	Session(ctx context.Context) (uuid.UUID, bool, error)
	// Refresh attempts one refresh-token rotation, rewriting cookies on success.
	Refresh(ctx context.Context) (bool, error)
	// User loads the principal of the (possibly refreshed) session.
	User(ctx context.Context) (Principal, error)
}

// SessionProvider is the identity-store subset used by CookieSessions.
type SessionProvider interface {
	RefreshSession(ctx context.Context, refreshToken string) (Refreshed, error)
	UserByID(ctx context.Context, id uuid.UUID) (Principal, error)
}

// RefreshCookie describes the cookie carrying the opaque refresh token.
type RefreshCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Write stores token in the cookie.
func (c RefreshCookie) Write(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.TTL.Seconds()),
	})
}

// Clear expires the cookie.
func (c RefreshCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CookieSessions implements SessionAccessor over the Redis session loaded by
// the session middleware and the refresh-token cookie.
type CookieSessions struct {
	provider  SessionProvider
	sess      *shared.Session
	w         http.ResponseWriter
	r         *http.Request
	refresh   RefreshCookie
	refreshed bool
}

// NewCookieSessions binds a SessionAccessor to one request.
func NewCookieSessions(provider SessionProvider, sess *shared.Session, w http.ResponseWriter, r *http.Request, refresh RefreshCookie) *CookieSessions {
	return &CookieSessions{
		provider: provider,
		sess:     sess,
		w:        w,
		r:        r,
		refresh:  refresh,
	}
}

// Presented implements SessionAccessor.
func (c *CookieSessions) Presented() bool {
	if c.sess != nil && c.sess.User() != "" {
		return true
	}
	if c.r == nil {
		return false
	}
	cookie, err := c.r.Cookie(c.refresh.Name)
	return err == nil && cookie.Value != ""
}

// Session implements SessionAccessor.
func (c *CookieSessions) Session(ctx context.Context) (uuid.UUID, bool, error) {
	if c.sess == nil || c.sess.User() == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(c.sess.User())
	if err != nil {
		return uuid.Nil, false, newError(CodeSessionMissing, "session user is not a principal id", err)
	}
	return id, true, nil
}

// Refresh implements SessionAccessor.
func (c *CookieSessions) Refresh(ctx context.Context) (bool, error) {
	if c.sess == nil || c.r == nil {
		return false, nil
	}
	cookie, err := c.r.Cookie(c.refresh.Name)
	if err != nil || cookie.Value == "" {
		return false, nil
	}
	out, err := c.provider.RefreshSession(ctx, cookie.Value)
	if err != nil {
		if CodeOf(err) != CodeSessionNotPropagated && c.w != nil {
			c.refresh.Clear(c.w)
		}
		return false, err
	}
	c.sess.SetUser(out.UserID.String())
	c.sess.Set(shared.AuthSessionKey, out.SessionID.String())
	if c.w != nil {
		c.refresh.Write(c.w, out.RefreshToken)
	}
	c.refreshed = true
	return true, nil
}

// User implements SessionAccessor.
func (c *CookieSessions) User(ctx context.Context) (Principal, error) {
	id, ok, err := c.Session(ctx)
	if err != nil {
		return Principal{}, err
	}
	if !ok {
		return Principal{}, newError(CodeSessionMissing, "", nil)
	}
	p, err := c.provider.UserByID(ctx, id)
	if err != nil {
		return Principal{}, err
	}
	p.Source = SourceSession
	if c.refreshed {
		p.Source = SourceRefreshedSession
	}
	return p, nil
}

var _ SessionAccessor = (*CookieSessions)(nil)
