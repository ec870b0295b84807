package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/jurnal-press/jurnal/internal/auth"
	"github.com/jurnal-press/jurnal/internal/shared"
)

// EvidenceBuilder gathers auth.Evidence from an inbound request.
type EvidenceBuilder struct {
	provider auth.SessionProvider
	sessions *shared.SessionManager
	refresh  auth.RefreshCookie
	trusted  *auth.TrustedCookie
}

// NewEvidenceBuilder constructs an EvidenceBuilder. trusted may be nil.
func NewEvidenceBuilder(provider auth.SessionProvider, sessions *shared.SessionManager, refresh auth.RefreshCookie, trusted *auth.TrustedCookie) *EvidenceBuilder {
	return &EvidenceBuilder{provider: provider, sessions: sessions, refresh: refresh, trusted: trusted}
}

// FromRequest reads the bearer token, the session loaded by the session
// middleware, the refresh cookie and the trusted-principal cookie.
func (b *EvidenceBuilder) FromRequest(w http.ResponseWriter, r *http.Request) auth.Evidence {
	return b.build(w, r, shared.SessionFromContext(r.Context()))
}

// Reload re-reads the session from the store so a recheck observes writes made
// by concurrent requests since the middleware loaded it.
func (b *EvidenceBuilder) Reload(ctx context.Context, w http.ResponseWriter, r *http.Request) (auth.Evidence, error) {
	if b.sessions == nil {
		return b.FromRequest(w, r), nil
	}
	sess, err := b.sessions.Load(ctx, r)
	if err != nil {
		return auth.Evidence{}, err
	}
	if current := shared.SessionFromContext(r.Context()); current != nil && sess.User() != "" && current.User() == "" {
		current.SetUser(sess.User())
		if id := sess.Get(shared.AuthSessionKey); id != "" {
			current.Set(shared.AuthSessionKey, id)
		}
		sess = current
	}
	return b.build(w, r, sess), nil
}

func (b *EvidenceBuilder) build(w http.ResponseWriter, r *http.Request, sess *shared.Session) auth.Evidence {
	ev := auth.Evidence{BearerToken: BearerToken(r)}
	if b.provider != nil {
		ev.Sessions = auth.NewCookieSessions(b.provider, sess, w, r, b.refresh)
	}
	if b.trusted != nil {
		ev.TrustedPrincipal = b.trusted.Read(r)
	}
	return ev
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
