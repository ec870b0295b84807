package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrustedCookie manages the signed "last authorized principal" cookie. It is
// written only after a full authorization succeeded and lets a later request
// recover the principal when its session cookie has not caught up yet.
type TrustedCookie struct {
	name   string
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewTrustedCookie constructs a TrustedCookie.
func NewTrustedCookie(name, secret string, ttl time.Duration, secure bool) *TrustedCookie {
	return &TrustedCookie{name: name, secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// Name returns the cookie name.
func (c *TrustedCookie) Name() string {
	return c.name
}

// Sign encodes id with an expiry and an HMAC-SHA256 signature.
func (c *TrustedCookie) Sign(id uuid.UUID) string {
	payload := id.String() + "." + strconv.FormatInt(c.now().Add(c.ttl).Unix(), 10)
	return payload + "." + c.mac(payload)
}

// Verify checks signature and expiry and returns the principal ID.
func (c *TrustedCookie) Verify(value string) (uuid.UUID, error) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 {
		return uuid.Nil, newError(CodeCookieInvalid, "malformed trusted cookie", nil)
	}
	payload, sig := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(c.mac(payload))) {
		return uuid.Nil, newError(CodeCookieInvalid, "trusted cookie signature mismatch", nil)
	}
	rawID, rawExp, ok := strings.Cut(payload, ".")
	if !ok {
		return uuid.Nil, newError(CodeCookieInvalid, "malformed trusted cookie", nil)
	}
	exp, err := strconv.ParseInt(rawExp, 10, 64)
	if err != nil {
		return uuid.Nil, newError(CodeCookieInvalid, "malformed trusted cookie expiry", err)
	}
	if !c.now().Before(time.Unix(exp, 0)) {
		return uuid.Nil, newError(CodeCookieInvalid, "trusted cookie expired", nil)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, newError(CodeCookieInvalid, "malformed trusted cookie subject", err)
	}
	return id, nil
}

// Read returns the raw cookie value from r, or "".
func (c *TrustedCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Write sets the cookie for id.
func (c *TrustedCookie) Write(w http.ResponseWriter, id uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    c.Sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(c.ttl.Seconds()),
	})
}

// Clear expires the cookie.
func (c *TrustedCookie) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *TrustedCookie) mac(payload string) string {
	m := hmac.New(sha256.New, c.secret)
	_, _ = m.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(m.Sum(nil))
}
