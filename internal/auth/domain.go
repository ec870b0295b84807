package auth

import (
	"time"

	"github.com/google/uuid"
)

// Source records which piece of evidence resolved a principal.
type Source string

const (
	SourceBearer           Source = "bearer"
	SourceSession          Source = "session"
	SourceRefreshedSession Source = "refreshed_session"
	SourceTrustedCookie    Source = "trusted_cookie"
)

// Principal is an authenticated identity. It is created and destroyed by the
// identity store; authorization code only reads it.
type Principal struct {
	ID             uuid.UUID
	Email          string
	EmailConfirmed bool
	Banned         bool
	Deleted        bool
	Source         Source
}

// TokenDerived reports whether the principal came from a bearer token rather
// than browser cookies.
func (p Principal) TokenDerived() bool {
	return p.Source == SourceBearer
}

// Disabled reports whether the principal may not sign in.
func (p Principal) Disabled() bool {
	return p.Banned || p.Deleted
}

// UserRecord mirrors a row of the users table.
type UserRecord struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	BannedUntil      *time.Time
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Principal converts the record, evaluating the ban window at now.
func (u UserRecord) Principal(now time.Time) Principal {
	return Principal{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != nil,
		Banned:         u.BannedUntil != nil && u.BannedUntil.After(now),
		Deleted:        u.DeletedAt != nil,
	}
}

// SessionRecord mirrors a row of auth_sessions. Refresh tokens are stored hashed.
type SessionRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	RefreshHash  string
	PreviousHash string
	RotatedAt    *time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time
	CreatedAt    time.Time
}

// Active reports whether the session can still be refreshed at now.
func (s SessionRecord) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// TokenPair is returned to API clients by the password and refresh grants.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token"`
	UserID       uuid.UUID `json:"user_id"`
}

// Refreshed is the outcome of a successful refresh-token rotation.
type Refreshed struct {
	SessionID    uuid.UUID
	UserID       uuid.UUID
	RefreshToken string
	ExpiresAt    time.Time
}
