package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jurnal-press/jurnal/internal/shared"
)

// ServiceConfig tunes session lifetimes.
type ServiceConfig struct {
	RefreshTTL time.Duration
	// RotationGrace is how long a rotated-out refresh token is recognised as a
	// lost race with a concurrent refresh rather than a stale credential.
	RotationGrace time.Duration
}

// Service is the identity store: password sign-in, refresh-token sessions and
// bearer access tokens.
type Service struct {
	repo   Repository
	admin  UserFinder
	tokens *TokenIssuer
	cfg    ServiceConfig
	now    func() time.Time
}

// NewService constructs a Service. admin must read through the elevated pool.
func NewService(repo Repository, admin UserFinder, tokens *TokenIssuer, cfg ServiceConfig) *Service {
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	if cfg.RotationGrace <= 0 {
		cfg.RotationGrace = 30 * time.Second
	}
	if admin == nil {
		admin = repo
	}
	return &Service{repo: repo, admin: admin, tokens: tokens, cfg: cfg, now: time.Now}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (Principal, error) {
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		return Principal{}, shared.ErrInvalidCredentials
	}
	p := user.Principal(s.now())
	if p.Disabled() || user.PasswordHash == "" {
		return Principal{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Principal{}, shared.ErrInvalidCredentials
	}
	return p, nil
}

// StartSession opens a refresh-token session for userID.
func (s *Service) StartSession(ctx context.Context, userID uuid.UUID, ip, ua string) (Refreshed, error) {
	token, err := newRefreshToken()
	if err != nil {
		return Refreshed{}, err
	}
	now := s.now().UTC()
	rec := SessionRecord{
		ID:          uuid.New(),
		UserID:      userID,
		RefreshHash: hashToken(token),
		ExpiresAt:   now.Add(s.cfg.RefreshTTL),
		CreatedAt:   now,
	}
	if err := s.repo.CreateSession(ctx, rec, ip, ua); err != nil {
		return Refreshed{}, fmt.Errorf("auth: create session: %w", err)
	}
	return Refreshed{SessionID: rec.ID, UserID: userID, RefreshToken: token, ExpiresAt: rec.ExpiresAt}, nil
}

// RefreshSession rotates refreshToken and extends the session.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (Refreshed, error) {
	if refreshToken == "" {
		return Refreshed{}, newError(CodeSessionMissing, "refresh token missing", nil)
	}
	now := s.now().UTC()
	hash := hashToken(refreshToken)
	rec, err := s.repo.FindSessionByRefreshHash(ctx, hash)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Refreshed{}, s.classifyStaleToken(ctx, hash, now)
		}
		return Refreshed{}, fmt.Errorf("auth: load session: %w", err)
	}
	if !rec.Active(now) {
		return Refreshed{}, newError(CodeSessionExpired, "", nil)
	}
	next, err := newRefreshToken()
	if err != nil {
		return Refreshed{}, err
	}
	expiresAt := now.Add(s.cfg.RefreshTTL)
	if err := s.repo.RotateSession(ctx, rec.ID, hash, hashToken(next), expiresAt, now); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Refreshed{}, newError(CodeSessionNotPropagated, "refresh token rotated concurrently", nil)
		}
		return Refreshed{}, fmt.Errorf("auth: rotate session: %w", err)
	}
	return Refreshed{SessionID: rec.ID, UserID: rec.UserID, RefreshToken: next, ExpiresAt: expiresAt}, nil
}

func (s *Service) classifyStaleToken(ctx context.Context, hash string, now time.Time) error {
	prev, err := s.repo.FindSessionByPreviousHash(ctx, hash)
	if err != nil {
		return newError(CodeRefreshFailed, "unknown refresh token", nil)
	}
	if prev.Active(now) && prev.RotatedAt != nil && now.Sub(*prev.RotatedAt) <= s.cfg.RotationGrace {
		return newError(CodeSessionNotPropagated, "refresh token rotated by a concurrent request", nil)
	}
	return newError(CodeRefreshFailed, "refresh token reused", nil)
}

// EndSession revokes the auth session.
func (s *Service) EndSession(ctx context.Context, sessionID uuid.UUID) error {
	if sessionID == uuid.Nil {
		return nil
	}
	return s.repo.RevokeSession(ctx, sessionID, s.now().UTC())
}

// IssueTokens builds the API token pair for p and session.
func (s *Service) IssueTokens(p Principal, session Refreshed) (TokenPair, error) {
	access, expiresAt, err := s.tokens.Issue(p)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		RefreshToken: session.RefreshToken,
		UserID:       p.ID,
	}, nil
}

// VerifyAccessToken resolves the principal named by a bearer token.
func (s *Service) VerifyAccessToken(ctx context.Context, token string) (Principal, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return Principal{}, err
	}
	return s.load(ctx, s.repo, id)
}

// UserByID loads the principal referenced by a cookie session.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	return s.load(ctx, s.repo, id)
}

// AdminUserByID loads a principal through the elevated directory, bypassing
// session validation.
func (s *Service) AdminUserByID(ctx context.Context, id uuid.UUID) (Principal, error) {
	return s.load(ctx, s.admin, id)
}

func (s *Service) load(ctx context.Context, finder UserFinder, id uuid.UUID) (Principal, error) {
	user, err := finder.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Principal{}, newError(CodeUserNotFound, "", nil)
		}
		return Principal{}, fmt.Errorf("auth: load user: %w", err)
	}
	p := user.Principal(s.now())
	if p.Disabled() {
		return Principal{}, &Error{Code: CodeUserDisabled, Status: http.StatusForbidden}
	}
	return p, nil
}

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: refresh token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
