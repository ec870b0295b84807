package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "jurnal", time.Minute)
	p := Principal{ID: uuid.New(), Email: "a@example.org"}

	raw, expiresAt, err := issuer.Issue(p)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expiresAt, 2*time.Second)

	id, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, p.ID, id)
}

func TestTokenIssuerParseFailures(t *testing.T) {
	issuer := NewTokenIssuer("secret", "jurnal", time.Minute)
	raw, _, err := issuer.Issue(Principal{ID: uuid.New()})
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func() (*TokenIssuer, string)
		code  Code
	}{
		{"empty", func() (*TokenIssuer, string) { return issuer, "" }, CodeTokenMissing},
		{"garbage", func() (*TokenIssuer, string) { return issuer, "not-a-jwt" }, CodeTokenInvalid},
		{"wrong key", func() (*TokenIssuer, string) {
			return NewTokenIssuer("other", "jurnal", time.Minute), raw
		}, CodeTokenInvalid},
		{"wrong issuer", func() (*TokenIssuer, string) {
			return NewTokenIssuer("secret", "elsewhere", time.Minute), raw
		}, CodeTokenInvalid},
		{"expired", func() (*TokenIssuer, string) {
			late := NewTokenIssuer("secret", "jurnal", time.Minute)
			late.now = func() time.Time { return time.Now().Add(time.Hour) }
			return late, raw
		}, CodeTokenExpired},
		{"none alg", func() (*TokenIssuer, string) {
			tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
				Issuer:    "jurnal",
				Subject:   uuid.NewString(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			})
			s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return issuer, s
		}, CodeTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, token := tt.setup()
			_, err := parser.Parse(token)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}
}
