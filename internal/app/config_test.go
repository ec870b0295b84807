package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "session-secret")
	t.Setenv("CSRF_SECRET", "csrf-secret")
	t.Setenv("JWT_SECRET", strings.Repeat("j", 32))
	t.Setenv("TRUSTED_COOKIE_SECRET", strings.Repeat("t", 32))
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 3, cfg.AuthzRecheckAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.AuthzRecheckStep)
	assert.Equal(t, "/auth/login", cfg.LoginPath)
	assert.Equal(t, "/welcome", cfg.LandingPath)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Empty(t, cfg.PGServiceDSN)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTHZ_RECHECK_ATTEMPTS", "5")
	t.Setenv("AUTHZ_RECHECK_STEP", "1s")
	t.Setenv("PG_SERVICE_DSN", "postgres://service@db/jurnal")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.AuthzRecheckAttempts)
	assert.Equal(t, time.Second, cfg.AuthzRecheckStep)
	assert.Equal(t, "postgres://service@db/jurnal", cfg.PGServiceDSN)
}

func TestLoadConfigRejectsWeakSecrets(t *testing.T) {
	cases := map[string]func(t *testing.T){
		"short jwt secret":       func(t *testing.T) { t.Setenv("JWT_SECRET", "short") },
		"trusted equals jwt":     func(t *testing.T) { t.Setenv("TRUSTED_COOKIE_SECRET", strings.Repeat("j", 32)) },
		"short trusted secret":   func(t *testing.T) { t.Setenv("TRUSTED_COOKIE_SECRET", "short") },
		"zero recheck attempts":  func(t *testing.T) { t.Setenv("AUTHZ_RECHECK_ATTEMPTS", "0") },
		"missing session secret": func(t *testing.T) { t.Setenv("SESSION_SECRET", "") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t)
			mutate(t)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
