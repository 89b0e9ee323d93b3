package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.ServerPort)
	require.Equal(t, StoreFile, cfg.DurableStore)
	require.Equal(t, StoreMemory, cfg.SessionStore)
	require.Equal(t, 5, cfg.LockoutThreshold)
	require.Equal(t, 15*time.Minute, cfg.LockoutWindow)
	require.Equal(t, 5*time.Minute, cfg.LockoutDuration)
	require.Equal(t, 15*time.Minute, cfg.IdleTimeout)
	require.Equal(t, 60*time.Second, cfg.IdleCheckInterval)
	require.Equal(t, time.Second, cfg.ActivityThrottle)
	require.Equal(t, HashLegacy, cfg.PasswordHashScheme)
	require.Equal(t, 4*time.Second, cfg.CatalogTimeout)
	require.Equal(t, 6*time.Hour, cfg.CatalogCacheTTL)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("DURABLE_STORE", "SQLite")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("IDLE_TIMEOUT", "5m")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CATALOG_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, StoreSQLite, cfg.DurableStore)
	require.Equal(t, 3, cfg.LockoutThreshold)
	require.Equal(t, 5*time.Minute, cfg.IdleTimeout)
	require.True(t, cfg.CookieSecure)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.Equal(t, 4*time.Second, cfg.CatalogTimeout)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")

	base, err := Load()
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"missing secret":       func(c *Config) { c.TokenSecret = " " },
		"unknown store":        func(c *Config) { c.DurableStore = "s3" },
		"postgres without url": func(c *Config) { c.DurableStore = StorePostgres; c.DatabaseURL = "" },
		"session store":        func(c *Config) { c.SessionStore = StoreSQLite },
		"zero threshold":       func(c *Config) { c.LockoutThreshold = 0 },
		"hash scheme":          func(c *Config) { c.PasswordHashScheme = "md5" },
		"idle timeout":         func(c *Config) { c.IdleTimeout = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
