package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeeper/pkg/rbacsdk"
	"github.com/aussiebroadwan/gatekeeper/pkg/slogx"
)

// withLimits fills the rate limit fields of a hand-built Config.
func withLimits(cfg Config, strict, other int) Config {
	cfg.RateLimitStrictRequests, cfg.RateLimitStrictBurst, cfg.RateLimitStrictWindowSec = strict, strict, 60
	cfg.RateLimitModerateRequests, cfg.RateLimitModerateBurst, cfg.RateLimitModerateWindowSec = other, other, 60
	cfg.RateLimitLenientRequests, cfg.RateLimitLenientBurst, cfg.RateLimitLenientWindowSec = other, other, 60
	cfg.RateLimitPublicRequests, cfg.RateLimitPublicBurst, cfg.RateLimitPublicWindowSec = other, other, 60
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "DATABASE_DRIVER", "TOKEN_ALGORITHM", "ACCESS_TOKEN_EXPIRE_SECONDS", "BOOTSTRAP_TOKEN",
		"RATELIMIT_STRICT_REQUESTS", "RATELIMIT_STRICT_WINDOW_SEC", "RATELIMIT_STRICT_BURST",
	} {
		t.Setenv(k, "x")
		require.NoError(t, os.Unsetenv(k))
	}

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, "HS256", cfg.TokenAlgorithm)
	require.Equal(t, 24*time.Hour, cfg.AccessTokenTTL())
	require.Empty(t, cfg.BootstrapToken)
	require.Equal(t, httpx.DefaultRateLimits(), cfg.RateLimits())
}

func TestLoadConfigRateLimitsFromDotenv(t *testing.T) {
	for _, k := range []string{"RATELIMIT_STRICT_REQUESTS", "RATELIMIT_STRICT_WINDOW_SEC", "RATELIMIT_STRICT_BURST"} {
		t.Setenv(k, "x")
		require.NoError(t, os.Unsetenv(k))
	}

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"RATELIMIT_STRICT_REQUESTS=999\nRATELIMIT_STRICT_WINDOW_SEC=30\nRATELIMIT_STRICT_BURST=50\n",
	), 0o600))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	require.Equal(t, httpx.RateLimitConfig{RequestsPerWindow: 999, Window: 30 * time.Second, Burst: 50}, cfg.RateLimits().Strict)
	require.Equal(t, httpx.DefaultRateLimits().Moderate, cfg.RateLimits().Moderate)
}

func TestLoadConfigDotenv(t *testing.T) {
	t.Setenv("TOKEN_ISSUER", "x")
	require.NoError(t, os.Unsetenv("TOKEN_ISSUER"))
	t.Setenv("PORT", "9090")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TOKEN_ISSUER=from-file\nPORT=1234\n"), 0o600))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.TokenIssuer)
	// The environment wins over the file.
	require.Equal(t, 9090, cfg.Port)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := withLimits(Config{
		Port:                     8080,
		DatabaseDriver:           "sqlite",
		DatabaseFile:             "gatekeeper.db",
		TokenAlgorithm:           "HS256",
		AccessTokenExpireSeconds: 60,
	}, 5, 20)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, "DATABASE_DRIVER"},
		{"postgres without url", func(c *Config) { c.DatabaseDriver = "postgres" }, "DATABASE_URL"},
		{"short secret", func(c *Config) { c.SecretKey = "short" }, "SECRET_KEY"},
		{"unknown algorithm", func(c *Config) { c.TokenAlgorithm = "RS256" }, "TOKEN_ALGORITHM"},
		{"zero ttl", func(c *Config) { c.AccessTokenExpireSeconds = 0 }, "ACCESS_TOKEN_EXPIRE_SECONDS"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "PORT"},
		{"zero burst", func(c *Config) { c.RateLimitPublicBurst = 0 }, "RATELIMIT_PUBLIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitTokenKeys(t *testing.T) {
	for _, alg := range []string{"HS256", "EdDSA"} {
		t.Run(alg, func(t *testing.T) {
			cfg := Config{
				TokenAlgorithm: alg,
				SigningKeyFile: filepath.Join(t.TempDir(), "signing.key"),
				TokenIssuer:    "gatekeeper",
			}
			signer, verifier, err := InitTokenKeys(cfg, slogx.Discard())
			require.NoError(t, err)
			require.Equal(t, alg, signer.Alg())

			token, err := signer.Sign(jwtx.NewAccessClaims("user-1", "a@example.com", "Admin", "gatekeeper", time.Minute, time.Now()))
			require.NoError(t, err)

			claims, err := verifier.Verify(token)
			require.NoError(t, err)
			require.Equal(t, "user-1", claims.Subject)
			require.Equal(t, "Admin", claims.Role)
		})
	}

	t.Run("EdDSA key survives a restart", func(t *testing.T) {
		cfg := Config{
			TokenAlgorithm: "EdDSA",
			SigningKeyFile: filepath.Join(t.TempDir(), "signing.key"),
			TokenIssuer:    "gatekeeper",
		}
		signer, _, err := InitTokenKeys(cfg, slogx.Discard())
		require.NoError(t, err)
		token, err := signer.Sign(jwtx.NewAccessClaims("user-1", "", "", "gatekeeper", time.Minute, time.Now()))
		require.NoError(t, err)

		_, verifier, err := InitTokenKeys(cfg, slogx.Discard())
		require.NoError(t, err)
		_, err = verifier.Verify(token)
		require.NoError(t, err)
	})
}

func testAppConfig(t *testing.T, strictLimit int) Config {
	dir := t.TempDir()
	return withLimits(Config{
		Port:                     8080,
		Env:                      "test",
		LogLevel:                 "error",
		LogFormat:                "text",
		ShutdownGracePeriod:      time.Second,
		DatabaseDriver:           "sqlite",
		DatabaseFile:             filepath.Join(dir, "gatekeeper.db"),
		PepperFile:               filepath.Join(dir, "pepper"),
		TokenAlgorithm:           "HS256",
		AccessTokenExpireSeconds: 60,
		TokenIssuer:              "gatekeeper",
	}, strictLimit, 1000)
}

func TestApplicationServes(t *testing.T) {
	cfg := testAppConfig(t, 50)

	application, err := New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)
	client := rbacsdk.NewClient(srv.URL)

	ready, err := client.Readyz(t.Context())
	require.NoError(t, err)
	require.Equal(t, "absent", ready.Checks.SuperAdmin)

	created, err := application.SuperAdmin().Initialize(t.Context(), "", domain.SuperAdminInit{
		Email:    "root@example.com",
		Password: "rootpassword",
	})
	require.NoError(t, err)
	require.Equal(t, "root", created.Name)

	session, err := client.Login(t.Context(), "root@example.com", "rootpassword")
	require.NoError(t, err)
	me, err := session.Me(t.Context())
	require.NoError(t, err)
	require.Equal(t, domain.SuperAdminRoleName, me.Role.Name)

	resp, err := http.Get(srv.URL + "/livez")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApplicationAppliesConfiguredRateLimits(t *testing.T) {
	application, err := New(t.Context(), testAppConfig(t, 2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)
	client := rbacsdk.NewClient(srv.URL)

	for range 2 {
		_, err := client.Login(t.Context(), "nobody@example.com", "wrongpassword")
		require.True(t, rbacsdk.IsStatus(err, http.StatusUnauthorized), "got %v", err)
	}
	_, err = client.Login(t.Context(), "nobody@example.com", "wrongpassword")
	require.True(t, rbacsdk.IsStatus(err, http.StatusTooManyRequests), "got %v", err)
}
