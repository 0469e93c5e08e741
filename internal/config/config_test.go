package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/skyAuth/csrf"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "memory", c.Storage.Driver)
	require.Equal(t, 5, c.Rate.Auth.Limit)
	require.Equal(t, 15*time.Minute, Duration(c.Rate.Auth.Window))
	require.Equal(t, 3, c.Rate.AdminAuth.Limit)
	require.Equal(t, 30*time.Minute, Duration(c.Rate.AdminAuth.Window))
	require.Equal(t, "SkyAuth", c.TwoFactor.Issuer)
	require.True(t, c.CSRF.Secure)
	require.True(t, c.Security.TokenVersionCheck)
	require.Equal(t, []string{"admin"}, c.Security.AdminRoles)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := writeFile(t, "skyauth.yaml", `
server:
  addr: ":9000"
storage:
  driver: postgres
  dsn: postgres://sky@localhost/sky
rate:
  auth:
    limit: 7
csrf:
  same_site: strict
two_factor:
  issuer: Sky Airways
`)
	t.Setenv("SKYAUTH_RATE_AUTH_LIMIT", "4")
	t.Setenv("SKYAUTH_SERVER_ALLOWED_ORIGINS", "https://book.sky.example, https://crew.sky.example,")
	t.Setenv("SKYAUTH_CSRF_SAME_SITE", "LAX")
	t.Setenv("SKYAUTH_JWT_ACCESS_TTL", "not-a-duration")

	c, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":9000", c.Server.Addr)
	require.Equal(t, "postgres", c.Storage.Driver)
	require.Equal(t, 4, c.Rate.Auth.Limit)
	require.Equal(t, "15m0s", c.Rate.Auth.Window)
	require.Equal(t, []string{"https://book.sky.example", "https://crew.sky.example"}, c.Server.AllowedOrigins)
	require.Equal(t, "lax", c.CSRF.SameSite)
	require.Equal(t, "Sky Airways", c.TwoFactor.Issuer)
	// Unparseable durations from the environment are ignored.
	require.Equal(t, "15m0s", c.JWT.AccessTTL)
}

func TestLoadRejects(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"postgres without dsn", "storage:\n  driver: postgres\n", "storage.dsn"},
		{"unknown driver", "storage:\n  driver: mongo\n", "unknown storage driver"},
		{"bad same site", "csrf:\n  same_site: sometimes\n", "same_site"},
		{"bad duration", "jwt:\n  access_ttl: soon\n", "jwt.access_ttl"},
		{"insecure cookie in prod", "app:\n  env: prod\ncsrf:\n  secure: false\n", "csrf.secure"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "c.yaml", tc.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestEngineConfigHS256(t *testing.T) {
	c := Default()
	c.JWT.SigningMethod = "hs256"
	c.JWT.Secret = strings.Repeat("k", 32)
	c.JWT.AccessTTL = "5m"
	c.Rate.Backend = "memory"
	c.Rate.General = RatePolicy{Limit: 50, Window: "1m"}

	cfg, err := c.Engine()
	require.NoError(t, err)
	require.Equal(t, "hs256", cfg.JWT.SigningMethod)
	require.Equal(t, 5*time.Minute, cfg.Tokens.AccessTTL)
	require.Equal(t, "memory", cfg.RateLimit.Backend)
	require.Equal(t, 50, cfg.RateLimit.General.Limit)
	require.Equal(t, time.Minute, cfg.RateLimit.General.Window)
	require.True(t, cfg.Security.EnableTokenVersionCheck)

	c.JWT.Secret = "short"
	_, err = c.Engine()
	require.Error(t, err)
}

func TestEngineConfigProdKeepsDriftToleranceAndLockout(t *testing.T) {
	c := Default()
	c.App.Env = "prod"
	c.JWT.SigningMethod = "hs256"
	c.JWT.Secret = strings.Repeat("k", 32)
	c.Security.Lockout.Threshold = 4
	c.Security.Lockout.Window = "30m"

	cfg, err := c.Engine()
	require.NoError(t, err)
	require.Equal(t, uint(1), cfg.TwoFactor.Skew)
	require.True(t, cfg.Security.AutoLockoutEnabled)
	require.Equal(t, 4, cfg.Security.AutoLockoutThreshold)
	require.Equal(t, 30*time.Minute, cfg.Security.AutoLockoutWindow)

	c.TwoFactor.Skew = 2
	cfg, err = c.Engine()
	require.NoError(t, err)
	require.Equal(t, uint(2), cfg.TwoFactor.Skew)
}

func TestEngineConfigEd25519Files(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	c := Default()
	c.JWT.PrivateKeyFile = writeFile(t, "priv.key", string(priv))
	c.JWT.PublicKeyFile = writeFile(t, "pub.key", string(pub))

	cfg, err := c.Engine()
	require.NoError(t, err)
	require.Equal(t, []byte(priv), cfg.JWT.PrivateKey)
	require.Equal(t, []byte(pub), cfg.JWT.PublicKey)

	c.JWT.PublicKeyFile = ""
	_, err = c.Engine()
	require.ErrorContains(t, err, "jwt public key")
}

func TestCSRFConfigOverlay(t *testing.T) {
	c := Default()
	c.CSRF.CookieName = "sky_csrf"
	c.CSRF.SameSite = "lax"
	c.CSRF.Secure = false
	c.CSRF.Domain = "sky.example"

	got := c.CSRFConfig(csrf.DefaultConfig())
	require.Equal(t, "sky_csrf", got.CookieName)
	require.Equal(t, http.SameSiteLaxMode, got.SameSite)
	require.False(t, got.Secure)
	require.Equal(t, "sky.example", got.Domain)
	require.Equal(t, "X-CSRF-Token", got.HeaderName)
}
