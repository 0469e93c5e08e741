package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/csrf"
)

type RatePolicy struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// SeedUser is created at startup when the memory store is selected.
type SeedUser struct {
	Identifier   string   `yaml:"identifier"`
	DisplayName  string   `yaml:"display_name"`
	PasswordHash string   `yaml:"password_hash"`
	Roles        []string `yaml:"roles"`
}

type Config struct {
	App struct {
		// dev | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr            string   `yaml:"addr"`
		ReadTimeout     string   `yaml:"read_timeout"`
		WriteTimeout    string   `yaml:"write_timeout"`
		ShutdownTimeout string   `yaml:"shutdown_timeout"`
		MaxBodyBytes    int64    `yaml:"max_body_bytes"`
		TrustProxy      bool     `yaml:"trust_proxy"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int32  `yaml:"max_conns"`
			MinConns        int32  `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
		Seed []SeedUser `yaml:"seed"`
	} `yaml:"storage"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	JWT struct {
		// ed25519 | hs256
		SigningMethod  string `yaml:"signing_method"`
		PrivateKeyFile string `yaml:"private_key_file"`
		PublicKeyFile  string `yaml:"public_key_file"`
		Secret         string `yaml:"secret"`
		Issuer         string `yaml:"issuer"`
		Audience       string `yaml:"audience"`
		KeyID          string `yaml:"key_id"`
		AccessTTL      string `yaml:"access_ttl"`
		RefreshTTL     string `yaml:"refresh_ttl"`
		RememberMeTTL  string `yaml:"remember_me_ttl"`
	} `yaml:"jwt"`

	TwoFactor struct {
		Issuer       string `yaml:"issuer"`
		ChallengeTTL string `yaml:"challenge_ttl"`
		MaxAttempts  int    `yaml:"max_attempts"`
		// Skew is the number of adjacent 30s steps accepted (1 or 2).
		Skew uint `yaml:"skew"`
	} `yaml:"two_factor"`

	Rate struct {
		// redis | memory
		Backend   string     `yaml:"backend"`
		General   RatePolicy `yaml:"general"`
		Auth      RatePolicy `yaml:"auth"`
		AdminAuth RatePolicy `yaml:"admin_auth"`
	} `yaml:"rate"`

	CSRF struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		Secure     bool   `yaml:"secure"`
		// strict | lax | none
		SameSite string `yaml:"same_site"`
	} `yaml:"csrf"`

	Security struct {
		AdminRoles        []string `yaml:"admin_roles"`
		TokenVersionCheck bool     `yaml:"token_version_check"`
		Lockout           struct {
			Enabled   bool   `yaml:"enabled"`
			Threshold int    `yaml:"threshold"`
			Window    string `yaml:"window"`
		} `yaml:"lockout"`
	} `yaml:"security"`

	Audit struct {
		Enabled    bool `yaml:"enabled"`
		BufferSize int  `yaml:"buffer_size"`
	} `yaml:"audit"`

	Metrics struct {
		Enabled           bool `yaml:"enabled"`
		LatencyHistograms bool `yaml:"latency_histograms"`
		Prometheus        bool `yaml:"prometheus"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var c Config
	c.Server.TrustProxy = false
	c.CSRF.Secure = true
	c.Security.TokenVersionCheck = true
	c.Security.Lockout.Enabled = true
	c.Metrics.Enabled = true
	c.Metrics.Prometheus = true
	c.applyDefaults()
	return &c
}

// Load reads path (skipped when empty), fills defaults and applies the
// environment. Booleans whose zero value is not the default are only
// honoured from the file when the file sets them.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		c.applyDefaults()
	}
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "15s"
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 64 << 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	def := skyAuth.DefaultConfig()
	if c.JWT.SigningMethod == "" {
		c.JWT.SigningMethod = def.JWT.SigningMethod
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = def.JWT.Issuer
	}
	if c.JWT.AccessTTL == "" {
		c.JWT.AccessTTL = def.Tokens.AccessTTL.String()
	}
	if c.JWT.RefreshTTL == "" {
		c.JWT.RefreshTTL = def.Tokens.RefreshTTL.String()
	}
	if c.JWT.RememberMeTTL == "" {
		c.JWT.RememberMeTTL = def.Tokens.RememberMeRefreshTTL.String()
	}
	if c.TwoFactor.Issuer == "" {
		c.TwoFactor.Issuer = def.TwoFactor.Issuer
	}
	if c.TwoFactor.ChallengeTTL == "" {
		c.TwoFactor.ChallengeTTL = def.TwoFactor.ChallengeTTL.String()
	}
	if c.TwoFactor.MaxAttempts == 0 {
		c.TwoFactor.MaxAttempts = def.TwoFactor.ChallengeMaxAttempts
	}
	if c.TwoFactor.Skew == 0 {
		c.TwoFactor.Skew = def.TwoFactor.Skew
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = def.RateLimit.Backend
	}
	fillPolicy(&c.Rate.General, def.RateLimit.General)
	fillPolicy(&c.Rate.Auth, def.RateLimit.Auth)
	fillPolicy(&c.Rate.AdminAuth, def.RateLimit.AdminAuth)
	if c.CSRF.SameSite == "" {
		c.CSRF.SameSite = "strict"
	}
	if len(c.Security.AdminRoles) == 0 {
		c.Security.AdminRoles = append([]string(nil), def.Security.AdminRoles...)
	}
	if c.Security.Lockout.Threshold == 0 {
		c.Security.Lockout.Threshold = def.Security.AutoLockoutThreshold
	}
	if c.Security.Lockout.Window == "" {
		c.Security.Lockout.Window = def.Security.AutoLockoutWindow.String()
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
}

func fillPolicy(p *RatePolicy, def skyAuth.RatePolicyConfig) {
	if p.Limit == 0 {
		p.Limit = def.Limit
	}
	if p.Window == "" {
		p.Window = def.Window.String()
	}
}

// ---- env helpers ----

const envPrefix = "SKYAUTH_"

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (string, bool) {
	if s, ok := getEnvStr(key); ok {
		s = strings.TrimSpace(s)
		if _, err := time.ParseDuration(s); err == nil {
			return s, true
		}
	}
	return "", false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, true
}

func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}
	if v, ok := getEnvInt("SERVER_MAX_BODY_BYTES"); ok {
		c.Server.MaxBodyBytes = int64(v)
	}
	if v, ok := getEnvBool("SERVER_TRUST_PROXY"); ok {
		c.Server.TrustProxy = v
	}
	if v, ok := getEnvCSV("SERVER_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_PG_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = int32(v)
	}

	// REDIS
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Redis.DB = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_SIGNING_METHOD"); ok {
		c.JWT.SigningMethod = strings.ToLower(v)
	}
	if v, ok := getEnvStr("JWT_PRIVATE_KEY_FILE"); ok {
		c.JWT.PrivateKeyFile = v
	}
	if v, ok := getEnvStr("JWT_PUBLIC_KEY_FILE"); ok {
		c.JWT.PublicKeyFile = v
	}
	if v, ok := getEnvStr("JWT_SECRET"); ok {
		c.JWT.Secret = v
	}
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_AUDIENCE"); ok {
		c.JWT.Audience = v
	}
	if v, ok := getEnvDur("JWT_ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvDur("JWT_REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}
	if v, ok := getEnvDur("JWT_REMEMBER_ME_TTL"); ok {
		c.JWT.RememberMeTTL = v
	}

	// TWO FACTOR
	if v, ok := getEnvStr("TOTP_ISSUER"); ok {
		c.TwoFactor.Issuer = v
	}
	if v, ok := getEnvDur("TWO_FACTOR_CHALLENGE_TTL"); ok {
		c.TwoFactor.ChallengeTTL = v
	}
	if v, ok := getEnvInt("TWO_FACTOR_MAX_ATTEMPTS"); ok {
		c.TwoFactor.MaxAttempts = v
	}
	if v, ok := getEnvInt("TWO_FACTOR_SKEW"); ok && v > 0 {
		c.TwoFactor.Skew = uint(v)
	}

	// RATE
	if v, ok := getEnvStr("RATE_BACKEND"); ok {
		c.Rate.Backend = strings.ToLower(v)
	}
	envPolicy("RATE_GENERAL", &c.Rate.General)
	envPolicy("RATE_AUTH", &c.Rate.Auth)
	envPolicy("RATE_ADMIN_AUTH", &c.Rate.AdminAuth)

	// CSRF
	if v, ok := getEnvStr("CSRF_COOKIE_NAME"); ok {
		c.CSRF.CookieName = v
	}
	if v, ok := getEnvStr("CSRF_DOMAIN"); ok {
		c.CSRF.Domain = v
	}
	if v, ok := getEnvBool("CSRF_SECURE"); ok {
		c.CSRF.Secure = v
	}
	if v, ok := getEnvStr("CSRF_SAME_SITE"); ok {
		c.CSRF.SameSite = strings.ToLower(v)
	}

	// SECURITY
	if v, ok := getEnvCSV("ADMIN_ROLES"); ok && len(v) > 0 {
		c.Security.AdminRoles = v
	}
	if v, ok := getEnvBool("TOKEN_VERSION_CHECK"); ok {
		c.Security.TokenVersionCheck = v
	}
	if v, ok := getEnvBool("LOCKOUT_ENABLED"); ok {
		c.Security.Lockout.Enabled = v
	}
	if v, ok := getEnvInt("LOCKOUT_THRESHOLD"); ok {
		c.Security.Lockout.Threshold = v
	}
	if v, ok := getEnvDur("LOCKOUT_WINDOW"); ok {
		c.Security.Lockout.Window = v
	}

	// AUDIT / METRICS
	if v, ok := getEnvBool("AUDIT_ENABLED"); ok {
		c.Audit.Enabled = v
	}
	if v, ok := getEnvBool("METRICS_ENABLED"); ok {
		c.Metrics.Enabled = v
	}
	if v, ok := getEnvBool("METRICS_PROMETHEUS"); ok {
		c.Metrics.Prometheus = v
	}
}

func envPolicy(prefix string, p *RatePolicy) {
	if v, ok := getEnvInt(prefix + "_LIMIT"); ok {
		p.Limit = v
	}
	if v, ok := getEnvDur(prefix + "_WINDOW"); ok {
		p.Window = v
	}
}

// Validate checks the fields the process layer owns. Engine settings are
// validated again by skyAuth.Config.Validate.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := sameSite(c.CSRF.SameSite); err != nil {
		return err
	}
	if c.App.Env == "prod" && !c.CSRF.Secure {
		return errors.New("csrf.secure must be true in prod")
	}
	durations := map[string]string{
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"jwt.access_ttl":           c.JWT.AccessTTL,
		"jwt.refresh_ttl":          c.JWT.RefreshTTL,
		"jwt.remember_me_ttl":      c.JWT.RememberMeTTL,
		"two_factor.challenge_ttl": c.TwoFactor.ChallengeTTL,
		"rate.general.window":      c.Rate.General.Window,
		"rate.auth.window":         c.Rate.Auth.Window,
		"rate.admin_auth.window":   c.Rate.AdminAuth.Window,
		"security.lockout.window":  c.Security.Lockout.Window,
	}
	for name, raw := range durations {
		if _, err := time.ParseDuration(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	return nil
}

// Duration parses a field already checked by Validate.
func Duration(raw string) time.Duration {
	d, _ := time.ParseDuration(raw)
	return d
}

// Engine maps c onto the engine configuration. Key material is read from the
// configured files, or from the secret for hs256.
func (c *Config) Engine() (skyAuth.Config, error) {
	out := skyAuth.DefaultConfig()
	if c.App.Env == "prod" {
		out = skyAuth.HighSecurityConfig()
	}

	out.JWT.SigningMethod = c.JWT.SigningMethod
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	out.JWT.KeyID = c.JWT.KeyID
	switch c.JWT.SigningMethod {
	case "hs256":
		out.JWT.PrivateKey = []byte(c.JWT.Secret)
	default:
		priv, err := readKey(c.JWT.PrivateKeyFile)
		if err != nil {
			return skyAuth.Config{}, fmt.Errorf("jwt private key: %w", err)
		}
		pub, err := readKey(c.JWT.PublicKeyFile)
		if err != nil {
			return skyAuth.Config{}, fmt.Errorf("jwt public key: %w", err)
		}
		out.JWT.PrivateKey = priv
		out.JWT.PublicKey = pub
	}

	out.Tokens.AccessTTL = Duration(c.JWT.AccessTTL)
	out.Tokens.RefreshTTL = Duration(c.JWT.RefreshTTL)
	out.Tokens.RememberMeRefreshTTL = Duration(c.JWT.RememberMeTTL)

	out.TwoFactor.Issuer = c.TwoFactor.Issuer
	out.TwoFactor.ChallengeTTL = Duration(c.TwoFactor.ChallengeTTL)
	out.TwoFactor.ChallengeMaxAttempts = c.TwoFactor.MaxAttempts
	out.TwoFactor.Skew = c.TwoFactor.Skew

	out.RateLimit.Backend = c.Rate.Backend
	out.RateLimit.General = policy(c.Rate.General)
	out.RateLimit.Auth = policy(c.Rate.Auth)
	out.RateLimit.AdminAuth = policy(c.Rate.AdminAuth)

	out.Security.AdminRoles = append([]string(nil), c.Security.AdminRoles...)
	out.Security.EnableTokenVersionCheck = c.Security.TokenVersionCheck
	out.Security.AutoLockoutEnabled = c.Security.Lockout.Enabled
	out.Security.AutoLockoutThreshold = c.Security.Lockout.Threshold
	out.Security.AutoLockoutWindow = Duration(c.Security.Lockout.Window)
	out.Audit.Enabled = c.Audit.Enabled
	out.Audit.BufferSize = c.Audit.BufferSize
	out.Metrics.Enabled = c.Metrics.Enabled
	out.Metrics.EnableLatencyHistograms = c.Metrics.LatencyHistograms

	if err := out.Validate(); err != nil {
		return skyAuth.Config{}, err
	}
	return out, nil
}

// CSRFConfig applies the cookie settings on top of base.
func (c *Config) CSRFConfig(base csrf.Config) csrf.Config {
	if c.CSRF.CookieName != "" {
		base.CookieName = c.CSRF.CookieName
	}
	base.Domain = c.CSRF.Domain
	base.Secure = c.CSRF.Secure
	base.SameSite, _ = sameSite(c.CSRF.SameSite)
	return base
}

func policy(p RatePolicy) skyAuth.RatePolicyConfig {
	return skyAuth.RatePolicyConfig{Limit: p.Limit, Window: Duration(p.Window)}
}

func sameSite(raw string) (http.SameSite, error) {
	switch strings.ToLower(raw) {
	case "strict":
		return http.SameSiteStrictMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("csrf.same_site must be strict, lax or none, got %q", raw)
	}
}

func readKey(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("key file not configured")
	}
	return os.ReadFile(path)
}
