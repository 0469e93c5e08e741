package skyAuth

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth/internal/audit"
	"github.com/MrEthical07/skyAuth/internal/flows"
	"github.com/MrEthical07/skyAuth/internal/rate"
	"github.com/MrEthical07/skyAuth/internal/stores"
	"github.com/MrEthical07/skyAuth/jwt"
	"github.com/MrEthical07/skyAuth/password"
)

// Builder assembles an Engine. Configure it during initialization; Build may
// be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	auditSink    AuditSink
	log          *zap.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing pending challenges and, with the redis
// backend, rate counters. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithAuditSink sets the security-event sink. Events reach it only when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for operational messages. Security events go
// through the audit sink, not here.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithClock replaces the time source of every engine component.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		log:          log,
		now:          now,
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm.WithClock(now)

	// -------- PASSWORDS --------
	hasher, err := password.NewHasher(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = hasher

	// Unknown identifiers are verified against this so they cost the same
	// as a wrong password.
	dummy, err := hasher.Hash(fmt.Sprintf("skyauth-dummy-%d", now().UnixNano()))
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	// -------- SECOND FACTOR --------
	engine.totp = newTOTPManager(cfg.TwoFactor)
	engine.challenges = stores.NewChallengeStore(b.redis, cfg.TwoFactor.ChallengeRedisPrefix, now)

	// -------- RATE LIMITS --------
	switch cfg.RateLimit.Backend {
	case "memory":
		engine.limiter = rate.NewMemoryLimiter().WithClock(now)
	default:
		engine.limiter = rate.NewRedisLimiter(b.redis, cfg.RateLimit.KeyPrefix).WithClock(now)
	}
	lockoutCfg := rate.LockoutConfig{
		Enabled:   cfg.Security.AutoLockoutEnabled,
		Threshold: cfg.Security.AutoLockoutThreshold,
		Window:    cfg.Security.AutoLockoutWindow,
	}
	if lockoutCfg.Enabled {
		if cfg.RateLimit.Backend == "memory" {
			engine.lockout = rate.NewMemoryLockout(lockoutCfg)
		} else {
			engine.lockout = rate.NewRedisLockout(b.redis, cfg.Security.LockoutKeyPrefix, lockoutCfg)
		}
	}
	engine.policies = map[string]rate.Policy{
		flows.PolicyGeneral:   {Name: flows.PolicyGeneral, Limit: cfg.RateLimit.General.Limit, Window: cfg.RateLimit.General.Window},
		flows.PolicyAuth:      {Name: flows.PolicyAuth, Limit: cfg.RateLimit.Auth.Limit, Window: cfg.RateLimit.Auth.Window},
		flows.PolicyAdminAuth: {Name: flows.PolicyAdminAuth, Limit: cfg.RateLimit.AdminAuth.Limit, Window: cfg.RateLimit.AdminAuth.Window},
	}

	// -------- OBSERVABILITY --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, log)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true
	return engine, nil
}
