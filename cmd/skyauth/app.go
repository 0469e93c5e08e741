package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/internal/config"
	"github.com/MrEthical07/skyAuth/internal/logger"
	"github.com/MrEthical07/skyAuth/store/memory"
	"github.com/MrEthical07/skyAuth/store/postgres"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg    *config.Config
	log    *zap.Logger
	redis  redis.UniversalClient
	users  skyAuth.UserProvider
	engine *skyAuth.Engine

	closers []func()
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logger.New(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "skyauth",
		Version:     version,
	})
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (skyAuth.UserProvider, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Storage.DSN, postgres.Options{
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: config.Duration(cfg.Storage.Postgres.ConnMaxLifetime),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return pg, pg.Close, nil
	default:
		mem := memory.New()
		for _, u := range cfg.Storage.Seed {
			id, err := mem.AddUser(skyAuth.UserRecord{
				Identifier:   u.Identifier,
				DisplayName:  u.DisplayName,
				PasswordHash: u.PasswordHash,
				Roles:        u.Roles,
			})
			if err != nil {
				return nil, nil, fmt.Errorf("seed %s: %w", u.Identifier, err)
			}
			log.Info("seeded user", zap.String("identifier", u.Identifier), logger.UserID(id))
		}
		return mem, func() {}, nil
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: newLogger(cfg)}

	engineCfg, err := cfg.Engine()
	if err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}

	a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, func() { _ = a.redis.Close() })
	if err := a.redis.Ping(ctx).Err(); err != nil {
		a.close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
	}

	users, closeStore, err := openStore(ctx, cfg, a.log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.users = users
	a.closers = append(a.closers, closeStore)

	builder := skyAuth.New().
		WithConfig(engineCfg).
		WithRedis(a.redis).
		WithUserProvider(users).
		WithLogger(a.log)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(skyAuth.NewZapSink(a.log.Named("audit")))
	}
	a.engine, err = builder.Build()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	a.closers = append(a.closers, a.engine.Close)
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}
