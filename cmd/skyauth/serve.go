package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/skyAuth/csrf"
	"github.com/MrEthical07/skyAuth/httpapi"
	"github.com/MrEthical07/skyAuth/internal/config"
	"github.com/MrEthical07/skyAuth/metrics/export/prometheus"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	routerCfg := httpapi.Config{
		Engine:       a.engine,
		CSRF:         csrf.New(cfg.CSRFConfig(httpapi.DefaultCSRFConfig())),
		Logger:       a.log,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		TrustProxy:   cfg.Server.TrustProxy,
		AdminRoles:   cfg.Security.AdminRoles,
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus {
		routerCfg.Metrics = prometheus.Handler(prometheus.NewCollector(a.engine))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.NewRouter(routerCfg),
		ReadTimeout:  config.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: config.Duration(cfg.Server.WriteTimeout),
	}

	report := a.engine.SecurityReport()
	a.log.Info("security posture",
		zap.String("signing", report.SigningAlgorithm),
		zap.Duration("access_ttl", report.AccessTTL),
		zap.Duration("refresh_ttl", report.RefreshTTL),
		zap.Bool("token_version_check", report.TokenVersionCheck),
		zap.Bool("audit", report.AuditEnabled),
		zap.Bool("auto_lockout", report.AutoLockout.Enabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("rate_backend", cfg.Rate.Backend),
			zap.Strings("allowed_origins", cfg.Server.AllowedOrigins),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout))
		defer cancel()
		a.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
