package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"

	"github.com/pmo-suite/change-request-service/internal/audit"
	"github.com/pmo-suite/change-request-service/internal/cache"
	"github.com/pmo-suite/change-request-service/internal/config"
	"github.com/pmo-suite/change-request-service/internal/server"
	"github.com/pmo-suite/change-request-service/internal/service"
	"github.com/pmo-suite/change-request-service/internal/tracing"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := cfg.Logger()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.WithError(err).Warn("tracer shutdown error")
		}
	}()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	readCache, limiterStore, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	recorder := audit.NewRecorder(store, readCache, logger)
	svc := service.New(store, logger,
		service.WithCache(readCache, cfg.CacheTTL),
		service.WithNotifier(recorder),
	)

	router, err := server.NewRouter(server.Options{
		Service:      svc,
		Logger:       logger,
		CORSOrigins:  cfg.CORSOrigins,
		RateLimit:    cfg.RateLimit,
		LimiterStore: limiterStore,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("HTTP shutdown error")
		}
	}()

	logger.WithField("addr", cfg.Addr()).Info("change request service listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// openCache returns the read-model cache and, for redis, a limiter store sharing its client.
func openCache(ctx context.Context, cfg config.Config, logger *logrus.Logger) (cache.Cache, limiter.Store, func(), error) {
	if cfg.CacheBackend != config.CacheRedis {
		return cache.NewMemory(), nil, func() {}, nil
	}
	rc, err := cache.NewRedisFromURL(ctx, cfg.RedisURL, "crs:")
	if err != nil {
		return nil, nil, nil, err
	}
	var store limiter.Store
	if cfg.RateLimit.Enabled {
		if store, err = server.NewLimiterStore(rc.Client()); err != nil {
			logger.WithError(err).Warn("redis limiter store unavailable, falling back to memory")
			store = nil
		}
	}
	return rc, store, func() { _ = rc.Close() }, nil
}
