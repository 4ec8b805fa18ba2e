package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/traceline-scm/traceline/internal/app"
	"github.com/traceline-scm/traceline/internal/auth"
	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/observability"
	"github.com/traceline-scm/traceline/internal/ownership"
	"github.com/traceline-scm/traceline/internal/platform/cache"
	"github.com/traceline-scm/traceline/internal/platform/db"
	"github.com/traceline-scm/traceline/internal/product"
	"github.com/traceline-scm/traceline/internal/registry"
	"github.com/traceline-scm/traceline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	outbox := notify.NewOutbox()

	queue := jobs.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService)

	ownershipRepo := ownership.NewRepository(pool, outbox)
	ownershipService := ownership.NewService(logger, ownershipRepo, queue)
	ownershipHandler := ownership.NewHandler(logger, ownershipService)

	roleCache := registry.NewCache(redisClient, 10*time.Minute)
	registryRepo := registry.NewRepository(pool, outbox)
	registryService := registry.NewService(logger, registryRepo, roleCache, ownershipService, queue)
	registryHandler := registry.NewHandler(logger, registryService)

	engine := product.NewEngine(product.BuyerPolicy(cfg.BuyerPolicy))
	productRepo := product.NewRepository(pool, outbox)
	productService := product.NewService(logger, productRepo, registryService, ownershipService, engine, metrics, queue)
	productHandler := product.NewHandler(logger, productService)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AuthHandler:      authHandler,
		RegistryHandler:  registryHandler,
		OwnershipHandler: ownershipHandler,
		ProductHandler:   productHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening",
			slog.String("addr", cfg.AppAddr),
			slog.String("buyer_policy", cfg.BuyerPolicy))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
