package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/traceline-scm/traceline/internal/app"
	jobmetrics "github.com/traceline-scm/traceline/internal/jobs"
	"github.com/traceline-scm/traceline/internal/notify"
	"github.com/traceline-scm/traceline/internal/observability"
	"github.com/traceline-scm/traceline/internal/platform/cache"
	"github.com/traceline-scm/traceline/internal/platform/db"
	"github.com/traceline-scm/traceline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var sink notify.Sink
	switch cfg.NotifySink {
	case app.NotifySinkWebhook:
		sink = notify.NewWebhookSink(cfg.WebhookURL)
	default:
		sink = notify.NewLogSink(logger)
	}

	outboxRepo := notify.NewRepository(pool)
	dispatcher := notify.NewDispatcher(logger, outboxRepo, sink, redisClient, metrics, cfg.NotifyBatch)

	dispatchJob := jobs.NewDispatchJob(dispatcher, logger, jobMetrics)
	sweepJob := jobs.NewSweepJob(outboxRepo, queue, cfg.NotifySweepAge, logger, jobMetrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyDispatch, Handler: dispatchJob.Handle},
			{Type: jobs.TaskNotifySweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "* * * * *", Task: jobs.NewSweepTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker running", slog.String("sink", cfg.NotifySink))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
