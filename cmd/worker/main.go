package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/chiffre-app/chiffre/internal/app"
	"github.com/chiffre-app/chiffre/internal/contrib"
	"github.com/chiffre-app/chiffre/internal/enterprise"
	"github.com/chiffre-app/chiffre/internal/observability"
	"github.com/chiffre-app/chiffre/internal/platform/db"
	"github.com/chiffre-app/chiffre/internal/rates"
	"github.com/chiffre-app/chiffre/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	ratesRepo := rates.NewRepository(pool)
	rateStore := rates.NewStore(ratesRepo)

	enterpriseRepo := enterprise.NewRepository(pool)
	syncService := enterprise.NewSyncService(enterpriseRepo, rateStore, logger)
	rateStore.WithPropagator(syncService)

	contribRepo := contrib.NewRepository(pool)
	contribService := contrib.NewService(contribRepo, enterpriseRepo, rateStore)

	metrics := observability.NewMetrics()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskContribRefresh, Handler: jobs.HandleContribRefresh(logger, contribService, metrics)},
			{Type: jobs.TaskRatesPropagate, Handler: jobs.HandleRatesPropagate(logger, rateStore, metrics)},
		},
		Cron: []jobs.CronRegistration{
			// Refresh every period shortly after midnight so the first read of
			// the day already sees current numbers.
			{Spec: "15 0 * * *", Task: jobs.NewContribRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 0 * * *", Task: jobs.NewRatesPropagateTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
