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

	"golang.org/x/sync/errgroup"

	"github.com/chiffre-app/chiffre/internal/app"
	"github.com/chiffre-app/chiffre/internal/auth"
	"github.com/chiffre-app/chiffre/internal/contrib"
	"github.com/chiffre-app/chiffre/internal/enterprise"
	"github.com/chiffre-app/chiffre/internal/observability"
	"github.com/chiffre-app/chiffre/internal/platform/cache"
	"github.com/chiffre-app/chiffre/internal/platform/db"
	"github.com/chiffre-app/chiffre/internal/rates"
	"github.com/chiffre-app/chiffre/internal/shared"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService)

	ratesRepo := rates.NewRepository(pool)
	rateStore := rates.NewStore(ratesRepo)

	enterpriseRepo := enterprise.NewRepository(pool)
	syncService := enterprise.NewSyncService(enterpriseRepo, rateStore, logger)
	rateStore.WithPropagator(syncService)
	enterpriseService := enterprise.NewService(enterpriseRepo, syncService)
	enterpriseHandler := enterprise.NewHandler(logger, enterpriseService)

	contribRepo := contrib.NewRepository(pool)
	contribService := contrib.NewService(contribRepo, enterpriseRepo, rateStore)
	contribHandler := contrib.NewHandler(logger, contribService)

	ratesHandler := rates.NewHandler(logger, rateStore)
	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		AuthHandler:       authHandler,
		EnterpriseHandler: enterpriseHandler,
		ContribHandler:    contribHandler,
		RatesHandler:      ratesHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
