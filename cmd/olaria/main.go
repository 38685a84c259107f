package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/olaria-erp/olaria/cmd/olaria/cli"
	"github.com/olaria-erp/olaria/internal/analytics"
	analyticsdb "github.com/olaria-erp/olaria/internal/analytics/db"
	"github.com/olaria-erp/olaria/internal/analytics/export"
	analytichttp "github.com/olaria-erp/olaria/internal/analytics/http"
	"github.com/olaria-erp/olaria/internal/app"
	"github.com/olaria-erp/olaria/internal/observability"
	"github.com/olaria-erp/olaria/internal/platform/cache"
	platformdb "github.com/olaria-erp/olaria/internal/platform/db"
	"github.com/olaria-erp/olaria/jobs"
	"github.com/olaria-erp/olaria/report"
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

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg)
	case "jobs":
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		err = jobsCLI.Run(ctx, args, os.Stdout)
		if closeErr := jobsCLI.Close(); closeErr != nil {
			logger.Warn("jobs cli close", slog.Any("error", closeErr))
		}
	default:
		err = fmt.Errorf("unknown command %q (want serve, migrate or jobs)", command)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config) error {
	pool, err := platformdb.New(ctx, cfg.PGDSN, platformdb.PoolOptions{ApplicationName: "olaria-migrate"})
	if err != nil {
		return err
	}
	defer pool.Close()
	return analyticsdb.ApplySchema(ctx, pool)
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := platformdb.New(ctx, cfg.PGDSN, platformdb.PoolOptions{
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGMaxConnLife,
		ApplicationName: "olaria",
	})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	var redisClient *redis.Client
	redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		// Reports still work without Redis; every request loads from Postgres.
		logger.Warn("redis unavailable, report cache disabled", slog.Any("error", err))
		redisClient = nil
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	var analyticsCache *analytics.Cache
	if redisClient != nil {
		analyticsCache = analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
		if err := analyticsCache.ListenForInvalidation(ctx, analytics.BumpChannel); err != nil {
			logger.Warn("subscribe cache invalidation", slog.Any("error", err))
		}
	}
	analyticsService := analytics.NewService(
		analyticsdb.NewStore(dbpool),
		analyticsCache,
		analytics.WithClock(analytics.SystemClock{Location: cfg.Location()}),
		analytics.WithLogger(logger),
		analytics.WithMetrics(analytics.NewMetrics(metrics.Registerer())),
		analytics.WithRankingLimit(cfg.RankingLimit),
	)

	gotenberg := report.NewClient(cfg.GotenbergURL)
	pdfExporter, err := export.NewPDFExporter(gotenberg)
	if err != nil {
		return fmt.Errorf("init pdf exporter: %w", err)
	}
	analyticsHandler := analytichttp.NewHandler(logger, analyticsService, pdfExporter, analytichttp.Options{
		Company: analytics.CompanyProfile{
			Name:     cfg.CompanyName,
			Document: cfg.CompanyDocument,
			City:     cfg.CompanyCity,
		},
		Location: cfg.Location(),
		Timeout:  cfg.ReportTimeout,
	})

	checks := map[string]app.Pinger{
		"postgres":  app.PingFunc(dbpool.Ping),
		"gotenberg": gotenberg,
	}
	var jobHandler *jobs.Handler
	if redisClient != nil {
		checks["redis"] = app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AnalyticsHandler: analyticsHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Checks:           checks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("timezone", cfg.ReportTimezone))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}
