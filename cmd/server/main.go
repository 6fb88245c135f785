package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/PriyankaRani34/ai-usage-tracker/internal/config"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/db"
	aigrpc "github.com/PriyankaRani34/ai-usage-tracker/internal/grpc"
	internalhttp "github.com/PriyankaRani34/ai-usage-tracker/internal/http"
	"github.com/PriyankaRani34/ai-usage-tracker/internal/jobs"
)

func main() {
	cfg := config.Load()
	logger := slog.Make(sloghuman.Sink(os.Stderr))
	if cfg.LogLevel == "debug" {
		logger = logger.Leveled(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal(ctx, "migrations failed", slog.Error(err))
		}
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(ctx, "db connection failed", slog.Error(err))
	}
	defer pool.Close()
	store := db.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal(ctx, "redis ping failed", slog.Error(err))
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn(ctx, "redis close error", slog.Error(err))
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server, err := internalhttp.NewServer(cfg, logger.Named("http"), store, redisClient, registry)
	if err != nil {
		logger.Fatal(ctx, "server init failed", slog.Error(err))
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer, health, err := aigrpc.NewServer(cfg.ServiceAuthToken)
	if err != nil {
		logger.Fatal(ctx, "grpc init failed", slog.Error(err))
	}

	clock := quartz.NewReal()
	go jobs.NewHealthWatcher(logger.Named("health"), clock, store, health, cfg.HealthCheckInterval).Run(ctx)
	if cfg.SnapshotJobEnabled {
		job, err := jobs.NewSnapshotJob(logger.Named("snapshots"), clock, store, cfg.SnapshotJobSchedule, cfg.SnapshotJobTimeout)
		if err != nil {
			logger.Fatal(ctx, "snapshot job init failed", slog.Error(err))
		}
		go job.Run(ctx)
	}

	go func() {
		logger.Info(ctx, "http listening", slog.F("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "http server error", slog.Error(err))
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			logger.Fatal(ctx, "grpc listen error", slog.Error(err))
		}
		logger.Info(ctx, "grpc listening", slog.F("addr", cfg.GRPCAddr))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal(ctx, "grpc server error", slog.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "shutdown error", slog.Error(err))
	}
	grpcServer.GracefulStop()
}
