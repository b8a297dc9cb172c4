package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/blob"
	"github.com/fightr/fightr-core/internal/cache"
	"github.com/fightr/fightr-core/internal/config"
	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/logger"
	"github.com/fightr/fightr-core/internal/server"
	"github.com/fightr/fightr-core/internal/session"
	"github.com/fightr/fightr-core/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg := config.New()
	logger.InitFromConfig(cfg)

	database, err := db.NewDB(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}

	redisCache := cache.NewRedisCache(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisCache.Ping(ctx); err != nil {
		cancel()
		logger.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	cancel()

	broker := stream.NewBroker(redisCache.Client, logger.L())
	appCtx := app.New(database, redisCache, broker, logger.L())

	if cfg.App.Env == "development" {
		if err := db.SeedTestData(database); err != nil {
			logger.Warn("failed to seed demo data", "err", err)
		} else {
			logger.Info("demo roster seeded")
		}
	}

	sessions := session.NewManager(appCtx, blob.NewFSStore(cfg.Blob.Dir, cfg.Blob.BaseURL))
	srv := server.NewServer(cfg, appCtx, sessions)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}
}
