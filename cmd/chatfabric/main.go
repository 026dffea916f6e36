package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatfabric/chatfabric/internal/auth"
	"github.com/chatfabric/chatfabric/internal/broker"
	"github.com/chatfabric/chatfabric/internal/cache"
	"github.com/chatfabric/chatfabric/internal/relay"
	"github.com/chatfabric/chatfabric/internal/server"
	"github.com/chatfabric/chatfabric/internal/store"
	"github.com/chatfabric/chatfabric/pkg/config"
	"github.com/chatfabric/chatfabric/pkg/logging"
	"github.com/chatfabric/chatfabric/pkg/state/registry"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := broker.NewClient(ctx, cfg.Broker.RedisURL)
	if err != nil {
		logger.Error("Failed to connect to broker", slog.Any("error", err))
		os.Exit(1)
	}
	defer redisClient.Close()

	st, err := newStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()

	recency := cache.NewRecencyCache(redisClient, cfg.Cache.Window, cfg.Cache.TTL)
	reg := registry.NewInMemoryRegistry(logger)
	verifier := auth.NewJWTVerifier(cfg.Server.Auth.JWTSecret, st, logger)
	publisher := broker.NewRedisPublisher(redisClient)
	rl := relay.New(logger, reg, st, recency, publisher, cfg.Cache.PageLimit)

	bridge := broker.NewBridge(redisClient, reg, logger)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			logger.Error("Broker bridge terminated", slog.Any("error", err))
			stop()
		}
	}()

	app := server.NewApp(logger, ctx, cfg, reg, verifier, rl, st)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.Driver == "postgres" {
		return store.NewPostgresStore(ctx, cfg.Store.DatabaseURL)
	}
	return store.NewSQLiteStore(ctx, cfg.Store.SQLitePath)
}
