// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wordclue/internal/cache"
	"github.com/jason-s-yu/wordclue/internal/config"
	"github.com/jason-s-yu/wordclue/internal/database"
	"github.com/jason-s-yu/wordclue/internal/handlers"
	"github.com/jason-s-yu/wordclue/internal/hub"
	"github.com/jason-s-yu/wordclue/internal/registry"
	"github.com/jason-s-yu/wordclue/internal/session"
	"github.com/jason-s-yu/wordclue/internal/words"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store database.Store
	if cfg.DatabaseURL != "" {
		if cfg.MigrateOnStart {
			if err := database.Migrate(cfg.DatabaseURL); err != nil {
				logger.Fatalf("migrations failed: %v", err)
			}
			logger.Info("migrations applied")
		}
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		store = database.NewPostgresStore(pool)
		logger.Info("using postgres store")
	} else {
		store = database.NewMemoryStore()
		logger.Warn("DATABASE_URL not set, rooms are kept in memory")
	}

	opts := session.Options{
		Store:    store,
		Bus:      hub.New(logger),
		Words:    words.NewGenerator(0, cfg.MalusProbability),
		Settings: cfg.SessionSettings(),
		Logger:   logger,
	}

	var rounds handlers.RoundReader
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		rc := cache.NewRoundCache(rdb, cache.DefaultRoundTTL)
		opts.Mirror = rc
		rounds = rc
		logger.Infof("mirroring rounds to redis at %s", cfg.RedisAddr)
	}

	reg := registry.New(opts)
	srv := handlers.NewServer(store, reg, rounds, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reg.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("room shutdown: %v", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
}
