package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"bahikhata/backend/internal/cache"
	"bahikhata/backend/internal/config"
	"bahikhata/backend/internal/httpapi"
	"bahikhata/backend/internal/lock"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/service"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/store/memory"
	mongostore "bahikhata/backend/internal/store/mongo"
	pgstore "bahikhata/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)
	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("%s unavailable: %v; refusing to start with in-memory fallback", cfg.Storage, err)
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	opts := service.Options{
		Logger:        logger,
		PartyCacheTTL: time.Duration(cfg.PartyCacheTTLSeconds) * time.Second,
	}
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		partyCache := cache.NewRedisPartyCache(client)
		if err := partyCache.Ping(ctx); err != nil {
			logger.WithError(err).Warn("redis unavailable, using noop cache and local locks")
			_ = client.Close()
		} else {
			opts.PartyCache = partyCache
			opts.Locker = lock.NewRedis(client, time.Duration(cfg.LockTTLSeconds)*time.Second)
			closers = append(closers, client.Close)
			logger.Info("cache: redis, locks: redis")
		}
	} else {
		logger.Info("cache: noop, locks: local")
	}

	svc := service.New(repo, opts)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, 8*time.Hour)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("ledger backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.WithError(err).Error("close error")
		}
	}

	logger.Info("server stopped")
}

// openRepository connects the configured backend and creates its schema.
// The returned close func is nil for the in-memory store.
func openRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.Repository, func() error, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		logger.Info("repository: postgres")
		return pg, pg.Close, nil
	case config.StorageMongo:
		mg, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := mg.Migrate(ctx); err != nil {
			_ = mg.Close()
			return nil, nil, err
		}
		logger.Info("repository: mongo")
		return mg, mg.Close, nil
	default:
		logger.Info("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.Storage == config.StoragePostgres && cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when STORAGE=postgres")
	}
	if cfg.Storage == config.StorageMongo && cfg.MongoURI == "" {
		return fmt.Errorf("MONGO_URI must be set when STORAGE=mongo")
	}
	return nil
}
