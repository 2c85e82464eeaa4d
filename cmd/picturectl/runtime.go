package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/infrastructure/cache"
	"github.com/janhq/picture-api/internal/infrastructure/database"
	"github.com/janhq/picture-api/internal/infrastructure/database/transaction"
	"github.com/janhq/picture-api/internal/infrastructure/logger"
	repo "github.com/janhq/picture-api/internal/infrastructure/repository/picture"
	"github.com/janhq/picture-api/internal/infrastructure/storage"
)

// runtime holds what a command needs to reach the database and the shared services.
type runtime struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *gorm.DB
	redis *redis.Client
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	db, err := database.Connect(ctx, database.Config{
		DSN:             cfg.DBPostgresqlWriteDSN,
		MaxIdleConns:    1,
		MaxOpenConns:    2,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        database.ParseLogLevel(cfg.DBLogLevel),
		ConnectAttempts: 1,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rt := &runtime{cfg: cfg, log: log, db: db}
	if cfg.RedisEnabled() {
		client, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			rt.close()
			return nil, err
		}
		rt.redis = client
	}
	return rt, nil
}

// pictureService wires the service the same way the server does. Compaction therefore takes
// the shared ranking lock and clears the shared listing cache.
func (rt *runtime) pictureService(ctx context.Context) (*picture.Service, error) {
	blobStore, err := storage.New(ctx, rt.cfg, rt.log)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	var (
		listCache picture.ListCache
		opts      []picture.Option
	)
	if rt.redis != nil {
		if rt.cfg.ListCacheMode() == config.ListCacheRedis {
			listCache = cache.NewListCache(rt.redis, rt.cfg.ListCacheTTL, rt.log)
		}
		opts = append(opts, picture.WithLocker(cache.NewRedisLocker(rt.redis, rt.cfg.LedgerLockTTL, rt.log)))
	}

	txDB := transaction.NewDatabase(rt.db)
	return picture.NewService(rt.cfg, repo.NewRepository(txDB), txDB, blobStore, listCache, rt.log, opts...), nil
}

func (rt *runtime) close() {
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
