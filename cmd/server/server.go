package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/infrastructure/auth"
	"github.com/janhq/picture-api/internal/infrastructure/cache"
	"github.com/janhq/picture-api/internal/infrastructure/crontab"
	"github.com/janhq/picture-api/internal/infrastructure/database"
	"github.com/janhq/picture-api/internal/infrastructure/database/transaction"
	"github.com/janhq/picture-api/internal/infrastructure/logger"
	"github.com/janhq/picture-api/internal/infrastructure/observability"
	repo "github.com/janhq/picture-api/internal/infrastructure/repository/picture"
	"github.com/janhq/picture-api/internal/infrastructure/storage"
	"github.com/janhq/picture-api/internal/interfaces/httpserver"
)

// @title Picture API
// @version 1.0
// @description Picture uploads with gap-free gallery and start page rankings
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
type Application struct {
	httpServer *httpserver.HttpServer
	crontab    *crontab.Crontab
	log        zerolog.Logger
}

func NewApplication(httpServer *httpserver.HttpServer, crontab *crontab.Crontab, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		crontab:    crontab,
		log:        log,
	}
}

// Start runs the HTTP server and the scheduler until ctx ends or one of them fails.
func (a *Application) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return a.httpServer.Run(ctx)
	})
	eg.Go(func() error {
		return a.crontab.Run(ctx)
	})
	return eg.Wait()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := newGormDB(ctx, newDatabaseConfig(cfg), log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize database")
	}

	blobStore, err := storage.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize storage")
	}

	redisClient, closeRedis, err := provideRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer closeRedis()

	listCache, err := provideListCache(cfg, redisClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize list cache")
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth")
	}

	txDB := transaction.NewDatabase(db)
	pictureRepository := repo.NewRepository(txDB)
	pictureService := picture.NewService(cfg, pictureRepository, txDB, blobStore, listCache, log,
		provideServiceOptions(cfg, redisClient, log)...)

	checks := newReadinessChecks(db, blobStore, redisClient, authValidator)
	httpServer := httpserver.New(cfg, log, pictureService, authValidator, checks)
	scheduler := crontab.NewCrontab(cfg, pictureService, log)
	app := NewApplication(httpServer, scheduler, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DBPostgresqlWriteDSN,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        database.ParseLogLevel(cfg.DBLogLevel),
		ConnectAttempts: cfg.DBConnectAttempts,
		RetryDelay:      cfg.DBConnectRetryDelay,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

// provideRedisClient connects when REDIS_URL is set. A nil client means the listing cache
// stays in process and ranking mutations are serialized per instance only.
func provideRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, func(), error) {
	if !cfg.RedisEnabled() {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis client")
		}
	}, nil
}

// provideListCache returns a nil cache when caching is off, so the service reads through to
// the database.
func provideListCache(cfg *config.Config, client *redis.Client, log zerolog.Logger) (picture.ListCache, error) {
	mode := cfg.ListCacheMode()
	log.Info().Str("mode", mode).Dur("ttl", cfg.ListCacheTTL).Msg("list cache")
	switch mode {
	case config.ListCacheRedis:
		if client == nil {
			return nil, errors.New("redis list cache requires REDIS_URL")
		}
		return cache.NewListCache(client, cfg.ListCacheTTL, log), nil
	case config.ListCacheMemory:
		memoryCache, err := cache.NewMemoryListCache(cfg.ListCacheTTL)
		if err != nil {
			return nil, err
		}
		return memoryCache, nil
	default:
		return nil, nil
	}
}

func provideServiceOptions(cfg *config.Config, client *redis.Client, log zerolog.Logger) []picture.Option {
	if client == nil {
		return nil
	}
	return []picture.Option{picture.WithLocker(cache.NewRedisLocker(client, cfg.LedgerLockTTL, log))}
}

func newReadinessChecks(db *gorm.DB, blobStore storage.Storage, redisClient *redis.Client, authValidator *auth.Validator) httpserver.ReadinessChecks {
	checks := httpserver.ReadinessChecks{
		{Name: "database", Check: func(ctx context.Context) error { return database.Ping(ctx, db) }},
		{Name: "storage", Check: blobStore.Health},
		{Name: "auth", Check: func(context.Context) error {
			if !authValidator.Ready() {
				return errors.New("jwks not loaded")
			}
			return nil
		}},
	}
	if redisClient != nil {
		checks = append(checks, httpserver.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
