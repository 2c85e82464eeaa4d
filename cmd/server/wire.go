//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/infrastructure/auth"
	"github.com/janhq/picture-api/internal/infrastructure/crontab"
	"github.com/janhq/picture-api/internal/infrastructure/database/transaction"
	"github.com/janhq/picture-api/internal/infrastructure/logger"
	repo "github.com/janhq/picture-api/internal/infrastructure/repository/picture"
	"github.com/janhq/picture-api/internal/infrastructure/storage"
	"github.com/janhq/picture-api/internal/interfaces/httpserver"
	"github.com/janhq/picture-api/internal/interfaces/httpserver/handlers"
)

var pictureSet = wire.NewSet(
	transaction.NewDatabase,
	repo.NewRepository,
	wire.Bind(new(picture.Repository), new(*repo.Repository)),
	wire.Bind(new(picture.Transactor), new(*transaction.Database)),
	storage.New,
	wire.Bind(new(picture.Storage), new(storage.Storage)),
	provideRedisClient,
	provideListCache,
	provideServiceOptions,
	picture.NewService,
	wire.Bind(new(handlers.PictureService), new(*picture.Service)),
	wire.Bind(new(crontab.LedgerMaintainer), new(*picture.Service)),
	crontab.NewCrontab,
)

// BuildApplication assembles the picture API with Wire.
func BuildApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		auth.NewValidator,
		newDatabaseConfig,
		newGormDB,
		pictureSet,
		newReadinessChecks,
		httpserver.New,
		NewApplication,
	)
	return nil, nil, nil
}
