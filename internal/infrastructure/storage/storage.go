package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
)

// Storage is a blob backend for picture files.
type Storage interface {
	picture.Storage

	// Health reports whether the backend is reachable and writable.
	Health(ctx context.Context) error
	// Backend names the implementation, "local" or "s3".
	Backend() string
}

// New builds the backend selected by PICTURE_STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Storage, error) {
	if cfg.IsS3Storage() {
		return NewS3Storage(ctx, cfg, log)
	}
	return NewLocalStorage(cfg, log)
}

func observe(backend, operation string, start time.Time, err error) {
	metrics.RecordStorageOperation(backend, operation, err, time.Since(start).Seconds())
}
