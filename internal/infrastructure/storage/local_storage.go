package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
)

const backendLocal = "local"

// LocalStorage keeps picture files on the local filesystem. Files are served by the HTTP
// server under LocalStorageBaseURL.
type LocalStorage struct {
	basePath string
	baseURL  string
	log      zerolog.Logger
}

// NewLocalStorage creates a new local filesystem storage backend.
func NewLocalStorage(cfg *config.Config, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-storage").Logger()

	basePath := strings.TrimSpace(cfg.LocalStoragePath)
	if basePath == "" {
		return nil, errors.New("PICTURE_LOCAL_STORAGE_PATH is not set")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	storage := &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.LocalStorageBaseURL), "/"),
		log:      logger,
	}

	logger.Info().
		Str("path", basePath).
		Str("base_url", storage.baseURL).
		Msg("local storage initialized")

	return storage, nil
}

func (l *LocalStorage) Backend() string {
	return backendLocal
}

// Root is the directory files are stored under.
func (l *LocalStorage) Root() string {
	return l.basePath
}

// fullPath maps a key onto the filesystem. Keys cannot escape the base directory.
func (l *LocalStorage) fullPath(key string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.basePath, filepath.FromSlash(cleaned)), nil
}

// Upload writes the file to a temporary name and renames it into place.
func (l *LocalStorage) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (err error) {
	start := time.Now()
	defer func() { observe(backendLocal, "upload", start, err) }()

	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	written, err := io.Copy(tmp, body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	metrics.RecordUpload(contentType, written)
	l.log.Debug().
		Str("key", key).
		Int64("bytes", written).
		Msg("file uploaded to local storage")
	return nil
}

// Delete removes the file. A missing file is not an error.
func (l *LocalStorage) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { observe(backendLocal, "delete", start, err) }()

	fullPath, err := l.fullPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	l.log.Debug().Str("key", key).Msg("file deleted from local storage")
	return nil
}

// PublicURL returns the URL the file is served under.
func (l *LocalStorage) PublicURL(ctx context.Context, key string) (string, error) {
	if l.baseURL == "" {
		fullPath, err := l.fullPath(key)
		if err != nil {
			return "", err
		}
		return "file://" + filepath.ToSlash(fullPath), nil
	}
	return url.JoinPath(l.baseURL, strings.Split(filepath.ToSlash(key), "/")...)
}

// Health checks if the storage directory is writable.
func (l *LocalStorage) Health(ctx context.Context) error {
	testFile := filepath.Join(l.basePath, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	_ = os.Remove(testFile)
	return nil
}
