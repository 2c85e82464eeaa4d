package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/domain/position"
)

type emptyService struct{}

func (emptyService) List(context.Context, picture.ListQuery) ([]*picture.Picture, error) {
	return []*picture.Picture{}, nil
}
func (emptyService) Get(context.Context, string) (*picture.Picture, error) {
	return nil, errors.New("not implemented")
}
func (emptyService) Create(context.Context, picture.CreateInput) (*picture.Picture, error) {
	return nil, errors.New("not implemented")
}
func (emptyService) Update(context.Context, string, picture.UpdateInput) (*picture.Picture, error) {
	return nil, errors.New("not implemented")
}
func (emptyService) Unrank(context.Context, string, position.Slot) (*picture.Picture, error) {
	return nil, errors.New("not implemented")
}
func (emptyService) Delete(context.Context, string) error { return nil }
func (emptyService) BulkDelete(context.Context, []string) (*picture.BulkDeleteResult, error) {
	return &picture.BulkDeleteResult{}, nil
}

func newTestServer(t *testing.T, checks ReadinessChecks) *HttpServer {
	t.Helper()
	cfg := &config.Config{
		ServiceName:      "picture-api",
		Environment:      "test",
		StorageBackend:   "local",
		LocalStoragePath: t.TempDir(),
		MaxPictureBytes:  1 << 20,
	}
	return New(cfg, zerolog.Nop(), emptyService{}, nil, checks)
}

func serve(srv *HttpServer, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestCoreRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/healthz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/health/auth").Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/pictures").Code)

	w := serve(srv, http.MethodGet, "/")
	assert.Contains(t, w.Body.String(), "picture-api")
}

func TestReadinessReportsFailingChecks(t *testing.T) {
	srv := newTestServer(t, ReadinessChecks{
		{Name: "database", Check: func(context.Context) error { return nil }},
		{Name: "storage", Check: func(context.Context) error { return errors.New("bucket missing") }},
	})

	w := serve(srv, http.MethodGet, "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "bucket missing")
	assert.NotContains(t, w.Body.String(), "database")
}

func TestMetricsEndpointExposesRequestCounter(t *testing.T) {
	srv := newTestServer(t, nil)
	serve(srv, http.MethodGet, "/pictures")

	w := serve(srv, http.MethodGet, "/metrics")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jan_picture_api_requests_total")
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, nil)

	w := serve(srv, http.MethodGet, "/healthz")
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-Id"))
}
