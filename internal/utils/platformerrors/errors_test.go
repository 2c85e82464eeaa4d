package platformerrors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	err := NewError(ctx, LayerDomain, ErrorTypeNotFound, "picture not found", nil, "b7d1c9e2-0c57-4a2e-9f5b-3c1d2e4f5a6b")

	assert.Equal(t, "req-123", err.GetRequestID())
	assert.Equal(t, "b7d1c9e2-0c57-4a2e-9f5b-3c1d2e4f5a6b", err.GetUUID())
	assert.Equal(t, ErrorTypeNotFound, err.GetErrorType())
	assert.Contains(t, err.Error(), "picture not found")
	assert.Empty(t, RequestIDFromContext(WithRequestID(context.Background(), "")))
}

func TestAsErrorKeepsTypeOfWrappedPlatformError(t *testing.T) {
	ctx := context.Background()
	inner := NewError(ctx, LayerRepository, ErrorTypeDatabaseError, "update failed", errors.New("boom"), "inner-uuid")

	wrapped := AsError(ctx, LayerDomain, inner, "move picture")
	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeDatabaseError, wrapped.Type)
	assert.Equal(t, "inner-uuid", wrapped.UUID)
	assert.Equal(t, "move picture: update failed", wrapped.Message)
	assert.True(t, errors.Is(wrapped, inner))

	plain := AsError(ctx, LayerDomain, errors.New("plain"), "move picture")
	assert.Equal(t, ErrorTypeInternal, plain.Type)

	assert.Nil(t, AsError(ctx, LayerDomain, nil, "nothing"))
}

func TestAsErrorTreatsContextErrorsAsTimeouts(t *testing.T) {
	for _, cause := range []error{context.DeadlineExceeded, context.Canceled, fmt.Errorf("query: %w", context.DeadlineExceeded)} {
		err := AsError(context.Background(), LayerDomain, cause, "list pictures")
		assert.Equal(t, ErrorTypeTimeout, err.Type, cause.Error())
		assert.Equal(t, http.StatusGatewayTimeout, ErrorTypeToHTTPStatus(err.Type))
	}
}

func TestErrorTypeToHTTPStatus(t *testing.T) {
	cases := map[ErrorType]int{
		ErrorTypeNotFound:      http.StatusNotFound,
		ErrorTypeValidation:    http.StatusBadRequest,
		ErrorTypeConflict:      http.StatusConflict,
		ErrorTypeExternal:      http.StatusBadGateway,
		ErrorTypeDatabaseError: http.StatusInternalServerError,
		ErrorTypeInternal:      http.StatusInternalServerError,
		ErrorType("UNKNOWN"):   http.StatusInternalServerError,
	}
	for errorType, status := range cases {
		assert.Equal(t, status, ErrorTypeToHTTPStatus(errorType), string(errorType))
	}
}

func TestIsErrorType(t *testing.T) {
	err := NewError(context.Background(), LayerDomain, ErrorTypeValidation, "title is required", nil, "")
	wrapped := errors.Join(errors.New("context"), err)

	assert.True(t, IsErrorType(wrapped, ErrorTypeValidation))
	assert.False(t, IsErrorType(wrapped, ErrorTypeNotFound))
	assert.False(t, IsErrorType(nil, ErrorTypeValidation))
	assert.Equal(t, "auto-generated-uuid", err.UUID)
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	err := NewError(context.Background(), LayerRepository, ErrorTypeDatabaseError, "shift gallery", errors.New("deadlock"), "u-1")

	log.Error().Object("error", err).Msg("failed")

	var line struct {
		Error map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, map[string]string{
		"uuid":    "u-1",
		"type":    "DATABASE_ERROR",
		"layer":   "repository",
		"message": "shift gallery",
		"cause":   "deadlock",
	}, line.Error)
}
