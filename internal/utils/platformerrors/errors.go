package platformerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

type requestIDKey struct{}

// WithRequestID stores the request id so errors created further down the call chain carry it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// ErrorType is the category of a failure; it decides the HTTP status.
type ErrorType string

const (
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeTimeout       ErrorType = "TIMEOUT"
	ErrorTypeInternal      ErrorType = "INTERNAL"
	ErrorTypeExternal      ErrorType = "EXTERNAL"
	ErrorTypeDatabaseError ErrorType = "DATABASE_ERROR"
)

var httpStatus = map[ErrorType]int{
	ErrorTypeNotFound:      http.StatusNotFound,
	ErrorTypeValidation:    http.StatusBadRequest,
	ErrorTypeConflict:      http.StatusConflict,
	ErrorTypeTimeout:       http.StatusGatewayTimeout,
	ErrorTypeExternal:      http.StatusBadGateway,
	ErrorTypeDatabaseError: http.StatusInternalServerError,
	ErrorTypeInternal:      http.StatusInternalServerError,
}

// Layer names where an error was raised or last wrapped.
type Layer string

const (
	LayerRepository     Layer = "repository"
	LayerDomain         Layer = "domain"
	LayerRoute          Layer = "route"
	LayerInfrastructure Layer = "infrastructure"
)

// PlatformError is a typed error. UUID identifies the raising call site and is returned to
// clients as the error code.
type PlatformError struct {
	UUID      string
	Type      ErrorType
	Message   string
	Err       error
	RequestID string
	Layer     Layer
}

func (e *PlatformError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s][%s][%s] %s: %v", e.Layer, e.Type, e.UUID, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s][%s][%s] %s", e.Layer, e.Type, e.UUID, e.Message)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

func (e *PlatformError) GetErrorType() ErrorType {
	return e.Type
}

func (e *PlatformError) GetRequestID() string {
	return e.RequestID
}

func (e *PlatformError) GetUUID() string {
	return e.UUID
}

// MarshalZerologObject lets log lines embed the error with .Object.
func (e *PlatformError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("uuid", e.UUID).
		Str("type", string(e.Type)).
		Str("layer", string(e.Layer)).
		Str("message", e.Message)
	if e.Err != nil {
		ev.Str("cause", e.Err.Error())
	}
}

// NewError creates a PlatformError stamped with the request id carried by ctx.
func NewError(ctx context.Context, layer Layer, errorType ErrorType, message string, err error, uuid string) *PlatformError {
	if uuid == "" {
		uuid = "auto-generated-uuid"
	}
	return &PlatformError{
		UUID:      uuid,
		Type:      errorType,
		Message:   message,
		Err:       err,
		RequestID: RequestIDFromContext(ctx),
		Layer:     layer,
	}
}

// AsError wraps err with layer context. Platform errors keep their type and UUID; context
// cancellation and deadlines become timeouts; anything else is internal.
func AsError(ctx context.Context, layer Layer, err error, message string) *PlatformError {
	if err == nil {
		return nil
	}

	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return NewError(ctx, layer, platformErr.Type, fmt.Sprintf("%s: %s", message, platformErr.Message), platformErr, platformErr.UUID)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewError(ctx, layer, ErrorTypeTimeout, message, err, "3e9a5c71-b82d-4f06-a1c4-7d0e6b9f2a58")
	}
	return NewError(ctx, layer, ErrorTypeInternal, message, err, "")
}

// ErrorTypeToHTTPStatus maps error types to HTTP status codes. Unknown types are 500.
func ErrorTypeToHTTPStatus(errorType ErrorType) int {
	if status, ok := httpStatus[errorType]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsErrorType checks if an error is a PlatformError with the specified type
func IsErrorType(err error, errorType ErrorType) bool {
	pe := GetPlatformError(err)
	return pe != nil && pe.Type == errorType
}

// GetPlatformError returns the outermost PlatformError in the chain, or nil.
func GetPlatformError(err error) *PlatformError {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		return platformErr
	}
	return nil
}
