package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/janhq/picture-api/internal/infrastructure/auth"
	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

// quietRoutes are probed constantly; successful hits are logged at debug level only.
var quietRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// LoggingMiddleware writes one access line per request. Lines carry the trace and request ids,
// the picture id and slot of the route, and the token subject on admin routes.
func LoggingMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		event := accessEvent(logger, route, status)
		if event == nil {
			return
		}

		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			event = event.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if id := RequestIDFromContext(c); id != "" {
			event = event.Str("request_id", id)
		}
		if id := c.Param("id"); id != "" {
			event = event.Str("picture_id", id)
		}
		if slot := c.Param("slot"); slot != "" {
			event = event.Str("slot", slot)
		}
		if subject := auth.Subject(c); subject != "" {
			event = event.Str("subject", subject)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			if pe := platformerrors.GetPlatformError(errs.Last().Err); pe != nil {
				event = event.Object("error", pe)
			} else {
				event = event.Str("error", errs.String())
			}
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Str("query", c.Request.URL.RawQuery).
			Int("status", status).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

func accessEvent(logger zerolog.Logger, route string, status int) *zerolog.Event {
	switch {
	case status >= 500:
		return logger.Error()
	case status >= 400:
		return logger.Warn()
	case quietRoutes[route]:
		return logger.Debug()
	default:
		return logger.Info()
	}
}
