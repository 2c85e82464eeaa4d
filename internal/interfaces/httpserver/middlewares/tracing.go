package middlewares

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware continues the caller's trace, or starts one, with a server span named after
// the route template. Picture ids and slots from the path become span attributes.
func TracingMiddleware(tracerName string) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	propagator := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		parent := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		name := route
		if name == "" {
			name = unmatchedRoute
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("url.path", c.Request.URL.Path),
		}
		if id := c.Param("id"); id != "" {
			attrs = append(attrs, attribute.String("picture.id", id))
		}
		if slot := c.Param("slot"); slot != "" {
			attrs = append(attrs, attribute.String("picture.slot", slot))
		}
		if id := RequestIDFromContext(c); id != "" {
			attrs = append(attrs, attribute.String("request.id", id))
		}

		ctx, span := tracer.Start(parent, c.Request.Method+" "+name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status < 500 {
			return
		}
		span.SetStatus(codes.Error, "server error")
		for _, err := range c.Errors {
			span.RecordError(err.Err)
		}
	}
}
