package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing starts one server span per request through otelgin. Health
// probes are not traced.
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	traced := otelgin.Middleware(serviceName)
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		traced(c)
	}
}

// SpanAttributes tags the request span with the request ID and the
// authenticated caller. It must run after RequestID and JWTAuth.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetName(c.Request.Method + " " + routePattern(c))
			if id := GetRequestID(c); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}
			if p, ok := GetPrincipal(c); ok {
				span.SetAttributes(
					attribute.String("tenant_id", p.TenantID.String()),
					attribute.String("user_id", p.UserID.String()),
				)
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the request span as failed for 4xx and 5xx responses
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		if code, ok := c.Get(errorCodeKey); ok {
			span.SetAttributes(attribute.String("error_code", code.(string)))
		}
	}
}

// errorCodeKey is where handlers record the taxonomy code of a failed request
const errorCodeKey = "error_code"

// SetErrorCode records the error code of the response for tracing
func SetErrorCode(c *gin.Context, code string) {
	c.Set(errorCodeKey, code)
}
