package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trigger sources recorded on request spans
const (
	TriggerSourceCron = "cron"
	TriggerSourceAPI  = "api"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// CronHeader identifies scheduler-initiated requests
	CronHeader string
}

// TracingWithConfig returns the otelgin middleware followed by span
// enrichment: request_id, the trigger source, and error status for 4xx/5xx.
func TracingWithConfig(cfg TracingConfig) []gin.HandlerFunc {
	if !cfg.Enabled {
		return []gin.HandlerFunc{func(c *gin.Context) { c.Next() }}
	}
	return []gin.HandlerFunc{
		otelgin.Middleware(cfg.ServiceName),
		spanEnricher(cfg.CronHeader),
	}
}

func spanEnricher(cronHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		source := TriggerSourceAPI
		if cronHeader != "" && c.GetHeader(cronHeader) != "" {
			source = TriggerSourceCron
		}
		span.SetAttributes(attribute.String("sync.trigger_source", source))

		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.SetAttributes(attribute.StringSlice("gin.errors", c.Errors.Errors()))
		}
	}
}
