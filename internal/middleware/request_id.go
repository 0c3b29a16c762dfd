package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"church-portal/internal/logging"
	"church-portal/internal/observability"
)

// RequestID reuses the caller's X-Request-ID or mints one, echoes it back and
// attaches it, with a request-scoped logger, to the request context.
func RequestID(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader(observability.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(observability.RequestIDHeader, requestID)

		ctx := observability.ContextWithRequestID(c.Request.Context(), requestID)
		ctx = logging.ContextWithLogger(ctx, log.With(slog.String("request_id", requestID)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
