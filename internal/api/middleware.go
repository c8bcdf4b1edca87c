package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/claim-market/internal/telemetry"
)

// requestLogger logs every request at Info, or Warn for 5xx responses. The
// line carries the trace and span ids of the request span when there is one.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		ctx := c.Request.Context()
		telemetry.LogWithTrace(ctx, logger).LogAttrs(ctx, level, "api request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// recovery turns a panic into a 500 with the standard error body.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.ErrorContext(c.Request.Context(), "panic recovered",
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", err),
		)
		respondWithError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	})
}

// requireReady answers 503 until ready reports true. Only the leader replica
// is ready, so followers never change market state.
func requireReady(ready func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready() {
			respondWithError(c, http.StatusServiceUnavailable, ErrCodeNotReady, "market is not active on this replica")
			return
		}
		c.Next()
	}
}
