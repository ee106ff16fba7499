package middlewares

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request. Query strings are left out
// since checkout callbacks can carry payment ids in them.
func RequestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		ctx.Next()

		status := ctx.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		} else if status >= 400 {
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("request_id", GetRequestID(ctx)),
			slog.String("method", ctx.Request.Method),
			slog.String("path", ctx.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", ctx.ClientIP()),
		}
		if len(ctx.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", ctx.Errors.String()))
		}

		l.LogAttrs(ctx.Request.Context(), level, "http_request", attrs...)
	}
}
