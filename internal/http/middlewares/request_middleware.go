package middlewares

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ovoz/admin/internal/actorctx"
)

const requestIDHeader = "X-Request-Id"

// RequestID adopts the caller's X-Request-Id when it looks sane and mints one
// otherwise. The id travels on the request context so upstream calls and log
// lines carry it.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Set(CtxRequestID, id)
		ctx.Request = ctx.Request.WithContext(actorctx.WithRequestID(ctx.Request.Context(), id))

		ctx.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}

var quietRoutes = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// RequestLogger writes one line per request. Probe and scrape routes are only
// logged when they fail.
func RequestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path
		}

		ctx.Next()

		status := ctx.Writer.Status()
		if quietRoutes[route] && status < http.StatusInternalServerError {
			return
		}

		attrs := []any{
			"method", ctx.Request.Method,
			"route", route,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", ctx.Writer.Size(),
			"client_ip", ctx.ClientIP(),
		}

		for _, key := range []string{CtxJobID, CtxDraftID} {
			if s := ctx.GetString(key); s != "" {
				attrs = append(attrs, key, s)
			}
		}

		if name, ok := UsernameFromContext(ctx); ok {
			attrs = append(attrs, "username", name)
		}
		if len(ctx.Errors) > 0 {
			attrs = append(attrs, "errors", ctx.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}

		slog.Default().Log(ctx.Request.Context(), level, "http_request", attrs...)
	}
}
