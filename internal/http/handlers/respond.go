package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/http/middlewares"
	"github.com/ovoz/admin/internal/upstream"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondValidation(ctx *gin.Context, field, message string) {
	RespondError(ctx, http.StatusUnprocessableEntity, "validation_failed", message, gin.H{"field": field})
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondUpstream maps a failed voting API or media call onto the envelope.
// The upstream's own message wins over fallback when it sent one.
func RespondUpstream(ctx *gin.Context, err error, notFound, fallback string) {
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		RespondNotFound(ctx, notFound)
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, upstream.ErrNoToken):
		RespondUnauthorized(ctx, "upstream_unauthorized", "Upstream session expired, please log in again")
	case errors.Is(err, context.DeadlineExceeded):
		RespondError(ctx, http.StatusGatewayTimeout, "upstream_timeout", fallback, nil)
	case upstream.IsTransport(err):
		RespondError(ctx, http.StatusBadGateway, "upstream_error", upstream.MessageOr(err, fallback), nil)
	default:
		RespondInternal(ctx, fallback)
	}
}
