package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/auth"
	"github.com/ovoz/admin/internal/http/middlewares"
	"github.com/ovoz/admin/internal/session"
	"github.com/ovoz/admin/internal/upstream"
)

type UpstreamLogin interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type TokenIssuer interface {
	GenerateAccessToken(username, role string) (raw string, jti string, expiresAt time.Time, err error)
}

type SessionStore interface {
	Save(ctx context.Context, jti string, sess session.Session) error
	Delete(ctx context.Context, jti string) error
}

type AuthHandler struct {
	upstream UpstreamLogin
	jwt      TokenIssuer
	sessions SessionStore
}

func NewAuthHandler(up UpstreamLogin, jwtManager TokenIssuer, sessions SessionStore) *AuthHandler {
	return &AuthHandler{
		upstream: up,
		jwt:      jwtManager,
		sessions: sessions,
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// POST /auth/login

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	username := strings.TrimSpace(req.Username)
	rctx := ctx.Request.Context()

	upstreamToken, err := h.upstream.Login(rctx, username, req.Password)
	if err != nil {
		if errors.Is(err, upstream.ErrUnauthorized) {
			RespondUnauthorized(ctx, "invalid_credentials", "Username or password is incorrect.")
			return
		}

		RespondUpstream(ctx, err, "Login endpoint not found", "Login failed")
		return
	}

	accessToken, jti, expiresAt, err := h.jwt.GenerateAccessToken(username, auth.RoleAdmin)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	err = h.sessions.Save(rctx, jti, session.Session{
		Username:      username,
		UpstreamToken: upstreamToken,
		ExpiresAt:     expiresAt,
	})
	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": accessToken,
		"tokenType":   "Bearer",
		"expiresIn":   int(time.Until(expiresAt).Seconds()),
		"username":    username,
	})
}

// POST /auth/logout

func (h *AuthHandler) Logout(ctx *gin.Context) {
	jti, ok := middlewares.JTIFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing session")
		return
	}

	if err := h.sessions.Delete(ctx.Request.Context(), jti); err != nil {
		RespondInternal(ctx, "Could not end session")
		return
	}

	ctx.Status(http.StatusNoContent)
}
