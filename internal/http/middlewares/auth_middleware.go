package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/actorctx"
	"github.com/ovoz/admin/internal/auth"
	"github.com/ovoz/admin/internal/session"
	"github.com/ovoz/admin/internal/upstream"
)

// Keep these small interfaces so tests can fake them easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type SessionLookup interface {
	Get(ctx context.Context, jti string) (session.Session, error)
}

type AuthMiddleware struct {
	jwt      TokenVerifier
	sessions SessionLookup
}

func NewAuthMiddleware(jwt TokenVerifier, sessions SessionLookup) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, sessions: sessions}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="ovoz-admin"`)
	abort(c, http.StatusUnauthorized, "unauthorized", message)
}

// RequireAuth verifies the dashboard token, resolves the session it names and
// puts the session's upstream token on the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			unauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			unauthorized(c, "Invalid or expired access token")
			return
		}

		sess, err := m.sessions.Get(c.Request.Context(), claims.JTI)
		if err != nil {
			unauthorized(c, "Session expired, please log in again")
			return
		}

		// Stash useful bits of identity on the context
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxJTI, claims.JTI)

		ctx := upstream.ContextWithToken(c.Request.Context(), sess.UpstreamToken)
		ctx = actorctx.WithUsername(ctx, claims.Username)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// Optional helpers so handlers don't need to know the magic keys.

func UsernameFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, CtxUsername)
}

func RoleFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, CtxRole)
}

func JTIFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, CtxJTI)
}

func stringFromContext(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
