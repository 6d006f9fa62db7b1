package middlewares

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per key. A bucket allows limit requests
// in a burst and refills over window.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	every   rate.Limit
	idleTTL time.Duration
	clients map[string]*clientBucket
	now     func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}

	return &RateLimiter{
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		idleTTL: 2 * window,
		clients: make(map[string]*clientBucket),
		now:     time.Now,
	}
}

func (rl *RateLimiter) bucket(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	// sweep idle buckets so the map doesn't grow with every address seen
	if len(rl.clients) > 1024 {
		for k, b := range rl.clients {
			if now.Sub(b.lastSeen) > rl.idleTTL {
				delete(rl.clients, k)
			}
		}
	}

	b, ok := rl.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.every, rl.limit)}
		rl.clients[key] = b
	}
	b.lastSeen = now

	return b.limiter
}

// RateLimiterMiddleware enforces the limit for the key keyFn derives, falling
// back to the client IP.
func (rl *RateLimiter) RateLimiterMiddleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		now := rl.now()
		lim := rl.bucket(key, now)

		if lim.AllowN(now, 1) {
			c.Next()
			return
		}

		r := lim.ReserveN(now, 1)
		wait := r.DelayFrom(now)
		r.CancelAt(now)

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		abort(c, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please try again shortly.")
	}
}

// for unauthenticated endpoints: rate limit by IP
func KeyByIP(c *gin.Context) string {
	return clientIP(c)
}

// For authenticated endpoints: rate limit by username if available
func KeyByUserOrIP(c *gin.Context) string {
	if name, ok := UsernameFromContext(c); ok && name != "" {
		return "user:" + name
	}

	return clientIP(c)
}

func clientIP(c *gin.Context) string {
	ip := c.ClientIP()

	// strip a port if one slipped through
	if host, _, err := net.SplitHostPort(ip); err == nil && host != "" {
		return host
	}

	return ip
}
