package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ovoz/admin/internal/cache"
	"github.com/ovoz/admin/internal/http/middlewares"
)

// listCache keeps upstream listings for a short while and remembers, per
// session, the ids of the listings shown.
type listCache struct {
	store cache.Store
	ttl   time.Duration
}

func cachedList[T any](ctx context.Context, l listCache, key string) ([]T, bool) {
	if l.store == nil {
		return nil, false
	}

	items, ok, err := cache.GetJSON[[]T](ctx, l.store, key)
	if err != nil {
		slog.Default().WarnContext(ctx, "list cache read failed", "key", key, "err", err)
		return nil, false
	}

	return items, ok
}

func (l listCache) put(ctx context.Context, key string, v any) {
	if l.store == nil {
		return
	}

	if err := cache.SetJSON(ctx, l.store, key, v, l.ttl); err != nil {
		slog.Default().WarnContext(ctx, "list cache write failed", "key", key, "err", err)
	}
}

func (l listCache) invalidate(ctx context.Context, prefixes ...string) {
	if l.store == nil {
		return
	}

	for _, p := range prefixes {
		if err := l.store.DeletePrefix(ctx, p); err != nil {
			slog.Default().WarnContext(ctx, "list cache invalidation failed", "prefix", p, "err", err)
		}
	}
}

// listScope names the caller's session for the last-listing keys.
func listScope(ctx *gin.Context) string {
	if jti, ok := middlewares.JTIFromContext(ctx); ok {
		return jti
	}
	if name, ok := middlewares.UsernameFromContext(ctx); ok {
		return "user:" + name
	}
	return "anonymous"
}

// rememberListing records ids as what the session saw for filter. Other
// filters the session listed stay remembered.
func rememberListing[T comparable](ctx context.Context, l listCache, key, filter string, ids []T) {
	if l.store == nil {
		return
	}

	seen, _, err := cache.GetJSON[map[string][]T](ctx, l.store, key)
	if err != nil || seen == nil {
		seen = map[string][]T{}
	}
	seen[filter] = ids

	l.put(ctx, key, seen)
}

// absentFromLastList is true only when the session has listed the resource
// and id is in none of those listings. With nothing remembered the caller
// asks the upstream.
func absentFromLastList[T comparable](ctx context.Context, l listCache, key string, id T) bool {
	if l.store == nil {
		return false
	}

	seen, ok, err := cache.GetJSON[map[string][]T](ctx, l.store, key)
	if err != nil || !ok || len(seen) == 0 {
		return false
	}

	for _, ids := range seen {
		for _, v := range ids {
			if v == id {
				return false
			}
		}
	}

	return true
}
