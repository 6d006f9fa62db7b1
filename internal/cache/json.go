package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetJSON decodes a cached value. A value that no longer decodes is treated
// as a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T

	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, nil
	}

	return out, true, nil
}

func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return s.Set(ctx, key, b, ttl)
}
