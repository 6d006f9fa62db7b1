package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares cached lists between API replicas.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

func NewRedisStore(rdb *redis.Client, namespace string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &RedisStore{rdb: rdb, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}

	return s.namespace + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}

	return s.rdb.Set(ctx, s.key(key), val, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.key(k))
	}

	return s.rdb.Del(ctx, full...).Err()
}

func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, s.key(prefix)+"*", 200).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 200 {
			if err := s.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if err := iter.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		return s.rdb.Del(ctx, batch...).Err()
	}

	return nil
}
