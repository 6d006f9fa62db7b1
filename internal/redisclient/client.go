package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	redisdb *redis.Client
	addr    string
}

// Config takes either a redis:// URL or discrete fields. A non-empty URL wins;
// Password and DB still override what the URL carries when set.
type Config struct {
	URL      string
	Addr     string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

func options(cfg Config) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Addr}
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redisclient: parse url: %w", err)
		}
		opts = parsed
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redisclient: no address configured")
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	return opts, nil
}

// Connect builds the client and waits for a PONG, retrying a few times while
// redis comes up next to the api container.
func Connect(ctx context.Context, cfg Config, attempts int) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{redisdb: redis.NewClient(opts), addr: opts.Addr}

	if attempts <= 0 {
		attempts = 1
	}

	backoff := 200 * time.Millisecond
	for i := 1; ; i++ {
		err = c.Ping(ctx)
		if err == nil {
			return c, nil
		}
		if i == attempts {
			break
		}

		select {
		case <-ctx.Done():
			_ = c.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	_ = c.Close()
	return nil, fmt.Errorf("redisclient: ping %s: %w", opts.Addr, err)
}

func (c *Client) Addr() string { return c.addr }

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.redisdb.Close()
}

// Raw exposes the underlying client for the cache and session stores.
func (c *Client) Raw() *redis.Client {
	return c.redisdb
}
