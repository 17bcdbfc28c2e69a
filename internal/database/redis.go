package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/edugate/internal/config"
)

// NewRedis connects the session record store. Redis often comes up after
// the gateway in compose setups, so the first ping is retried like
// MariaDB's.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	return newRedis(cfg, maxPingRetries, time.Second)
}

func newRedis(cfg config.RedisConfig, attempts int, backoff time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }
	if err := waitFor("redis", attempts, backoff, ping); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
