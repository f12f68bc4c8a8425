package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"flashsquad-backend/internal/common/config"
	"flashsquad-backend/internal/common/logger"
)

// Client wraps go-redis client to allow future extensions.
type Client struct {
	*redis.Client
}

// Open creates a new Redis client and pings it to validate the connection.
func Open(ctx context.Context, addr, password string, db int) (*Client, error) {
	if addr == "" {
		return nil, fmt.Errorf("empty redis addr")
	}
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Client{Client: c}, nil
}

// OpenFromConfig opens the client described by cfg.Redis.
func OpenFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	c, err := Open(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("addr", addr).Int("db", cfg.Redis.DB).Msg("Redis client initialized")
	return c, nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
