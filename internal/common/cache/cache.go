package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// CacheService stores JSON values in Redis.
type CacheService struct {
	rdb redis.Cmdable
}

func NewCacheService(rdb redis.Cmdable) *CacheService {
	return &CacheService{rdb: rdb}
}

func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// GetOrSet reads key into dest, calling setter and caching its result on a miss.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrMiss) {
		return err
	}

	value, err := setter()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Key helpers shared by the features that cache through this service.

func ENSKey(address string) string {
	return "ens:" + address
}

func SquadFeedKey(squadID string) string {
	return "feed:" + squadID
}

func AssemblyKey(assemblyID string) string {
	return "assembly:" + assemblyID
}
