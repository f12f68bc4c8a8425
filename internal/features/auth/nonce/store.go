package nonce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "siwe_nonce:"

// ErrNotFound means the nonce was never issued, already used or expired.
var ErrNotFound = errors.New("nonce not found")

// Store keeps one-time sign-in nonces in Redis.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Issue creates a fresh nonce valid for the store's TTL.
func (s *Store) Issue(ctx context.Context) (string, error) {
	n := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.client.Set(ctx, keyPrefix+n, time.Now().Unix(), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to save nonce: %w", err)
	}
	return n, nil
}

// Consume deletes the nonce, failing if it is not live. A nonce can be
// consumed at most once.
func (s *Store) Consume(ctx context.Context, n string) error {
	if n == "" {
		return ErrNotFound
	}
	err := s.client.GetDel(ctx, keyPrefix+n).Err()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	return nil
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}
