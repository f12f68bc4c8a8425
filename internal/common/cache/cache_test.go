package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name"`
}

func newService(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCacheService(rdb), mr
}

func TestSetGet(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", item{Name: "a"}, time.Minute))

	var got item
	require.NoError(t, svc.Get(ctx, "k", &got))
	assert.Equal(t, "a", got.Name)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, svc.Get(ctx, "k", &got), ErrMiss)
}

func TestGetOrSet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	calls := 0
	setter := func() (interface{}, error) {
		calls++
		return item{Name: "fresh"}, nil
	}

	var got item
	require.NoError(t, svc.GetOrSet(ctx, "k", &got, time.Minute, setter))
	require.NoError(t, svc.GetOrSet(ctx, "k", &got, time.Minute, setter))

	assert.Equal(t, "fresh", got.Name)
	assert.Equal(t, 1, calls)
}

func TestGetOrSet_SetterError(t *testing.T) {
	svc, _ := newService(t)
	boom := errors.New("boom")

	var got item
	err := svc.GetOrSet(context.Background(), "k", &got, time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestDelete(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "a", 1, 0))
	require.NoError(t, svc.Set(ctx, "b", 2, 0))

	require.NoError(t, svc.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	assert.NoError(t, svc.Delete(ctx))
}
