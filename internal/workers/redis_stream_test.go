package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flashsquad-backend/internal/features/squad/models"
)

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
	err   error
	done  chan string
}

func (f *fakeRefresher) RefreshHoldings(ctx context.Context, userID string) (*models.UpsertReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userID)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- userID
	}
	return &models.UpsertReport{}, f.err
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRefreshQueue_Enqueue(t *testing.T) {
	rdb := newRedis(t)
	q := NewRefreshQueue(rdb)

	id, err := q.Enqueue(context.Background(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs, err := rdb.XRange(context.Background(), RefreshStreamKey, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "refresh_holdings", msgs[0].Values["type"])
	assert.Equal(t, "user-1", msgs[0].Values["user_id"])
}

func TestWorker_ProcessesQueuedRefresh(t *testing.T) {
	rdb := newRedis(t)
	ref := &fakeRefresher{done: make(chan string, 1)}
	w := NewRedisStreamWorker(rdb, ref, WorkerOptions{Block: 50 * time.Millisecond})

	// Queued before the worker starts.
	_, err := NewRefreshQueue(rdb).Enqueue(context.Background(), "user-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(stopped)
	}()

	select {
	case got := <-ref.done:
		assert.Equal(t, "user-1", got)
	case <-time.After(3 * time.Second):
		t.Fatal("refresh was not processed")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	pending, err := rdb.XPending(context.Background(), RefreshStreamKey, refreshGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestWorker_ProcessMessage(t *testing.T) {
	ref := &fakeRefresher{err: errors.New("indexer down")}
	w := NewRedisStreamWorker(newRedis(t), ref, WorkerOptions{})

	w.processMessage(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]interface{}{"type": "other"}})
	w.processMessage(context.Background(), redis.XMessage{ID: "2-0", Values: map[string]interface{}{"type": "refresh_holdings"}})
	w.processMessage(context.Background(), redis.XMessage{ID: "3-0", Values: map[string]interface{}{
		"type": "refresh_holdings", "user_id": "user-9",
	}})

	assert.Equal(t, []string{"user-9"}, ref.calls)
}
