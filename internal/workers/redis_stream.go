package workers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"flashsquad-backend/internal/common/logger"
	"flashsquad-backend/internal/features/squad/models"
)

const (
	RefreshStreamKey = "squads:refresh"
	refreshGroup     = "flashsquad_refresh_consumers"

	eventRefreshHoldings = "refresh_holdings"
)

// Refresher rescans and upserts one user's holdings.
type Refresher interface {
	RefreshHoldings(ctx context.Context, userID string) (*models.UpsertReport, error)
}

// RefreshQueue publishes refresh requests onto the stream.
type RefreshQueue struct {
	rdb    redis.Cmdable
	stream string
}

func NewRefreshQueue(rdb redis.Cmdable) *RefreshQueue {
	return &RefreshQueue{rdb: rdb, stream: RefreshStreamKey}
}

// Enqueue returns the stream message id.
func (q *RefreshQueue) Enqueue(ctx context.Context, userID string) (string, error) {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"type":    eventRefreshHoldings,
			"user_id": userID,
		},
	}).Result()
}

type WorkerOptions struct {
	Consumer string
	Block    time.Duration
	Timeout  time.Duration
}

type RedisStreamWorker struct {
	rdb       redis.Cmdable
	refresher Refresher
	stream    string
	consumer  string
	block     time.Duration
	timeout   time.Duration
}

func NewRedisStreamWorker(rdb redis.Cmdable, refresher Refresher, opts WorkerOptions) *RedisStreamWorker {
	if opts.Consumer == "" {
		opts.Consumer = "flashsquad_worker_1"
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &RedisStreamWorker{
		rdb:       rdb,
		refresher: refresher,
		stream:    RefreshStreamKey,
		consumer:  opts.Consumer,
		block:     opts.Block,
		timeout:   opts.Timeout,
	}
}

// Start consumes refresh requests until ctx is cancelled.
func (w *RedisStreamWorker) Start(ctx context.Context) {
	// "0" so requests queued before the group existed are not lost.
	err := w.rdb.XGroupCreateMkStream(ctx, w.stream, refreshGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		logger.Error().Err(err).Str("stream", w.stream).Msg("Failed to create consumer group")
	}

	logger.Info().Str("stream", w.stream).Str("consumer", w.consumer).Msg("Starting refresh worker")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping refresh worker")
			return
		default:
		}

		entries, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    refreshGroup,
			Consumer: w.consumer,
			Streams:  []string{w.stream, ">"},
			Count:    1,
			Block:    w.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			logger.Warn().Err(err).Msg("Failed to read refresh stream")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				w.processMessage(ctx, msg)
				if err := w.rdb.XAck(ctx, w.stream, refreshGroup, msg.ID).Err(); err != nil {
					logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Failed to ack refresh message")
				}
			}
		}
	}
}

func (w *RedisStreamWorker) processMessage(ctx context.Context, msg redis.XMessage) {
	eventType, _ := msg.Values["type"].(string)
	if eventType != eventRefreshHoldings {
		logger.Warn().Str("message_id", msg.ID).Str("type", eventType).Msg("Unknown stream event")
		return
	}

	userID, _ := msg.Values["user_id"].(string)
	if userID == "" {
		logger.Warn().Str("message_id", msg.ID).Msg("Refresh event without user_id")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if _, err := w.refresher.RefreshHoldings(ctx, userID); err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Holdings refresh failed")
	}
}
