package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abisalde/creator-dashboard/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Invalidator drops cached entries.
type Invalidator interface {
	Delete(ctx context.Context, key string) error
}

// SummaryInvalidationWorker follows the profile event stream and drops the
// cached dashboard summary of every creator whose profile changed.
type SummaryInvalidationWorker struct {
	redisClient *redis.Client
	cache       Invalidator
	log         zerolog.Logger
	block       time.Duration
}

func NewSummaryInvalidationWorker(redisClient *redis.Client, cache Invalidator, log zerolog.Logger) *SummaryInvalidationWorker {
	return &SummaryInvalidationWorker{
		redisClient: redisClient,
		cache:       cache,
		log:         log.With().Str("component", "profile_event_consumer").Logger(),
		block:       5 * time.Second,
	}
}

// Start reads new events until ctx is cancelled. Only events appended after
// Start are seen.
func (w *SummaryInvalidationWorker) Start(ctx context.Context) {
	lastID := "$"

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("profile event consumer shutting down")
			return
		default:
		}

		streams, err := w.redisClient.XRead(ctx, &redis.XReadArgs{
			Streams: []string{ProfileStreamKey, lastID},
			Block:   w.block,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Warn().Err(err).Msg("error reading from stream")
			time.Sleep(1 * time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := w.handleEvent(ctx, msg.Values); err != nil {
					w.log.Warn().Err(err).Str("id", msg.ID).Msg("failed to handle profile event")
				}
				lastID = msg.ID
			}
		}
	}
}

func (w *SummaryInvalidationWorker) handleEvent(ctx context.Context, values map[string]any) error {
	var raw []byte
	switch v := values["event"].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("event field has type %T", values["event"])
	}

	var event ProfileEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if event.EventType != ProfileUpdated || event.CreatorID == "" {
		return nil
	}

	if err := w.cache.Delete(ctx, database.SummaryCacheKey(event.CreatorID)); err != nil {
		return fmt.Errorf("invalidate summary for %s: %w", event.CreatorID, err)
	}
	w.log.Debug().Str("creator_id", event.CreatorID).Msg("dashboard summary invalidated")
	return nil
}
