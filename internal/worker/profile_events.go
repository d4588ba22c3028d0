package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ProfileStreamKey = "creator_profile_events"
	ProfileUpdated   = "profile_updated"

	streamMaxLen = 100000
)

type ProfileEvent struct {
	CreatorID string    `json:"creator_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
}

// ProfileEventPublisher appends profile events to the Redis stream.
type ProfileEventPublisher struct {
	redisClient *redis.Client
	now         func() time.Time
}

func NewProfileEventPublisher(redisClient *redis.Client) *ProfileEventPublisher {
	return &ProfileEventPublisher{redisClient: redisClient, now: time.Now}
}

func (p *ProfileEventPublisher) PublishProfileUpdated(ctx context.Context, creatorID string) error {
	event := ProfileEvent{
		CreatorID: creatorID,
		Timestamp: p.now(),
		EventType: ProfileUpdated,
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal profile event: %w", err)
	}

	_, err = p.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: ProfileStreamKey,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"event": eventData},
	}).Result()
	return err
}
