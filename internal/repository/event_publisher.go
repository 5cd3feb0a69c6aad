package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/manuscript-review/internal/models"
)

// DefaultEventChannel is the pub/sub channel sync events are relayed to.
const DefaultEventChannel = "manuscript-review:sync-events"

// EventPublisher relays sync lifecycle events to a Redis pub/sub channel so
// other processes can follow reconciliation progress.
type EventPublisher struct {
	client  *redis.Client
	channel string
}

// NewEventPublisher constructs a publisher. An empty channel falls back to DefaultEventChannel.
func NewEventPublisher(client *redis.Client, channel string) *EventPublisher {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &EventPublisher{client: client, channel: channel}
}

// Channel returns the channel events are published on.
func (p *EventPublisher) Channel() string {
	return p.channel
}

// Publish encodes the event as JSON and publishes it. It returns the number of
// subscribers that received the message.
func (p *EventPublisher) Publish(ctx context.Context, event models.SyncEvent) (int64, error) {
	if p == nil || p.client == nil {
		return 0, nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("marshal sync event: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return receivers, nil
}
