package events

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher fans events out over a redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event EvidenceEvent) error {
	payload, err := encode(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close leaves the client open; it is shared with the rest of the app.
func (p *RedisPublisher) Close() error {
	return nil
}
