package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts events over redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, userID uuid.UUID, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Subject(p.prefix, topic, userID), data).Err()
}

// Close is a no-op; the redis client is shared and closed by its owner.
func (p *RedisPublisher) Close() {}
