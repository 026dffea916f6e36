// Package broker connects this process to the shared pub/sub fabric. All
// fan-out goes through it: events are published to topics, every process
// (the sender's included) receives them back through its own Bridge, and
// only the Bridge writes to local sockets.
package broker

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher sends one event payload to a conversation topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// NewClient dials the broker's Redis endpoint and verifies it is reachable.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// RedisPublisher publishes through a shared Redis client.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

var _ Publisher = (*RedisPublisher)(nil)

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.client.Publish(ctx, topic, payload).Err()
}
