package broker

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/chatfabric/chatfabric/internal/metrics"
	"github.com/chatfabric/chatfabric/pkg/state"
	"github.com/chatfabric/chatfabric/pkg/topic"
)

// Bridge subscribes to the conversation topic patterns and fans every
// received publication out to the matching local connections. It is the
// only component that turns broker events into socket writes.
type Bridge struct {
	client   *redis.Client
	registry state.Manager
	logger   *slog.Logger
}

func NewBridge(client *redis.Client, registry state.Manager, logger *slog.Logger) *Bridge {
	return &Bridge{
		client:   client,
		registry: registry,
		logger:   logger.With(slog.String("component", "broker_bridge")),
	}
}

// Run blocks consuming the pattern subscription until ctx is cancelled.
// go-redis guarantees per-channel delivery order on a single subscriber
// connection, which is what keeps single-conversation ordering intact.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.client.PSubscribe(ctx, topic.Patterns...)
	defer pubsub.Close()

	// Fail fast if the subscription could not be established.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("Bridge subscribed", slog.Any("patterns", topic.Patterns))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.Dispatch(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Dispatch delivers one publication to every local connection that should
// see it. Delivery is fire-and-forget per connection: Send never blocks,
// so one stalled or closing client cannot affect its siblings.
func (b *Bridge) Dispatch(t string, payload []byte) {
	if t == topic.Status {
		// Presence is a broadcast topic: every local connection hears it.
		for _, conn := range b.registry.Connections() {
			conn.Transport.Send(payload)
			metrics.BridgeDeliveries.Inc()
		}
		return
	}

	if _, _, err := topic.Parse(t); err != nil {
		b.logger.Warn("Dropping publication on unparseable topic", slog.String("topic", t))
		return
	}

	for _, conn := range b.registry.LocalTargets(t) {
		conn.Transport.Send(payload)
		metrics.BridgeDeliveries.Inc()
	}
}
