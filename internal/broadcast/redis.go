package broadcast

import (
	"context"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "broadcast:"

// Redis is a Broadcaster backed by Redis pub/sub, for running several
// instances behind a load balancer. Broadcast only publishes; delivery to
// local subscribers happens in the subscription loop, so each instance
// (including the publisher) delivers a message exactly once.
type Redis struct {
	client *redis.Client
	local  *Local
	logger *slog.Logger
}

func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		local:  NewLocal(),
		logger: logger,
	}
}

func (r *Redis) Join(group string, sub Subscriber) {
	r.local.Join(group, sub)
}

func (r *Redis) Leave(group string, sub Subscriber) {
	r.local.Leave(group, sub)
}

func (r *Redis) Broadcast(ctx context.Context, group string, payload []byte) error {
	return r.client.Publish(ctx, channelPrefix+group, payload).Err()
}

// Run pumps Redis pub/sub messages to local subscribers until the context is
// cancelled. It must be running for Broadcast to reach anyone.
func (r *Redis) Run(ctx context.Context) {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("broadcast subscription channel closed")
				return
			}
			group := strings.TrimPrefix(msg.Channel, channelPrefix)
			if err := r.local.Broadcast(ctx, group, []byte(msg.Payload)); err != nil {
				r.logger.Error("broadcast delivery failed", "group", group, "err", err)
			}
		}
	}
}
