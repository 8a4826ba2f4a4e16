package pubsub

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/storage"
	"github.com/richgang/indice-killer/pkg/logger"
)

// Sink receives broadcast messages, typically the local WebSocket hub
type Sink interface {
	Broadcast(ctx context.Context, msg models.BroadcastMessage)
}

type envelope struct {
	Origin  string                  `json:"origin"`
	Message models.BroadcastMessage `json:"message"`
}

// Relay shares broadcasts between replicas over a Redis pub/sub channel.
// Messages published by this relay are not delivered back to it.
type Relay struct {
	redis   storage.RedisClient
	channel string
	origin  string
}

// NewRelay creates a relay on channel
func NewRelay(redis storage.RedisClient, channel string) *Relay {
	return &Relay{
		redis:   redis,
		channel: channel,
		origin:  uuid.New().String(),
	}
}

// Broadcast publishes msg for the other replicas. Failures are logged.
func (r *Relay) Broadcast(ctx context.Context, msg models.BroadcastMessage) {
	err := r.redis.Publish(ctx, r.channel, envelope{Origin: r.origin, Message: msg})
	if err != nil {
		logger.Warn("Failed to relay broadcast",
			logger.String("channel", r.channel),
			logger.String("type", string(msg.Type)),
			logger.ErrorField(err),
		)
	}
}

// Run forwards messages from other replicas to sink until ctx is done
func (r *Relay) Run(ctx context.Context, sink Sink) error {
	messages, err := r.redis.Subscribe(ctx, r.channel)
	if err != nil {
		return err
	}

	logger.Info("Broadcast relay subscribed", logger.String("channel", r.channel))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Message), &env); err != nil {
				logger.Warn("Dropping malformed relay message",
					logger.String("channel", msg.Channel),
					logger.ErrorField(err),
				)
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			sink.Broadcast(ctx, env.Message)
		}
	}
}
