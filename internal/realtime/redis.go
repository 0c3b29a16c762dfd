package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"church-portal/internal/logging"
	"church-portal/internal/models"
)

// Dispatcher delivers an event to local subscribers.
type Dispatcher interface {
	Dispatch(event models.ChatEvent)
}

// Broker fans chat events out across instances over a Redis channel.
// Every instance publishes to the channel and dispatches what it receives,
// including its own events.
type Broker struct {
	client  *redis.Client
	channel string
	log     *slog.Logger
}

// NewBroker builds a Broker on an existing client.
func NewBroker(client *redis.Client, channel string, log *slog.Logger) *Broker {
	if log == nil {
		log = slog.Default()
	}
	return &Broker{client: client, channel: channel, log: log.With(logging.Module("realtime"))}
}

// Publish sends an event to every instance.
func (b *Broker) Publish(ctx context.Context, event models.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal chat event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Run subscribes to the channel and dispatches events until ctx is done.
func (b *Broker) Run(ctx context.Context, dispatcher Dispatcher) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}
	b.log.Info("realtime subscribed", slog.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event models.ChatEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn("discarding malformed chat event", logging.Err(err))
				continue
			}
			dispatcher.Dispatch(event)
		}
	}
}
