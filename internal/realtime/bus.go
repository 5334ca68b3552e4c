package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Frame is one fan-out delivery relayed between processes. Payload is an
// encoded Envelope; Node names the process that produced it.
type Frame struct {
	Node    string          `json:"node"`
	Topics  []string        `json:"topics"`
	Payload json.RawMessage `json:"payload"`
}

// Bus relays frames to every other router process.
type Bus interface {
	Publish(ctx context.Context, f Frame) error
	// Subscribe calls handle for every frame until ctx is done.
	Subscribe(ctx context.Context, handle func(Frame)) error
}

// NopBus is used by single-process deployments.
type NopBus struct{}

func (NopBus) Publish(context.Context, Frame) error { return nil }

func (NopBus) Subscribe(ctx context.Context, _ func(Frame)) error {
	<-ctx.Done()
	return nil
}

// RedisBus relays frames over a Redis pub/sub channel.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewRedisBus(client *redis.Client, channel string, logger zerolog.Logger) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "bus").Str("channel", channel).Logger(),
	}
}

func (b *RedisBus) Publish(ctx context.Context, f Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, handle func(Frame)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	b.logger.Info().Msg("bus subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var f Frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				b.logger.Warn().Err(err).Msg("dropping malformed bus frame")
				continue
			}
			handle(f)
		}
	}
}
