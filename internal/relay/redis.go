package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"cronchat/internal/metrics"
	"cronchat/internal/models"
	"cronchat/internal/types"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis relays through a pub/sub channel. Every instance subscribes and
// delivers to its own sockets, so Publish never delivers locally.
type Redis struct {
	client   *redis.Client
	channel  string
	instance string
	out      Deliverer
	logger   zerolog.Logger

	readyOnce sync.Once
	ready     chan struct{}
	stopped   atomic.Bool
}

var (
	ErrNotSubscribed = errors.New("relay not subscribed")
	ErrStopped       = errors.New("relay subscription stopped")
)

func NewRedis(client *redis.Client, channel, instance string, out Deliverer, logger zerolog.Logger) *Redis {
	return &Redis{
		client:   client,
		channel:  channel,
		instance: instance,
		out:      out,
		logger:   logger.With().Str("component", "relay").Str("relay", "redis").Str("channel", channel).Logger(),
		ready:    make(chan struct{}),
	}
}

func (r *Redis) Publish(ctx context.Context, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(types.Envelope{
		Event:  types.EventNewMessage,
		Data:   data,
		Origin: r.instance,
	})
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		metrics.RelayErrors.WithLabelValues(r.Name()).Inc()
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Subscribed is closed once the channel subscription is confirmed.
func (r *Redis) Subscribed() <-chan struct{} {
	return r.ready
}

func (r *Redis) Run(ctx context.Context) error {
	defer r.stopped.Store(true)

	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info().Msg("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("subscription closed")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription channel closed")
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Redis) handle(payload string) {
	var env types.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed pub/sub payload")
		return
	}
	if env.Event != types.EventNewMessage {
		r.logger.Debug().Str("event", env.Event).Msg("ignoring event")
		return
	}

	var m models.Message
	if err := json.Unmarshal(env.Data, &m); err != nil {
		r.logger.Warn().Err(err).Msg("dropping malformed message")
		return
	}
	r.out.Deliver(m)
	r.logger.Debug().Str("id", m.ID).Str("origin", env.Origin).Msg("message delivered")
}

// Ping reports whether messages published now would reach this instance.
func (r *Redis) Ping(ctx context.Context) error {
	if r.stopped.Load() {
		return ErrStopped
	}
	select {
	case <-r.ready:
	default:
		return ErrNotSubscribed
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Name() string { return "redis" }
