package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisBroker publishes events on one channel per chat so that every
// instance's relay can reach its own connections.
type RedisBroker struct {
	client *redis.Client
	prefix string
}

func NewRedisBroker(client *redis.Client, prefix string) *RedisBroker {
	return &RedisBroker{client: client, prefix: prefix}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := event.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return b.client.Publish(ctx, b.prefix+event.ChatID, payload).Err()
}

// Close leaves the shared client to its owner.
func (b *RedisBroker) Close() error {
	return nil
}

// RedisRelay subscribes to every chat channel and hands messages to the
// local hub.
type RedisRelay struct {
	client    *redis.Client
	prefix    string
	deliverer Deliverer
	logger    *slog.Logger
}

func NewRedisRelay(client *redis.Client, prefix string, deliverer Deliverer, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRelay{client: client, prefix: prefix, deliverer: deliverer, logger: logger.With("component", "redis_relay")}
}

// Run blocks until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s*: %w", r.prefix, err)
	}
	r.logger.Info("redis relay subscribed", "pattern", r.prefix+"*")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(channel, payload string) {
	topic := strings.TrimPrefix(channel, r.prefix)
	if topic == "" || !strings.HasPrefix(channel, r.prefix) {
		r.logger.Warn("redis relay ignoring channel", "channel", channel)
		return
	}
	dispatch(r.deliverer, topic, []byte(payload))
}
