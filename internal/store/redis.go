package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cronchat/internal/models"

	"github.com/redis/go-redis/v9"
)

const latestTTL = 24 * time.Hour

// RedisStore keeps the latest message under a single key so every instance
// behind a load balancer answers polls identically.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, channel string) *RedisStore {
	return &RedisStore{client: client, key: latestKey(channel)}
}

func latestKey(channel string) string {
	return fmt.Sprintf("chat:%s:latest", channel)
}

func (s *RedisStore) SetLatest(ctx context.Context, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, latestTTL).Err()
}

func (s *RedisStore) Latest(ctx context.Context) (models.Message, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Message{}, ErrNoMessage
	}
	if err != nil {
		return models.Message{}, err
	}

	var m models.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return models.Message{}, fmt.Errorf("decode latest message: %w", err)
	}
	return m, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
