// Package redis delivers offer notifications by pushing JSON payloads onto
// a list consumed by the push-notification workers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/haulcommand/dispatchd/core/notify"
)

const defaultQueueKey = "push:notifications"

// Config holds the Redis connection settings.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	QueueKey string `json:"queue_key"`
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.QueueKey == "" {
		c.QueueKey = defaultQueueKey
	}
}

// Queue implements notify.Notifier on a Redis list.
type Queue struct {
	client *redis.Client
	key    string
}

// Connect opens a client and verifies the connection.
func Connect(ctx context.Context, cfg Config) (*Queue, error) {
	cfg.SetDefaults()
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Queue{client: client, key: cfg.QueueKey}, nil
}

// NewQueue wraps an existing client. Used by tests.
func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = defaultQueueKey
	}
	return &Queue{client: client, key: key}
}

// NotifyOffer implements notify.Notifier. Workers pop with BRPOP, so LPUSH
// keeps delivery order oldest-first.
func (q *Queue) NotifyOffer(ctx context.Context, n notify.OfferNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Close releases the client.
func (q *Queue) Close() error { return q.client.Close() }
