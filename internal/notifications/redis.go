package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/go-redis/redis/v8"
)

// Channel is the pub/sub channel a recipient's clients subscribe to.
func Channel(recipientID fmt.Stringer) string {
	return "notifications:" + recipientID.String()
}

// RedisPublisher pushes notifications over Redis pub/sub.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to redisURL and verifies the connection.
func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

type pushMessage struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	TitleKey   string         `json:"titleKey"`
	MessageKey string         `json:"messageKey"`
	Data       map[string]any `json:"data"`
	CreatedAt  time.Time      `json:"createdAt"`
}

func (p *RedisPublisher) Publish(ctx context.Context, n store.Notification) error {
	payload, err := json.Marshal(pushMessage{
		ID:         n.ID.String(),
		Type:       n.Type,
		TitleKey:   n.TitleKey,
		MessageKey: n.MessageKey,
		Data:       n.Data,
		CreatedAt:  n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	if err := p.client.Publish(ctx, Channel(n.RecipientID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
