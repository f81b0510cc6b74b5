package services

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NotificationPort delivers operator alerts. Delivery is best effort.
type NotificationPort interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes alerts to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier logging under "alerts".
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("alerts")}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	n.logger.Warn("transaction alert", zap.String("message", message))
	return nil
}

// DefaultAlertKey is the Redis list alerts are pushed to.
const DefaultAlertKey = "txauth:alerts"

// RedisNotifier pushes alerts onto a Redis list for downstream consumers.
type RedisNotifier struct {
	client *redis.Client
	key    string
}

// NewRedisNotifier creates a notifier pushing to key, or DefaultAlertKey when empty.
func NewRedisNotifier(client *redis.Client, key string) *RedisNotifier {
	if key == "" {
		key = DefaultAlertKey
	}
	return &RedisNotifier{client: client, key: key}
}

// Notify appends message to the alert list.
func (n *RedisNotifier) Notify(ctx context.Context, message string) error {
	if err := n.client.RPush(ctx, n.key, message).Err(); err != nil {
		return fmt.Errorf("push alert: %w", err)
	}
	return nil
}

// Recent returns up to count of the newest alerts, oldest first. A
// non-positive count returns nothing without touching Redis.
func (n *RedisNotifier) Recent(ctx context.Context, count int64) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}
	alerts, err := n.client.LRange(ctx, n.key, -count, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read alerts: %w", err)
	}
	return alerts, nil
}

// FanoutNotifier delivers to every port and returns the first error.
type FanoutNotifier []NotificationPort

func (f FanoutNotifier) Notify(ctx context.Context, message string) error {
	var first error
	for _, n := range f {
		if err := n.Notify(ctx, message); err != nil && first == nil {
			first = err
		}
	}
	return first
}
