package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liveassist/internal/entities"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier appends every event to a Redis stream.
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisClient parses url (redis:// or rediss://) and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedisNotifier(client *redis.Client, stream string) *RedisNotifier {
	return &RedisNotifier{client: client, stream: stream, maxLen: 100000}
}

// Values is the stream entry written for ev, as ordered field/value pairs.
func (n *RedisNotifier) Values(ev entities.Event) ([]interface{}, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		"event_id", ev.ID,
		"event", string(ev.Type),
		"tenant_id", ev.TenantID,
		"request_id", ev.RequestID,
		"time", ev.Time.UTC().Format(time.RFC3339Nano),
		"payload", string(payload),
	}, nil
}

func (n *RedisNotifier) Notify(ctx context.Context, ev entities.Event) error {
	values, err := n.Values(ev)
	if err != nil {
		return err
	}
	err = n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", n.stream, err)
	}
	return nil
}
