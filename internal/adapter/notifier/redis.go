package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xiaot623/gogo/standup/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// RedisNotifier publishes escalations as JSON on a pub/sub channel.
type RedisNotifier struct {
	rdb     publisher
	channel string
}

// redisMessage is the published envelope.
type redisMessage struct {
	Principal string                 `json:"principal"`
	Event     domain.EscalationEvent `json:"event"`
}

// NewRedisNotifier connects to addr and verifies it with a ping.
func NewRedisNotifier(addr, channel string) (*RedisNotifier, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisNotifier(rdb, channel), nil
}

func newRedisNotifier(rdb publisher, channel string) *RedisNotifier {
	if strings.TrimSpace(channel) == "" {
		channel = "standup-escalations"
	}
	return &RedisNotifier{rdb: rdb, channel: channel}
}

func (n *RedisNotifier) Name() string { return "redis" }

// Close releases the redis connection pool.
func (n *RedisNotifier) Close() error {
	if c, ok := n.rdb.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (n *RedisNotifier) Notify(ctx context.Context, principal string, event domain.EscalationEvent) error {
	raw, err := json.Marshal(redisMessage{Principal: principal, Event: event})
	if err != nil {
		return err
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish escalation for %s: %w", principal, err)
	}
	return nil
}
