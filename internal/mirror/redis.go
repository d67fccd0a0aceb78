package mirror

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores the latest frame under a key and publishes it on a
// channel, so late joiners can GET while live readers SUBSCRIBE.
type RedisSink struct {
	client  redis.Cmdable
	closer  func() error
	key     string
	channel string
}

// NewRedisSink connects to addr lazily; go-redis dials on first use.
func NewRedisSink(addr, key, channel string) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	return &RedisSink{client: client, closer: client.Close, key: key, channel: channel}
}

// newRedisSinkWith wraps an existing client.
func newRedisSinkWith(client redis.Cmdable, key, channel string) *RedisSink {
	return &RedisSink{client: client, closer: func() error { return nil }, key: key, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

// Write sets the key, then publishes. Expiry is left unset; the key always
// holds the most recent state.
func (s *RedisSink) Write(ctx context.Context, payload []byte) error {
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", s.channel, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.closer()
}
