// Package redis remembers which stream offsets were already scored so
// redelivered messages are not published twice.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "fraudserve:scored:"

// NewClient returns a single-node client for one address and a cluster
// client for several.
func NewClient(addrs []string) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:          addrs,
		RouteByLatency: len(addrs) > 1,
	})
}

// WaitReady pings until the server answers or attempts run out.
func WaitReady(ctx context.Context, client redis.UniversalClient, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = client.Ping(ctx).Err(); err == nil {
			return nil
		}
		log.Warnf("[Redis] waiting for server (attempt %d/%d): %v", i+1, attempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("redis not ready after %d attempts: %w", attempts, err)
}

// Deduper marks stream positions as scored for ttl.
type Deduper struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewDeduper(client redis.UniversalClient, ttl time.Duration) *Deduper {
	return &Deduper{client: client, ttl: ttl}
}

// Seen reports whether the position was marked and has not expired.
func (d *Deduper) Seen(ctx context.Context, topic string, partition int32, offset int64) (bool, error) {
	n, err := d.client.Exists(ctx, Key(topic, partition, offset)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// Mark records the position as scored.
func (d *Deduper) Mark(ctx context.Context, topic string, partition int32, offset int64) error {
	if err := d.client.Set(ctx, Key(topic, partition, offset), time.Now().UTC().Format(time.RFC3339), d.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Key is the Redis key for a stream position.
func Key(topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s%s:%d:%d", keyPrefix, topic, partition, offset)
}
