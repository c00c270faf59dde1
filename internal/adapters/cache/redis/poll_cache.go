// Package redis caches the poll listing in Redis as a single JSON value.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

const (
	DefaultTTL = 30 * time.Second

	listingKey    = "polls:listing"
	generationKey = "polls:listing:generation"
)

// errStaleListing aborts a fill whose listing predates an invalidation.
var errStaleListing = errors.New("poll listing is stale")

type PollCache struct {
	client *goredis.Client
	ttl    time.Duration
}

var _ ports.PollCache = (*PollCache)(nil)

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string, ttl time.Duration) (*PollCache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	c := goredis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}

	return NewPollCache(c, ttl), nil
}

func NewPollCache(client *goredis.Client, ttl time.Duration) *PollCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PollCache{client: client, ttl: ttl}
}

func (c *PollCache) GetPolls(ctx context.Context) ([]*domain.Poll, bool, error) {
	b, err := c.client.Get(ctx, listingKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("error reading poll listing from redis: %w", err)
	}

	var polls []*domain.Poll
	if err := json.Unmarshal(b, &polls); err != nil {
		return nil, false, fmt.Errorf("error decoding cached poll listing: %w", err)
	}
	return polls, true, nil
}

// Generation returns the invalidation counter; a key that was never
// incremented reads as zero.
func (c *PollCache) Generation(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error reading poll listing generation: %w", err)
	}
	return n, nil
}

// SetPolls writes the listing only while the generation still equals
// generation. The check and the write run under WATCH, so an Invalidate
// racing with the fill aborts it. A stale fill is dropped silently.
func (c *PollCache) SetPolls(ctx context.Context, polls []*domain.Poll, generation int64) error {
	b, err := json.Marshal(polls)
	if err != nil {
		return fmt.Errorf("error encoding poll listing: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if current != generation {
			return errStaleListing
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, listingKey, b, c.ttl)
			return nil
		})
		return err
	}, generationKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errStaleListing), errors.Is(err, goredis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("error writing poll listing to redis: %w", err)
	}
}

// Invalidate advances the generation and drops the listing in one
// transaction.
func (c *PollCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, listingKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error invalidating poll listing: %w", err)
	}
	return nil
}

func (c *PollCache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("error closing redis client: %w", err)
	}
	return nil
}
