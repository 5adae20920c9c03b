package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const processedEventPrefix = "payment_event:"

type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewClient connects and pings Redis. ttl bounds how long processed notification
// ids are remembered; the gateway stops redelivering well within a few days.
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb, ttl: ttl}, nil
}

func NewFromRedis(rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{rdb: rdb, ttl: ttl}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, processedEventPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	return n > 0, nil
}

// MarkProcessed records eventID. It reports false if the id was already recorded.
func (c *Client) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, processedEventPrefix+eventID, time.Now().Unix(), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event %s: %w", eventID, err)
	}
	return ok, nil
}
