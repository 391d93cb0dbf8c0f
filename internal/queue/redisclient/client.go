package redisclient

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// wakeKey is a plain list used as a doorbell: the API pushes after enqueueing
// a mail job, the worker blocks on it between polls. The durable queue itself
// lives in postgres; losing a nudge only delays a job by one poll interval.
const wakeKey = "authhub:jobs:wake"

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) *Client {
	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  -1, // blocking pops manage their own deadline
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

// Ping checks redis connectivity.

func (c *Client) Ping(ctx context.Context) error {
	return c.redisdb.Ping(ctx).Err()
}

// Nudge signals the worker that a job was enqueued. Best effort; errors are
// returned for logging but never block the calling flow.
func (c *Client) Nudge(ctx context.Context) error {
	return c.redisdb.LPush(ctx, wakeKey, "1").Err()
}

// WaitNudge blocks until a nudge arrives or the timeout passes. Returns true
// when woken by a nudge.
func (c *Client) WaitNudge(ctx context.Context, timeout time.Duration) (bool, error) {
	res, err := c.redisdb.BRPop(ctx, timeout, wakeKey).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil // timeout, no nudge
		}
		return false, err
	}

	return len(res) > 0, nil
}

// Close shuts the client down.

func (c *Client) Close() error {
	return c.redisdb.Close()
}
