package redisclient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned by a nil Client.
var ErrNotConfigured = errors.New("redis not configured")

// wakeChannel carries a ping whenever a task is enqueued so idle workers
// can claim it before their next poll.
const wakeChannel = "urwriter:tasks:wake"

type Client struct {
	redisdb *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

// New returns nil when no address is configured. A nil *Client is usable:
// every method reports ErrNotConfigured or does nothing.
func New(cfg Config) *Client {
	if cfg.Addr == "" {
		return nil
	}

	redisdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Client{redisdb: redisdb}
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return ErrNotConfigured
	}
	return c.redisdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.redisdb.Close()
}

// Raw exposes the client for the rate limiter.
func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.redisdb
}

// Wake tells subscribed workers that a task is waiting.
func (c *Client) Wake(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.redisdb.Publish(ctx, wakeChannel, time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

// SubscribeWake delivers one signal per wake message until ctx is done.
// Signals are coalesced: a worker that is busy sees at most one pending
// wake.
func (c *Client) SubscribeWake(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	if c == nil {
		close(out)
		return out
	}

	sub := c.redisdb.Subscribe(ctx, wakeChannel)

	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				slog.Default().Debug("redis.wake_unsubscribe_failed", "err", err)
			}
		}()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out
}
