package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Лимит проверок пароля: 20 попыток / 10 минут на ключ (IP). Подписки живут 30 дней.
const (
	ValidateLimitWindow = 600 * time.Second
	ValidateLimitMax    = 20
	SubscriptionTTL     = 30 * 24 * time.Hour
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// CheckValidateLimit инкрементит validate_limit:{key}; TTL ставится на первом инкременте.
func (c *Client) CheckValidateLimit(ctx context.Context, key string) (bool, error) {
	k := "validate_limit:" + key
	n, err := c.cli.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, k, ValidateLimitWindow)
	}
	return n <= int64(ValidateLimitMax), nil
}

// AddPushSubscription кладёт подписку в hash push:subs:{session} (поле — endpoint), TTL обновляется.
func (c *Client) AddPushSubscription(ctx context.Context, sessionID, endpoint string, sub []byte) error {
	k := "push:subs:" + sessionID
	if err := c.cli.HSet(ctx, k, endpoint, sub).Err(); err != nil {
		return err
	}
	return c.cli.Expire(ctx, k, SubscriptionTTL).Err()
}

func (c *Client) ListPushSubscriptions(ctx context.Context, sessionID string) ([][]byte, error) {
	vals, err := c.cli.HVals(ctx, "push:subs:"+sessionID).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, sessionID, endpoint string) error {
	return c.cli.HDel(ctx, "push:subs:"+sessionID, endpoint).Err()
}
