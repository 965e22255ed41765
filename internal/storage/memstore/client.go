package memstore

import (
	"context"
	"sync"
	"time"
)

const (
	validateLimitWindow = 600 * time.Second
	validateLimitMax    = 20
	subscriptionTTL     = 30 * 24 * time.Hour
)

type subEntry struct {
	data []byte
	exp  time.Time
}

type Client struct {
	mu    sync.Mutex
	limit map[string][]time.Time
	subs  map[string]map[string]subEntry
}

func New() *Client {
	return &Client{
		limit: make(map[string][]time.Time),
		subs:  make(map[string]map[string]subEntry),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) CheckValidateLimit(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-validateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= validateLimitMax {
		c.limit[key] = kept
		return false, nil
	}
	c.limit[key] = append(kept, now)
	return true, nil
}

func (c *Client) AddPushSubscription(ctx context.Context, sessionID, endpoint string, sub []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.subs[sessionID]
	if !ok {
		m = make(map[string]subEntry)
		c.subs[sessionID] = m
	}
	m[endpoint] = subEntry{data: sub, exp: time.Now().Add(subscriptionTTL)}
	return nil
}

func (c *Client) ListPushSubscriptions(ctx context.Context, sessionID string) ([][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	var out [][]byte
	for endpoint, e := range c.subs[sessionID] {
		if now.After(e.exp) {
			delete(c.subs[sessionID], endpoint)
			continue
		}
		out = append(out, e.data)
	}
	return out, nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, sessionID, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.subs[sessionID]; ok {
		delete(m, endpoint)
	}
	return nil
}
