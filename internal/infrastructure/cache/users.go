// Package cache holds the optional Redis read-through cache for public user profiles.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-auth-sessions/internal/domain"
	"github.com/redis/go-redis/v9"
)

const userKeyPrefix = "user:"

// UserCache stores PublicUser snapshots under "user:<id>" with a TTL.
type UserCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect parses a redis:// URL and checks the server is reachable.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewUserCache(rdb *redis.Client, ttl time.Duration) *UserCache {
	return &UserCache{rdb: rdb, ttl: ttl}
}

func key(userID string) string { return userKeyPrefix + userID }

// Get returns nil, nil on a miss.
func (c *UserCache) Get(ctx context.Context, userID string) (*domain.PublicUser, error) {
	raw, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var u domain.PublicUser
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, nil
}

func (c *UserCache) Set(ctx context.Context, u *domain.PublicUser) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(u.ID), raw, c.ttl).Err()
}

func (c *UserCache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, key(userID)).Err()
}

func (c *UserCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Nop is used when no Redis URL is configured. Every Get misses.
type Nop struct{}

func (Nop) Get(context.Context, string) (*domain.PublicUser, error) { return nil, nil }
func (Nop) Set(context.Context, *domain.PublicUser) error           { return nil }
func (Nop) Invalidate(context.Context, string) error                { return nil }
