package cache

import (
	"context"
	"time"
)

// Store is the key-value backend behind ResponseCache.
// Implemented by the memory store (dev, tests) and the Redis store (prod).
type Store interface {
	// Get returns (nil, false, nil) on a clean miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int, error)
	// Keys lists keys matching a Redis-style glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Opener establishes a Store. It is called once by ResponseCache.Connect.
type Opener func(ctx context.Context) (Store, error)
