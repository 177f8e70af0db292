package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultOpTimeout bounds every store call when no timeout is configured.
const DefaultOpTimeout = 5 * time.Second

var (
	// ErrDisconnected reports an operation attempted without a live store.
	ErrDisconnected = errors.New("cache: not connected")
	// ErrSerialization reports a value that cannot be encoded as JSON.
	ErrSerialization = errors.New("cache: value not serializable")
	// ErrCorruptEntry reports a stored payload that does not decode.
	ErrCorruptEntry = errors.New("cache: corrupt entry")
	// ErrInvalidTTL reports a write without a positive expiration.
	ErrInvalidTTL = errors.New("cache: ttl must be positive")
)

// Status is the outcome of a cache operation.
type Status int

const (
	StatusMiss Status = iota
	StatusHit
	StatusStored
	StatusDeleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusMiss:
		return "miss"
	case StatusHit:
		return "hit"
	case StatusStored:
		return "stored"
	case StatusDeleted:
		return "deleted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is returned by every ResponseCache operation in place of an error.
// A failed result carries the reason in Err; callers fall through to the
// origin on anything that is not a hit.
type Result struct {
	Status Status
	// Count is the number of keys removed by Delete and ClearPattern.
	Count int
	Err   error
}

// Hit reports whether a Get found and decoded an entry.
func (r Result) Hit() bool { return r.Status == StatusHit }

// OK reports whether the operation succeeded (hits, writes and deletes).
func (r Result) OK() bool {
	return r.Status == StatusHit || r.Status == StatusStored || r.Status == StatusDeleted
}

func failed(err error) Result { return Result{Status: StatusFailed, Err: err} }

type storeHandle struct {
	store Store
}

// ResponseCache is a best-effort cache in front of slow origin calls.
// It never fails its caller: an unavailable store turns every read into a
// miss and every write into a failed Result.
//
// One instance is shared by all request handlers. Connect and Disconnect
// are called from process startup and shutdown.
type ResponseCache struct {
	open      Opener
	opTimeout time.Duration
	logger    *zap.Logger

	handle    atomic.Pointer[storeHandle]
	lifecycle sync.Mutex
}

// Option customizes a ResponseCache.
type Option func(*ResponseCache)

// WithOpTimeout sets the per-operation timeout.
func WithOpTimeout(d time.Duration) Option {
	return func(c *ResponseCache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithLogger sets the logger used for connection and failure events.
func WithLogger(l *zap.Logger) Option {
	return func(c *ResponseCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewResponseCache returns a disconnected cache that will use open to
// reach its store.
func NewResponseCache(open Opener, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		open:      open,
		opTimeout: DefaultOpTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cache")
	return c
}

// Connect opens the store and pings it. On failure the cache stays
// disconnected and the error is logged; Connect itself never fails.
func (c *ResponseCache) Connect(ctx context.Context) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.handle.Load() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	store, err := c.open(ctx)
	if err != nil {
		c.logger.Error("cache connection failed", zap.Error(err))
		return
	}
	if err := store.Ping(ctx); err != nil {
		c.logger.Error("cache connection failed", zap.Error(err))
		if cerr := store.Close(); cerr != nil {
			c.logger.Warn("cache close after failed ping", zap.Error(cerr))
		}
		return
	}

	c.handle.Store(&storeHandle{store: store})
	c.logger.Info("connected to cache store")
}

// Disconnect releases the store. It is safe to call when never connected
// and safe to call more than once.
func (c *ResponseCache) Disconnect() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	h := c.handle.Swap(nil)
	if h == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		c.logger.Warn("cache disconnect error", zap.Error(err))
		return
	}
	c.logger.Info("disconnected from cache store")
}

// Connected reports whether a live store is attached.
func (c *ResponseCache) Connected() bool {
	return c.handle.Load() != nil
}

func (c *ResponseCache) store() Store {
	if h := c.handle.Load(); h != nil {
		return h.store
	}
	return nil
}

// Get looks key up and decodes the stored JSON into dst.
// A corrupt payload is reported as a failed Result, never as a panic; the
// next Set for the key overwrites it.
func (c *ResponseCache) Get(ctx context.Context, key string, dst any) Result {
	store := c.store()
	if store == nil {
		return Result{Status: StatusMiss, Err: ErrDisconnected}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get error", zap.String("key", key), zap.Error(err))
		return failed(err)
	}
	if !ok {
		return Result{Status: StatusMiss}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Error("cache get error", zap.String("key", key), zap.Error(err))
		return failed(fmt.Errorf("%w: %v", ErrCorruptEntry, err))
	}
	return Result{Status: StatusHit}
}

// Set stores value as JSON under key with the given expiration.
func (c *ResponseCache) Set(ctx context.Context, key string, value any, ttl time.Duration) Result {
	store := c.store()
	if store == nil {
		return failed(ErrDisconnected)
	}
	if ttl <= 0 {
		return failed(ErrInvalidTTL)
	}

	payload, err := encode(value)
	if err != nil {
		c.logger.Error("cache set error", zap.String("key", key), zap.Error(err))
		return failed(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := store.Set(ctx, key, payload, ttl); err != nil {
		c.logger.Error("cache set error", zap.String("key", key), zap.Error(err))
		return failed(err)
	}
	return Result{Status: StatusStored}
}

// SetCategory stores value with the TTL of category.
func (c *ResponseCache) SetCategory(ctx context.Context, category Category, key string, value any) Result {
	if !category.Valid() {
		return failed(fmt.Errorf("%w: %s", ErrUnknownCategory, category))
	}
	return c.Set(ctx, key, value, category.TTL())
}

// Delete removes a single key. Deleting an absent key succeeds with Count 0.
func (c *ResponseCache) Delete(ctx context.Context, key string) Result {
	store := c.store()
	if store == nil {
		return failed(ErrDisconnected)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	n, err := store.Delete(ctx, key)
	if err != nil {
		c.logger.Error("cache delete error", zap.String("key", key), zap.Error(err))
		return failed(err)
	}
	return Result{Status: StatusDeleted, Count: n}
}

// ClearPattern deletes every key matching a glob pattern (e.g. "search:*")
// in one batch. Count is zero when nothing matched or on failure.
func (c *ResponseCache) ClearPattern(ctx context.Context, pattern string) Result {
	store := c.store()
	if store == nil {
		return failed(ErrDisconnected)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	keys, err := store.Keys(ctx, pattern)
	if err != nil {
		c.logger.Error("cache clear error", zap.String("pattern", pattern), zap.Error(err))
		return failed(err)
	}
	if len(keys) == 0 {
		return Result{Status: StatusDeleted}
	}

	n, err := store.Delete(ctx, keys...)
	if err != nil {
		c.logger.Error("cache clear error", zap.String("pattern", pattern), zap.Error(err))
		return failed(err)
	}

	c.logger.Info("cache pattern cleared",
		zap.String("pattern", pattern),
		zap.Int("removed", n),
	)
	return Result{Status: StatusDeleted, Count: n}
}
