package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared origin load once it is detached from
// the caller that started it.
const DefaultLoadTimeout = 2 * time.Minute

// Loader computes the authoritative value on a cache miss.
type Loader[T any] func(ctx context.Context) (T, error)

// Fetcher runs cache-aside lookups and collapses concurrent misses for the
// same key into one origin call.
type Fetcher struct {
	cache       *ResponseCache
	loadTimeout time.Duration
	group       singleflight.Group
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithLoadTimeout sets the deadline applied to shared loads.
func WithLoadTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.loadTimeout = d
		}
	}
}

func NewFetcher(c *ResponseCache, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{cache: c, loadTimeout: DefaultLoadTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Cache returns the underlying ResponseCache.
func (f *Fetcher) Cache() *ResponseCache { return f.cache }

type shared[T any] struct {
	value  T
	cached bool
}

// Fetch returns the cached value for key in category, or calls load and
// stores its result. The bool is true when the value came from the cache.
// Only load errors are returned; cache failures degrade to a load.
//
// The shared load runs on a context that keeps ctx's values but not its
// cancellation, so a caller that gives up only abandons its own wait.
func Fetch[T any](ctx context.Context, f *Fetcher, category Category, key string, load Loader[T]) (T, bool, error) {
	var zero T

	var cached T
	if f.cache.Get(ctx, key, &cached).Hit() {
		return cached, true, nil
	}

	ch := f.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.loadTimeout)
		defer cancel()

		// another caller may have filled the entry while we waited
		var again T
		if f.cache.Get(loadCtx, key, &again).Hit() {
			return shared[T]{value: again, cached: true}, nil
		}
		fresh, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		f.cache.SetCategory(loadCtx, category, key, fresh)
		return shared[T]{value: fresh}, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		out, ok := res.Val.(shared[T])
		if !ok {
			return zero, false, fmt.Errorf("cache: unexpected type %T from shared fetch", res.Val)
		}
		return out.value, out.cached, nil
	}
}
