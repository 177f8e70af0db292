package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// brokenStore fails every call, standing in for an unreachable backend.
type brokenStore struct {
	err    error
	closed bool
}

func (s *brokenStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, s.err }
func (s *brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return s.err
}
func (s *brokenStore) Delete(context.Context, ...string) (int, error) { return 0, s.err }
func (s *brokenStore) Keys(context.Context, string) ([]string, error) { return nil, s.err }
func (s *brokenStore) Ping(context.Context) error { return s.err }
func (s *brokenStore) Close() error {
	s.closed = true
	return nil
}

var errUnreachable = errors.New("dial tcp 10.0.0.1:6380: i/o timeout")

func openerFor(s Store) Opener {
	return func(context.Context) (Store, error) { return s, nil }
}

// hangingStore blocks every call until its context ends.
type hangingStore struct{}

func (hangingStore) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}
func (hangingStore) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}
func (hangingStore) Delete(ctx context.Context, _ ...string) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}
func (hangingStore) Keys(ctx context.Context, _ string) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (hangingStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}
func (hangingStore) Close() error { return nil }

// missFirstStore hides the entry from the first Get only, as if another
// writer landed between a caller's lookup and its shared load.
type missFirstStore struct {
	Store
	seen atomic.Bool
}

func (s *missFirstStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.seen.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return s.Store.Get(ctx, key)
}
