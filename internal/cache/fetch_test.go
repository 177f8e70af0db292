package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFetchCachesOnMiss(t *testing.T) {
	c, _, _ := newConnectedCache(t)
	f := NewFetcher(c)
	ctx := context.Background()
	key := SearchResults.Key("doc1")

	calls := 0
	load := func(context.Context) (searchDoc, error) {
		calls++
		return searchDoc{ID: "doc1"}, nil
	}

	doc, cached, err := Fetch(ctx, f, SearchResults, key, load)
	require.NoError(t, err)
	require.False(t, cached)
	require.Equal(t, "doc1", doc.ID)

	doc, cached, err = Fetch(ctx, f, SearchResults, key, load)
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, "doc1", doc.ID)
	require.Equal(t, 1, calls)
}

func TestFetchPropagatesLoaderError(t *testing.T) {
	c, store, _ := newConnectedCache(t)
	f := NewFetcher(c)
	boom := errors.New("index unavailable")

	_, _, err := Fetch(context.Background(), f, SearchResults, "search:x", func(context.Context) (searchDoc, error) {
		return searchDoc{}, boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, store.Len())
}

func TestFetchWithoutCacheAlwaysLoads(t *testing.T) {
	c := NewResponseCache(openerFor(&brokenStore{err: errUnreachable}), WithLogger(zaptest.NewLogger(t)))
	c.Connect(context.Background())
	f := NewFetcher(c)

	calls := 0
	for i := 0; i < 3; i++ {
		_, cached, err := Fetch(context.Background(), f, OpenAIResponses, "openai:q", func(context.Context) (string, error) {
			calls++
			return "answer", nil
		})
		require.NoError(t, err)
		require.False(t, cached)
	}
	require.Equal(t, 3, calls)
}

func TestFetchCoalescesConcurrentMisses(t *testing.T) {
	c, _, _ := newConnectedCache(t)
	f := NewFetcher(c)

	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := Fetch(context.Background(), f, VisionAnalysis, "vision:img", load)
			require.NoError(t, err)
			require.Equal(t, "v", v)
		}()
	}

	// let the callers pile up behind the first load
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
}

func TestFetchWaiterSurvivesLeaderCancellation(t *testing.T) {
	c, _, _ := newConnectedCache(t)
	f := NewFetcher(c)

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return "v", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := Fetch(leaderCtx, f, OpenAIResponses, "openai:q", load)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		v   string
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		v, _, err := Fetch(context.Background(), f, OpenAIResponses, "openai:q", load)
		waiter <- outcome{v, err}
	}()

	// give the waiter time to join the in-flight load
	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	got := <-waiter
	require.NoError(t, got.err)
	require.Equal(t, "v", got.v)
	require.Equal(t, int32(1), calls.Load())

	// the detached load still populated the cache
	var stored string
	require.True(t, c.Get(context.Background(), "openai:q", &stored).Hit())
	require.Equal(t, "v", stored)
}

func TestFetchSharedLoadHasOwnDeadline(t *testing.T) {
	c, _, _ := newConnectedCache(t)
	f := NewFetcher(c, WithLoadTimeout(20*time.Millisecond))

	_, _, err := Fetch(context.Background(), f, OpenAIResponses, "openai:slow", func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchRecheckHitReportsCached(t *testing.T) {
	clock := newFakeClock()
	mem := newMemoryStore(time.Hour, clock.Now)
	c := NewResponseCache(openerFor(&missFirstStore{Store: mem}), WithLogger(zaptest.NewLogger(t)))
	c.Connect(context.Background())
	t.Cleanup(c.Disconnect)
	require.True(t, c.Set(context.Background(), "search:doc1", searchDoc{ID: "doc1"}, time.Minute).OK())

	f := NewFetcher(c)
	doc, cached, err := Fetch(context.Background(), f, SearchResults, "search:doc1", func(context.Context) (searchDoc, error) {
		t.Errorf("load must not run when the entry is present")
		return searchDoc{}, nil
	})
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, "doc1", doc.ID)
}
