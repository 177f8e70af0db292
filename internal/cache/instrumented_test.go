package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"visionqa-gateway/internal/metrics"
)

func TestInstrumentedStoreCountsOperations(t *testing.T) {
	inner := NewMemoryStore(time.Minute)
	s := NewInstrumentedStore(inner, zaptest.NewLogger(t))
	defer s.Close()
	ctx := context.Background()

	hits := metrics.CacheHitsTotal.WithLabelValues("openai_responses")
	misses := metrics.CacheOperationsTotal.WithLabelValues("openai_responses", "get", "miss")
	sets := metrics.CacheOperationsTotal.WithLabelValues("openai_responses", "set", "ok")
	hitsBefore, missesBefore, setsBefore := testutil.ToFloat64(hits), testutil.ToFloat64(misses), testutil.ToFloat64(sets)

	key := OpenAIResponses.Key("doc1_what is this")

	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, key, []byte(`"answer"`), time.Minute))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `"answer"`, string(got))

	require.Equal(t, hitsBefore+1, testutil.ToFloat64(hits))
	require.Equal(t, missesBefore+1, testutil.ToFloat64(misses))
	require.Equal(t, setsBefore+1, testutil.ToFloat64(sets))
}

func TestInstrumentedStorePassesErrorsThrough(t *testing.T) {
	s := NewInstrumentedStore(&brokenStore{err: errUnreachable}, nil)

	_, _, err := s.Get(context.Background(), "search:x")
	require.ErrorIs(t, err, errUnreachable)
	_, err = s.Keys(context.Background(), "search:*")
	require.ErrorIs(t, err, errUnreachable)
	require.ErrorIs(t, s.Ping(context.Background()), errUnreachable)
}
