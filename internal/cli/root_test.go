package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"visionqa-gateway/internal/cache"
)

func execute(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeyCommand(t *testing.T) {
	out, err := execute(t, Options{}, "key", "search_results", "hello")
	require.NoError(t, err)
	require.Equal(t, "search:5d41402abc4b2a76b9719d911017c592\n", out)

	_, err = execute(t, Options{}, "key", "nope", "hello")
	require.ErrorIs(t, err, cache.ErrUnknownCategory)

	_, err = execute(t, Options{}, "key", "search_results")
	require.Error(t, err)
}

func TestTTLCommand(t *testing.T) {
	out, err := execute(t, Options{}, "ttl")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1+len(cache.Categories()))
	require.Contains(t, lines[0], "CATEGORY")
	require.Contains(t, out, "upload_metadata")
	require.Contains(t, out, "24h0m0s")
	require.Contains(t, out, "30m0s")
}

func TestPurgeCommand(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	for _, k := range []string{cache.SearchResults.Key("a"), cache.SearchResults.Key("b"), cache.BlobInfo.Key("c")} {
		require.NoError(t, store.Set(ctx, k, []byte(`"v"`), time.Hour))
	}

	// the command closes the store it opens, so hand it a wrapper
	opts := Options{
		Open:   func(context.Context) (cache.Store, error) { return nopCloser{store}, nil },
		Logger: zaptest.NewLogger(t),
	}

	out, err := execute(t, opts, "purge", "search:*")
	require.NoError(t, err)
	require.Equal(t, "removed 2 keys matching \"search:*\"\n", out)

	keys, err := store.Keys(ctx, "*")
	require.NoError(t, err)
	require.Equal(t, []string{cache.BlobInfo.Key("c")}, keys)
}

func TestPurgeStoreUnavailable(t *testing.T) {
	opts := Options{Open: func(context.Context) (cache.Store, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}

	_, err := execute(t, opts, "purge", "*")
	require.ErrorContains(t, err, "cache store unavailable")
}

type nopCloser struct{ cache.Store }

func (nopCloser) Close() error { return nil }
