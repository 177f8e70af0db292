package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"visionqa-gateway/internal/vision"
)

// unsetEnv clears key for the test and restores it afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	unsetEnv(t, "PORT", "CACHE_BACKEND", "REDIS_ADDR", "CACHE_OP_TIMEOUT", "VISION_FEATURES", "ADLS_CONTAINER", "OPENAI_DEPLOYMENT")

	cfg := FromEnv()

	require.Equal(t, "8000", cfg.Server.Port)
	require.Equal(t, "redis", cfg.Cache.Backend)
	require.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Addr)
	require.Equal(t, 5*time.Second, cfg.Cache.OpTimeout)
	require.Equal(t, vision.DefaultFeatures, cfg.Vision.Features)
	require.Equal(t, "uploads", cfg.Blob.Container)
	require.Equal(t, "gpt-35-turbo", cfg.OpenAI.Deployment)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_OP_TIMEOUT", "750ms")
	t.Setenv("VISION_FEATURES", "caption, read,,tags")
	t.Setenv("MAX_BODY_BYTES", "1024")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.True(t, cfg.Cache.Redis.TLS)
	require.Equal(t, 2, cfg.Cache.Redis.DB)
	require.Equal(t, 750*time.Millisecond, cfg.Cache.OpTimeout)
	require.Equal(t, []string{"caption", "read", "tags"}, cfg.Vision.Features)
	require.EqualValues(t, 1024, cfg.Server.MaxBodyBytes)
	require.Equal(t, 10, cfg.Cache.Redis.PoolSize, "invalid values fall back to the default")
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.Backend = "disk"

	err := cfg.Validate()
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 9)
	require.ErrorContains(t, err, "VISION_KEY is required")
	require.ErrorContains(t, err, `CACHE_BACKEND must be "redis" or "memory"`)
}

func TestValidateComplete(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.Backend = "memory"
	cfg.Vision.Endpoint, cfg.Vision.Key = "https://vision", "vk"
	cfg.Search.Endpoint, cfg.Search.Key, cfg.Search.Index = "https://search", "sk", "idx"
	cfg.OpenAI.Endpoint, cfg.OpenAI.APIKey = "https://openai", "ok"
	cfg.Blob.Container = "uploads"

	require.NoError(t, cfg.Validate())
}

func TestLoadReadsEnvFile(t *testing.T) {
	unsetEnv(t, "SEARCH_INDEX", "ADMIN_TOKEN")
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEARCH_INDEX=images\nADMIN_TOKEN=tok\nPORT=1\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "images", cfg.Search.Index)
	require.Equal(t, "tok", cfg.AdminToken)
	require.Equal(t, "7000", cfg.Server.Port, "environment wins over the file")
}

func TestLoadMissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}
