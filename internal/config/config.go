// Package config loads gateway settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"visionqa-gateway/internal/cache"
	"visionqa-gateway/internal/llm"
	"visionqa-gateway/internal/search"
	"visionqa-gateway/internal/vision"
	"visionqa-gateway/pkg/logging/logging"
)

type Config struct {
	Server ServerConfig
	Cache  cache.Config
	Vision vision.Config
	Search search.Config
	OpenAI llm.Config
	Blob   BlobConfig
	Log    logging.Config

	// AdminToken guards the cache admin endpoint when set.
	AdminToken string
}

type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	ShutdownTimeout   time.Duration
	MaxBodyBytes      int64
}

// BlobConfig selects the blob store. An empty connection string uses an
// in-process store.
type BlobConfig struct {
	ConnectionString string
	Container        string
}

// Load reads a .env file when present, then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnv("PORT", "8000"),
			ReadHeaderTimeout: getDurationEnv("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getDurationEnv("SERVER_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:      getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:       getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			RequestTimeout:    getDurationEnv("REQUEST_TIMEOUT", 90*time.Second),
			ShutdownTimeout:   getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:      int64(getIntEnv("MAX_BODY_BYTES", 20<<20)),
		},
		Cache: cache.Config{
			Backend:   getEnv("CACHE_BACKEND", "redis"),
			Prefix:    getEnv("CACHE_PREFIX", ""),
			OpTimeout: getDurationEnv("CACHE_OP_TIMEOUT", cache.DefaultOpTimeout),
			Redis: cache.RedisOptions{
				Addr:          getEnv("REDIS_ADDR", "127.0.0.1:6379"),
				Password:      getEnv("REDIS_PASSWORD", ""),
				DB:            getIntEnv("REDIS_DB", 0),
				TLS:           getBoolEnv("REDIS_TLS", false),
				TLSSkipVerify: getBoolEnv("REDIS_TLS_SKIP_VERIFY", false),
				DialTimeout:   getDurationEnv("REDIS_DIAL_TIMEOUT", 30*time.Second),
				ReadTimeout:   getDurationEnv("REDIS_READ_TIMEOUT", 30*time.Second),
				WriteTimeout:  getDurationEnv("REDIS_WRITE_TIMEOUT", 30*time.Second),
				PoolSize:      getIntEnv("REDIS_POOL_SIZE", 10),
				MaxRetries:    getIntEnv("REDIS_MAX_RETRIES", 3),
			},
		},
		Vision: vision.Config{
			Endpoint:   getEnv("VISION_ENDPOINT", ""),
			Key:        getEnv("VISION_KEY", ""),
			APIVersion: getEnv("VISION_API_VERSION", vision.DefaultAPIVersion),
			Features:   getListEnv("VISION_FEATURES", vision.DefaultFeatures),
		},
		Search: search.Config{
			Endpoint:   getEnv("SEARCH_ENDPOINT", ""),
			Key:        getEnv("SEARCH_KEY", ""),
			Index:      getEnv("SEARCH_INDEX", ""),
			APIVersion: getEnv("SEARCH_API_VERSION", search.DefaultAPIVersion),
		},
		OpenAI: llm.Config{
			Endpoint:   getEnv("OPENAI_ENDPOINT", ""),
			APIKey:     getEnv("OPENAI_API_KEY", ""),
			Deployment: getEnv("OPENAI_DEPLOYMENT", "gpt-35-turbo"),
			APIVersion: getEnv("OPENAI_API_VERSION", llm.DefaultAPIVersion),
		},
		Blob: BlobConfig{
			ConnectionString: getEnv("ADLS_CONNECTION_STRING", ""),
			Container:        getEnv("ADLS_CONTAINER", "uploads"),
		},
		Log: logging.Config{
			Env:   getEnv("ENV", ""),
			Level: getEnv("LOG_LEVEL", ""),
		},
		AdminToken: getEnv("ADMIN_TOKEN", ""),
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var err error
	require := func(name, value string) {
		if value == "" {
			err = multierr.Append(err, fmt.Errorf("%s is required", name))
		}
	}

	require("VISION_ENDPOINT", c.Vision.Endpoint)
	require("VISION_KEY", c.Vision.Key)
	require("SEARCH_ENDPOINT", c.Search.Endpoint)
	require("SEARCH_KEY", c.Search.Key)
	require("SEARCH_INDEX", c.Search.Index)
	require("OPENAI_ENDPOINT", c.OpenAI.Endpoint)
	require("OPENAI_API_KEY", c.OpenAI.APIKey)
	require("ADLS_CONTAINER", c.Blob.Container)

	switch c.Cache.Backend {
	case "redis":
		require("REDIS_ADDR", c.Cache.Redis.Addr)
	case "memory":
	default:
		err = multierr.Append(err, fmt.Errorf("CACHE_BACKEND must be \"redis\" or \"memory\", got %q", c.Cache.Backend))
	}
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated value, dropping empty items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return append([]string(nil), defaultValue...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
