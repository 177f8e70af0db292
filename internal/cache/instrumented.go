package cache

import (
	"context"
	"time"

	"visionqa-gateway/internal/metrics"
	"visionqa-gateway/pkg/logging/logging"

	"go.uber.org/zap"
)

// InstrumentedStore wraps a Store with logging + metrics.
type InstrumentedStore struct {
	inner  Store
	logger *zap.Logger
}

// NewInstrumentedStore returns a store that logs and records metrics.
// Request-scoped loggers in ctx take precedence over logger.
func NewInstrumentedStore(inner Store, logger *zap.Logger) *InstrumentedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedStore{inner: inner, logger: logger}
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := s.inner.Get(ctx, key)
	elapsed := time.Since(start)

	category := categoryOfKey(key)
	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.CacheHitsTotal.WithLabelValues(category).Inc()
	}
	s.observe(category, "get", result, elapsed)

	fields := []zap.Field{
		zap.String("cache_category", category),
		zap.String("cache_key", key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", ms(elapsed)),
	}
	if err != nil {
		s.log(ctx).Error("cache_get", append(fields, zap.Error(err))...)
	} else {
		s.log(ctx).Debug("cache_get", fields...)
	}

	return value, ok, err
}

func (s *InstrumentedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Set(ctx, key, value, ttl)
	elapsed := time.Since(start)

	category := categoryOfKey(key)
	s.observe(category, "set", resultOf(err), elapsed)

	fields := []zap.Field{
		zap.String("cache_category", category),
		zap.String("cache_key", key),
		zap.Duration("ttl", ttl),
		zap.Int("bytes", len(value)),
		zap.Float64("latency_ms", ms(elapsed)),
	}
	if err != nil {
		s.log(ctx).Error("cache_set", append(fields, zap.Error(err))...)
	} else {
		s.log(ctx).Debug("cache_set", fields...)
	}

	return err
}

func (s *InstrumentedStore) Delete(ctx context.Context, keys ...string) (int, error) {
	start := time.Now()
	n, err := s.inner.Delete(ctx, keys...)
	elapsed := time.Since(start)

	category := "other"
	if len(keys) > 0 {
		category = categoryOfKey(keys[0])
	}
	s.observe(category, "delete", resultOf(err), elapsed)

	fields := []zap.Field{
		zap.String("cache_category", category),
		zap.Int("requested", len(keys)),
		zap.Int("removed", n),
		zap.Float64("latency_ms", ms(elapsed)),
	}
	if err != nil {
		s.log(ctx).Error("cache_delete", append(fields, zap.Error(err))...)
	} else {
		s.log(ctx).Debug("cache_delete", fields...)
	}

	return n, err
}

func (s *InstrumentedStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.Keys(ctx, pattern)
	elapsed := time.Since(start)

	s.observe(categoryOfKey(pattern), "keys", resultOf(err), elapsed)

	fields := []zap.Field{
		zap.String("pattern", pattern),
		zap.Int("matched", len(keys)),
		zap.Float64("latency_ms", ms(elapsed)),
	}
	if err != nil {
		s.log(ctx).Error("cache_keys", append(fields, zap.Error(err))...)
	} else {
		s.log(ctx).Debug("cache_keys", fields...)
	}

	return keys, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.observe("other", "ping", resultOf(err), time.Since(start))
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}

func (s *InstrumentedStore) observe(category, op, result string, elapsed time.Duration) {
	metrics.CacheOperationsTotal.WithLabelValues(category, op, result).Inc()
	metrics.CacheLatencySeconds.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (s *InstrumentedStore) log(ctx context.Context) *zap.Logger {
	if l := logging.FromContextOrNil(ctx); l != nil {
		return l
	}
	return s.logger
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
