package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"time"
)

// ErrStoreClosed is returned by MemoryStore after Close.
var ErrStoreClosed = errors.New("cache: store closed")

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store with passive and periodic expiry.
type MemoryStore struct {
	mu              sync.RWMutex
	items           map[string]memoryEntry
	closed          bool
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
	now             func() time.Time
}

// NewMemoryStore creates an in-memory store.
// If cleanupInterval is <= 0 a default of 5 minutes is used.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return newMemoryStore(cleanupInterval, time.Now)
}

func newMemoryStore(cleanupInterval time.Duration, now func() time.Time) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	s := &MemoryStore{
		items:           make(map[string]memoryEntry),
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
		now:             now,
	}

	// background cleanup routine
	go s.cleanupExpired()

	return s
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false, ErrStoreClosed
	}
	entry, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := s.now()
	if !now.Before(entry.expiresAt) {
		s.mu.Lock()
		if e, exists := s.items[key]; exists && !now.Before(e.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false, nil
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("memory set failed: non-positive ttl")
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.items[key] = memoryEntry{
		value:     valueCopy,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	now := s.now()
	n := 0
	for _, k := range keys {
		if e, ok := s.items[k]; ok {
			if now.Before(e.expiresAt) {
				n++
			}
			delete(s.items, k)
		}
	}
	return n, nil
}

// Keys matches with path.Match, which agrees with Redis globbing for
// cache keys since they never contain '/'.
func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	now := s.now()
	var keys []string
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// cleanupExpired runs periodically to remove expired entries.
func (s *MemoryStore) cleanupExpired() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			for k, v := range s.items {
				if !now.Before(v.expiresAt) {
					delete(s.items, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine. Further operations fail with ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.items = make(map[string]memoryEntry)
		s.mu.Unlock()
		close(s.stopCleanup)
	})
	return nil
}

// Len returns the number of items currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
