package blob

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"
)

type memoryBlob struct {
	data []byte
	info Info
}

// MemoryStore is a Store for local runs and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	container string
	blobs     map[string]memoryBlob
}

func NewMemoryStore(container string) *MemoryStore {
	return &MemoryStore{container: container, blobs: make(map[string]memoryBlob)}
}

func (s *MemoryStore) Container() string { return s.container }

func (s *MemoryStore) Upload(_ context.Context, name string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	sum := md5.Sum(data)

	s.mu.Lock()
	s.blobs[name] = memoryBlob{
		data: cp,
		info: Info{
			Name:         name,
			Container:    s.container,
			Size:         int64(len(data)),
			ContentType:  http.DetectContentType(data),
			ETag:         `"` + hex.EncodeToString(sum[:]) + `"`,
			LastModified: time.Now().UTC(),
		},
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Download(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	b, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (s *MemoryStore) Properties(_ context.Context, name string) (*Info, error) {
	s.mu.RLock()
	b, ok := s.blobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	info := b.info
	return &info, nil
}
