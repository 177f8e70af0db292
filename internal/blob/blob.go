// Package blob stores uploaded files.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for blobs that do not exist.
var ErrNotFound = errors.New("blob: not found")

// Info describes a stored blob.
type Info struct {
	Name         string    `json:"name"`
	Container    string    `json:"container"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

type Store interface {
	// Upload writes data under name, overwriting an existing blob.
	Upload(ctx context.Context, name string, data []byte) error
	Download(ctx context.Context, name string) ([]byte, error)
	Properties(ctx context.Context, name string) (*Info, error)
	Container() string
}
