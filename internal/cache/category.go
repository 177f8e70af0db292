package cache

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownCategory is returned by ParseCategory for names outside the table.
var ErrUnknownCategory = errors.New("cache: unknown category")

// Category is a class of cached values sharing one TTL policy.
type Category int

const (
	SearchResults Category = iota + 1
	OpenAIResponses
	UploadMetadata
	VisionAnalysis
	BlobInfo
)

type categoryPolicy struct {
	name   string
	prefix string
	ttl    time.Duration
}

var policies = map[Category]categoryPolicy{
	SearchResults:   {name: "search_results", prefix: "search", ttl: 3600 * time.Second},
	OpenAIResponses: {name: "openai_responses", prefix: "openai", ttl: 7200 * time.Second},
	UploadMetadata:  {name: "upload_metadata", prefix: "Upload", ttl: 86400 * time.Second},
	VisionAnalysis:  {name: "vision_analysis", prefix: "vision", ttl: 3600 * time.Second},
	BlobInfo:        {name: "blob_info", prefix: "blob", ttl: 1800 * time.Second},
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{SearchResults, OpenAIResponses, UploadMetadata, VisionAnalysis, BlobInfo}
}

// ParseCategory resolves a category by its table name (e.g. "search_results").
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories() {
		if policies[c].name == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Valid reports whether c is one of the declared categories.
func (c Category) Valid() bool {
	_, ok := policies[c]
	return ok
}

func (c Category) String() string {
	if p, ok := policies[c]; ok {
		return p.name
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// Prefix is the key prefix used for entries of this category.
func (c Category) Prefix() string {
	return policies[c].prefix
}

// TTL returns the expiration applied to entries of this category.
// Invalid categories have a zero TTL, which Set refuses.
func (c Category) TTL() time.Duration {
	return policies[c].ttl
}

// Key derives the cache key for identifier within this category.
func (c Category) Key(identifier string) string {
	return DeriveKey(c.Prefix(), identifier)
}

// categoryOfKey maps a key back to its category by prefix; used for metrics labels.
func categoryOfKey(key string) string {
	for _, c := range Categories() {
		p := policies[c].prefix
		if len(key) > len(p) && key[:len(p)] == p && key[len(p)] == ':' {
			return policies[c].name
		}
	}
	return "other"
}
