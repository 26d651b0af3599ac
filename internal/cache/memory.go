package cache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/rtgl/internal/compiler"
)

// DefaultMaxEntries bounds a MemoryCache created with maxEntries <= 0.
const DefaultMaxEntries = 1024

// MemoryCache is a bounded LRU cache. Safe for concurrent use.
type MemoryCache struct {
	entries *lru.Cache[string, *compiler.Artifact]
}

// NewMemoryCache creates a MemoryCache holding at most maxEntries artifacts.
func NewMemoryCache(maxEntries int) (*MemoryCache, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	entries, err := lru.New[string, *compiler.Artifact](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

func (c *MemoryCache) Get(_ context.Context, hash string) (*compiler.Artifact, bool, error) {
	a, ok := c.entries.Get(hash)
	return a, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, hash string, a *compiler.Artifact) error {
	c.entries.Add(hash, a)
	return nil
}

// Len returns the number of cached artifacts.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
