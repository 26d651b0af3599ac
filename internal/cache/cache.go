package cache

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/roach88/rtgl/internal/compiler"
)

// Cache maps a semantic hash to the artifact built for it.
type Cache interface {
	// Get returns the cached artifact for hash. A miss is (nil, false, nil).
	Get(ctx context.Context, hash string) (*compiler.Artifact, bool, error)

	// Put stores a for hash, replacing any previous entry.
	Put(ctx context.Context, hash string, a *compiler.Artifact) error
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// validHash rejects keys that are not lowercase SHA-256 hex. Disk and SQL
// caches use the hash in file names and queries.
func validHash(hash string) error {
	if !hashPattern.MatchString(hash) {
		return fmt.Errorf("invalid semantic hash %q", hash)
	}
	return nil
}

// MapCache is an unbounded map. It is not safe for concurrent use: at most
// one in-flight compile per instance is assumed.
type MapCache struct {
	entries map[string]*compiler.Artifact
}

// NewMapCache creates an empty MapCache.
func NewMapCache() *MapCache {
	return &MapCache{entries: make(map[string]*compiler.Artifact)}
}

func (c *MapCache) Get(_ context.Context, hash string) (*compiler.Artifact, bool, error) {
	a, ok := c.entries[hash]
	return a, ok, nil
}

func (c *MapCache) Put(_ context.Context, hash string, a *compiler.Artifact) error {
	c.entries[hash] = a
	return nil
}

// Len returns the number of entries.
func (c *MapCache) Len() int {
	return len(c.entries)
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*compiler.Artifact, bool, error) {
	return nil, false, nil
}

func (NoopCache) Put(context.Context, string, *compiler.Artifact) error {
	return nil
}

// MetricsSnapshot is a point-in-time copy of cache counters.
type MetricsSnapshot struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Puts      uint64 `json:"puts"`
	GetErrors uint64 `json:"getErrors"`
	PutErrors uint64 `json:"putErrors"`
}

// Metered wraps a Cache with hit/miss counters.
type Metered struct {
	inner Cache

	hits      atomic.Uint64
	misses    atomic.Uint64
	puts      atomic.Uint64
	getErrors atomic.Uint64
	putErrors atomic.Uint64
}

// WithMetrics wraps inner.
func WithMetrics(inner Cache) *Metered {
	return &Metered{inner: inner}
}

func (m *Metered) Get(ctx context.Context, hash string) (*compiler.Artifact, bool, error) {
	a, ok, err := m.inner.Get(ctx, hash)
	switch {
	case err != nil:
		m.getErrors.Add(1)
	case ok:
		m.hits.Add(1)
	default:
		m.misses.Add(1)
	}
	return a, ok, err
}

func (m *Metered) Put(ctx context.Context, hash string, a *compiler.Artifact) error {
	err := m.inner.Put(ctx, hash, a)
	if err != nil {
		m.putErrors.Add(1)
	} else {
		m.puts.Add(1)
	}
	return err
}

// Snapshot returns the current counters.
func (m *Metered) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Puts:      m.puts.Load(),
		GetErrors: m.getErrors.Load(),
		PutErrors: m.putErrors.Load(),
	}
}

// Driver selects a Cache implementation in Options.
type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverDisk     Driver = "disk"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverNone     Driver = "none"
)

// Options configures Open.
type Options struct {
	Driver Driver

	// Dir is the DiskCache directory.
	Dir string

	// DSN is the SQLite path or PostgreSQL connection string.
	DSN string

	// MaxEntries bounds MemoryCache. Zero means DefaultMaxEntries.
	MaxEntries int
}

// Open builds the cache selected by opts. The returned close function
// releases database handles and is never nil.
func Open(ctx context.Context, opts Options) (Cache, func() error, error) {
	noClose := func() error { return nil }
	switch Driver(strings.ToLower(string(opts.Driver))) {
	case "", DriverMemory:
		c, err := NewMemoryCache(opts.MaxEntries)
		return c, noClose, err
	case DriverDisk:
		c, err := NewDiskCache(opts.Dir)
		return c, noClose, err
	case DriverSQLite:
		c, err := OpenSQLite(ctx, opts.DSN)
		if err != nil {
			return nil, noClose, err
		}
		return c, c.Close, nil
	case DriverPostgres:
		c, err := OpenPostgres(ctx, opts.DSN)
		if err != nil {
			return nil, noClose, err
		}
		return c, c.Close, nil
	case DriverNone:
		return NoopCache{}, noClose, nil
	default:
		return nil, noClose, fmt.Errorf("unknown cache driver %q", opts.Driver)
	}
}
