package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
)

func hashOf(c byte) string {
	return strings.Repeat(string(c), 64)
}

func testArtifact(t *testing.T, hash string) *compiler.Artifact {
	t.Helper()
	a, err := compiler.CreateCompileArtifact(compiler.ArtifactInput{
		ProjectRoot:  "/work/app",
		Dirs:         []string{"src/components"},
		SemanticHash: hash,
		CompilerIR: ir.CompilerIR{
			Structural: ir.StructuralIR{
				Components: []ir.StructuralComponent{{
					ComponentKey:  "button",
					ComponentName: "x-button",
					Files:         map[ir.FileKind]string{ir.FileSchema: "/work/app/src/components/button/button.schema.yaml"},
				}},
			},
			TypedContract: ir.TypedContractIR{
				Components: []ir.ContractComponent{{
					ComponentKey:  "button",
					ComponentName: "x-button",
					Props:         []string{"label"},
				}},
			},
		},
	})
	require.NoError(t, err)
	return a
}

func TestMapCache(t *testing.T) {
	ctx := context.Background()
	c := NewMapCache()
	h := hashOf('a')

	_, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	a := testArtifact(t, h)
	require.NoError(t, c.Put(ctx, h, a))
	got, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, c.Len())
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	var c NoopCache
	require.NoError(t, c.Put(ctx, hashOf('a'), testArtifact(t, hashOf('a'))))
	_, ok, err := c.Get(ctx, hashOf('a'))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemoryCache(2)
	require.NoError(t, err)

	for _, ch := range []byte{'a', 'b'} {
		require.NoError(t, c.Put(ctx, hashOf(ch), testArtifact(t, hashOf(ch))))
	}
	// Touch "a" so "b" is the eviction candidate.
	_, ok, _ := c.Get(ctx, hashOf('a'))
	require.True(t, ok)
	require.NoError(t, c.Put(ctx, hashOf('c'), testArtifact(t, hashOf('c'))))

	assert.Equal(t, 2, c.Len())
	_, ok, _ = c.Get(ctx, hashOf('b'))
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, hashOf('a'))
	assert.True(t, ok)
}

func TestMemoryCacheDefaultSize(t *testing.T) {
	c, err := NewMemoryCache(0)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*compiler.Artifact, bool, error) {
	return nil, false, errors.New("boom")
}

func (failingCache) Put(context.Context, string, *compiler.Artifact) error {
	return errors.New("boom")
}

func TestMetered(t *testing.T) {
	ctx := context.Background()
	m := WithMetrics(NewMapCache())
	h := hashOf('a')

	_, _, _ = m.Get(ctx, h)
	require.NoError(t, m.Put(ctx, h, testArtifact(t, h)))
	_, _, _ = m.Get(ctx, h)
	_, _, _ = m.Get(ctx, h)

	assert.Equal(t, MetricsSnapshot{Hits: 2, Misses: 1, Puts: 1}, m.Snapshot())

	f := WithMetrics(failingCache{})
	_, _, err := f.Get(ctx, h)
	require.Error(t, err)
	require.Error(t, f.Put(ctx, h, nil))
	assert.Equal(t, MetricsSnapshot{GetErrors: 1, PutErrors: 1}, f.Snapshot())
}

func TestDiskCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := NewDiskCache(dir)
	require.NoError(t, err)

	h := hashOf('d')
	_, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	a := testArtifact(t, h)
	require.NoError(t, c.Put(ctx, h, a))
	assert.FileExists(t, filepath.Join(dir, "dd", h+".msgpack"))

	got, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestDiskCacheRejectsInvalidHash(t *testing.T) {
	c, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	require.Error(t, c.Put(context.Background(), "ABC", testArtifact(t, hashOf('a'))))
}

func TestDiskCacheIgnoresOtherCompilerVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewDiskCache(dir)
	require.NoError(t, err)

	h := hashOf('e')
	body, err := compiler.SerializeArtifact(testArtifact(t, h))
	require.NoError(t, err)
	data, err := msgpack.Marshal(diskEntry{Hash: h, CompilerVersion: "0.0.1", Artifact: body})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ee"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ee", h+".msgpack"), data, 0o644))

	_, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDiskCacheCorruptEntry(t *testing.T) {
	dir := t.TempDir()
	c, err := NewDiskCache(dir)
	require.NoError(t, err)

	h := hashOf('f')
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ff"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ff", h+".msgpack"), []byte("not msgpack"), 0o644))

	_, _, err = c.Get(context.Background(), h)
	require.Error(t, err)
}

func TestNewDiskCacheRequiresDir(t *testing.T) {
	_, err := NewDiskCache("  ")
	require.Error(t, err)
}

func TestSQLiteCache(t *testing.T) {
	ctx := context.Background()
	c, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	h := hashOf('1')
	_, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	a := testArtifact(t, h)
	require.NoError(t, c.Put(ctx, h, a))
	require.NoError(t, c.Put(ctx, h, a))

	got, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, err = c.db.ExecContext(ctx, `UPDATE compile_cache SET compiler_version = '0.0.1'`)
	require.NoError(t, err)
	_, ok, err = c.Get(ctx, h)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = c.Get(ctx, "nope")
	require.Error(t, err)
}

func TestPostgresCache(t *testing.T) {
	dsn := os.Getenv("RTGL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("RTGL_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	c, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer c.Close()

	h := hashOf('2')
	a := testArtifact(t, h)
	require.NoError(t, c.Put(ctx, h, a))
	got, ok, err := c.Get(ctx, h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestRebind(t *testing.T) {
	pg := &SQLCache{dollar: true}
	assert.Equal(t, "VALUES ($1, $2, $3)", pg.rebind("VALUES (?, ?, ?)"))

	lite := &SQLCache{}
	assert.Equal(t, "VALUES (?, ?)", lite.rebind("VALUES (?, ?)"))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		opts Options
		want any
	}{
		{"default", Options{}, &MemoryCache{}},
		{"memory", Options{Driver: DriverMemory, MaxEntries: 4}, &MemoryCache{}},
		{"disk", Options{Driver: "DISK", Dir: filepath.Join(dir, "disk")}, &DiskCache{}},
		{"sqlite", Options{Driver: DriverSQLite, DSN: filepath.Join(dir, "c.db")}, &SQLCache{}},
		{"none", Options{Driver: DriverNone}, NoopCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, closeFn, err := Open(ctx, tt.opts)
			require.NoError(t, err)
			require.NotNil(t, closeFn)
			defer closeFn()
			assert.IsType(t, tt.want, c)
		})
	}

	_, closeFn, err := Open(ctx, Options{Driver: "redis"})
	require.Error(t, err)
	assert.NotNil(t, closeFn)

	_, _, err = Open(ctx, Options{Driver: DriverDisk})
	require.Error(t, err)
}
