package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/rtgl/internal/compiler"
	"github.com/roach88/rtgl/internal/ir"
)

// diskEntry is the on-disk record. The artifact is kept as canonical JSON
// so a read goes through the same schema check as any emitted artifact.
type diskEntry struct {
	Hash            string `msgpack:"hash"`
	CompilerVersion string `msgpack:"compilerVersion"`
	Artifact        []byte `msgpack:"artifact"`
}

// DiskCache stores one msgpack file per semantic hash under a directory,
// sharded by the first two hex digits.
type DiskCache struct {
	root string
}

// NewDiskCache creates a DiskCache rooted at dir.
func NewDiskCache(dir string) (*DiskCache, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("disk cache: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("disk cache: %w", err)
	}
	return &DiskCache{root: dir}, nil
}

func (c *DiskCache) pathFor(hash string) (string, error) {
	if err := validHash(hash); err != nil {
		return "", err
	}
	return filepath.Join(c.root, hash[:2], hash+".msgpack"), nil
}

// Get returns a miss for entries written by another compiler version.
func (c *DiskCache) Get(_ context.Context, hash string) (*compiler.Artifact, bool, error) {
	p, err := c.pathFor(hash)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("disk cache read: %w", err)
	}

	var entry diskEntry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("disk cache decode %s: %w", p, err)
	}
	if entry.Hash != hash || entry.CompilerVersion != ir.CompilerVersion {
		return nil, false, nil
	}
	a, err := compiler.ParseArtifact(entry.Artifact)
	if err != nil {
		return nil, false, fmt.Errorf("disk cache entry %s: %w", p, err)
	}
	return a, true, nil
}

// Put writes the entry to a temp file and renames it into place.
func (c *DiskCache) Put(_ context.Context, hash string, a *compiler.Artifact) error {
	p, err := c.pathFor(hash)
	if err != nil {
		return err
	}
	body, err := compiler.SerializeArtifact(a)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(diskEntry{
		Hash:            hash,
		CompilerVersion: ir.CompilerVersion,
		Artifact:        body,
	})
	if err != nil {
		return fmt.Errorf("disk cache encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".entry-*")
	if err != nil {
		return fmt.Errorf("disk cache: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("disk cache write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("disk cache write: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("disk cache rename: %w", err)
	}
	return nil
}
