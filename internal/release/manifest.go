// Package release records what a build produced and who built it.
//
// A release directory holds build outputs plus three bookkeeping files: a
// manifest listing every output with its size and SHA-256, an HMAC
// signature over the manifest, and a provenance attestation describing
// the builder and source revision. Verification re-hashes the files on
// disk, so tampering after signing is caught as well as a forged
// signature.
package release

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/rtgl/internal/ir"
)

// File names inside a release directory.
const (
	ManifestFileName   = "release-manifest.json"
	SignatureFileName  = "release-signature.json"
	ProvenanceFileName = "release-provenance.json"
)

// ManifestVersion is the format version of the manifest and of the
// signature envelope.
const ManifestVersion = 1

// Generator names the producer recorded in manifests and provenance.
func Generator() string {
	return "rtgl@" + ir.CompilerVersion
}

// Clock supplies timestamps. testutil.DeterministicClock satisfies it.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ManifestEntry is one release file.
type ManifestEntry struct {
	// Path is relative to the release directory, forward-slash separated.
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Manifest lists every file of a release, sorted by path.
type Manifest struct {
	Version     int    `json:"version"`
	GeneratedAt string `json:"generatedAt"`
	GeneratedBy string `json:"generatedBy"`

	// ArtifactDir is the scanned directory as given, forward-slash separated.
	ArtifactDir   string          `json:"artifactDir"`
	ArtifactCount int             `json:"artifactCount"`
	Artifacts     []ManifestEntry `json:"artifacts"`
}

// ManifestOptions configures CreateManifest.
type ManifestOptions struct {
	// Clock stamps generatedAt. Nil means the system clock.
	Clock Clock
}

// isReleaseFile reports whether rel is one of the bookkeeping files at
// the directory root. They are never listed in the manifest.
func isReleaseFile(rel string) bool {
	switch rel {
	case ManifestFileName, SignatureFileName, ProvenanceFileName:
		return true
	}
	return false
}

// CreateManifest walks dir and records every regular file except the
// release bookkeeping files.
func CreateManifest(dir string, opts ManifestOptions) (*Manifest, error) {
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	entries, err := scanDir(dir)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		Version:       ManifestVersion,
		GeneratedAt:   clock.Now().UTC().Format(time.RFC3339),
		GeneratedBy:   Generator(),
		ArtifactDir:   filepath.ToSlash(filepath.Clean(dir)),
		ArtifactCount: len(entries),
		Artifacts:     entries,
	}, nil
}

func scanDir(dir string) ([]ManifestEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, ir.NewInputShapeError(dir, "release directory is not readable: %v", err)
	}
	if !info.IsDir() {
		return nil, ir.NewInputShapeError(dir, "release path is not a directory")
	}

	entries := []ManifestEntry{}
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if isReleaseFile(rel) {
			return nil
		}
		sum, size, err := hashFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, ManifestEntry{Path: rel, Size: size, SHA256: sum})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan release directory: %w", err)
	}
	slices.SortFunc(entries, func(a, b ManifestEntry) int {
		return strings.Compare(a.Path, b.Path)
	})
	return entries, nil
}

func hashFile(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Lookup returns the entry recorded for path.
func (m *Manifest) Lookup(path string) (ManifestEntry, bool) {
	for _, e := range m.Artifacts {
		if e.Path == path {
			return e, true
		}
	}
	return ManifestEntry{}, false
}

// canonicalJSON is the byte form that is signed and digested: canonical
// JSON of v with sorted keys and no insignificant whitespace.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	val, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(val)
}

// Digest is the SHA-256 of the manifest's canonical JSON.
func (m *Manifest) Digest() (string, error) {
	data, err := canonicalJSON(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	return ir.SHA256Hex(data), nil
}

// writeJSON writes v to path as indented canonical JSON with a trailing
// newline.
func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	val, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	out, err := ir.MarshalCanonicalIndent(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.NewInputShapeError(path, "cannot read %s: %v", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return ir.NewInputShapeError(path, "invalid %s: %v", filepath.Base(path), err)
	}
	return nil
}

// WriteManifest writes m to dir/release-manifest.json.
func WriteManifest(dir string, m *Manifest) error {
	return writeJSON(filepath.Join(dir, ManifestFileName), m)
}

// ReadManifest loads dir/release-manifest.json.
func ReadManifest(dir string) (*Manifest, error) {
	var m Manifest
	if err := readJSON(filepath.Join(dir, ManifestFileName), &m); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, ManifestFileName)
	if m.Version != ManifestVersion {
		return nil, ir.NewInputShapeError(path, "unsupported manifest version %d", m.Version)
	}
	if m.ArtifactCount != len(m.Artifacts) {
		return nil, ir.NewInputShapeError(path, "artifactCount is %d but %d artifacts are listed",
			m.ArtifactCount, len(m.Artifacts))
	}
	return &m, nil
}
