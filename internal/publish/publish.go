// Package publish uploads a verified release directory to object storage.
package publish

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
	"github.com/roach88/rtgl/internal/release"
)

// ObjectStore is the upload target. S3Store implements it.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// Options configures a Publisher.
type Options struct {
	// Prefix is prepended to every object key, e.g. "releases/v1.2.0".
	Prefix string

	// Key verifies the release signature before anything is uploaded.
	Key release.Key

	Logger *slog.Logger
}

// Publisher uploads releases.
type Publisher struct {
	store  ObjectStore
	prefix string
	key    release.Key
	logger *slog.Logger
}

// Result lists what was uploaded.
type Result struct {
	Keys []string `json:"keys"`
}

// New creates a Publisher writing to store.
func New(store ObjectStore, opts Options) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:  store,
		prefix: strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		key:    opts.Key,
		logger: logger,
	}
}

// Publish verifies dir and uploads every manifest entry followed by the
// release files. A release whose signature, file hashes or provenance
// do not verify is refused with a KindTrust error and nothing is
// uploaded.
func (p *Publisher) Publish(ctx context.Context, dir string) (*Result, error) {
	verified, err := release.VerifySignedManifest(dir, p.key)
	if err != nil {
		return nil, err
	}
	if !verified.OK {
		e := ir.NewTrustError(dir, "refusing to publish unverified release")
		if !verified.SignatureMatch {
			e.Details = append(e.Details, "signature does not match")
		}
		for _, m := range verified.HashMismatches {
			e.Details = append(e.Details, "hash mismatch: "+m.Path)
		}
		return nil, e
	}

	releaseFiles := []string{release.ManifestFileName, release.SignatureFileName}
	if _, err := os.Stat(filepath.Join(dir, release.ProvenanceFileName)); err == nil {
		prov, err := release.VerifyProvenance(dir)
		if err != nil {
			return nil, err
		}
		if !prov.OK {
			e := ir.NewTrustError(dir, "refusing to publish release with mismatched provenance")
			for _, m := range prov.Mismatches {
				e.Details = append(e.Details, m.Reason+": "+m.Name)
			}
			return nil, e
		}
		releaseFiles = append(releaseFiles, release.ProvenanceFileName)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	m, err := release.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(m.Artifacts)+len(releaseFiles))
	for _, e := range m.Artifacts {
		paths = append(paths, e.Path)
	}
	paths = append(paths, releaseFiles...)

	res := &Result{Keys: make([]string, 0, len(paths))}
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, err
		}
		key := p.objectKey(rel)
		if err := p.store.PutObject(ctx, key, body, contentType(rel)); err != nil {
			return nil, err
		}
		p.logger.Debug("uploaded release file", "key", key, "bytes", len(body))
		res.Keys = append(res.Keys, key)
	}
	p.logger.Info("release published", "objects", len(res.Keys), "prefix", p.prefix)
	return res, nil
}

func (p *Publisher) objectKey(rel string) string {
	if p.prefix == "" {
		return rel
	}
	return p.prefix + "/" + rel
}

func contentType(rel string) string {
	if t := mime.TypeByExtension(path.Ext(rel)); t != "" {
		return t
	}
	return "application/octet-stream"
}
