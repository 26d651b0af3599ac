package release

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/rtgl/internal/ir"
)

// SignatureAlgorithm is the only signing algorithm.
const SignatureAlgorithm = "hmac-sha256"

// Signing key environment variables and their local-dev fallbacks. The
// fallback key only makes local builds verifiable; CI must set its own.
const (
	EnvSigningKey   = "RTGL_RELEASE_SIGNING_KEY"
	EnvSigningKeyID = "RTGL_RELEASE_SIGNING_KEY_ID"

	DefaultSigningKey   = "rtgl-local-dev-signing-key"
	DefaultSigningKeyID = "local-dev"
)

// Key is an HMAC signing key.
type Key struct {
	ID     string
	Secret []byte
}

// IsLocalDev reports whether k is the built-in development key.
func (k Key) IsLocalDev() bool {
	return string(k.Secret) == DefaultSigningKey
}

// KeyFromEnv reads the signing key through getenv, falling back to the
// local-dev key. A nil getenv means os.Getenv.
func KeyFromEnv(getenv func(string) string) Key {
	if getenv == nil {
		getenv = os.Getenv
	}
	k := Key{ID: getenv(EnvSigningKeyID), Secret: []byte(getenv(EnvSigningKey))}
	if strings.TrimSpace(k.ID) == "" {
		k.ID = DefaultSigningKeyID
	}
	if len(k.Secret) == 0 {
		k.Secret = []byte(DefaultSigningKey)
	}
	return k
}

// SignatureEnvelope is the content of release-signature.json.
type SignatureEnvelope struct {
	Version   int    `json:"version"`
	KeyID     string `json:"keyId"`
	Algorithm string `json:"algorithm"`
	Signature string `json:"signature"`
}

// SignManifest computes the HMAC-SHA256 of m's canonical JSON.
func SignManifest(m *Manifest, key Key) (*SignatureEnvelope, error) {
	sig, err := computeSignature(m, key)
	if err != nil {
		return nil, err
	}
	return &SignatureEnvelope{
		Version:   ManifestVersion,
		KeyID:     key.ID,
		Algorithm: SignatureAlgorithm,
		Signature: sig,
	}, nil
}

func computeSignature(m *Manifest, key Key) (string, error) {
	if len(key.Secret) == 0 {
		return "", ir.NewTrustError("key", "signing key is empty")
	}
	data, err := canonicalJSON(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	mac := hmac.New(sha256.New, key.Secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// WriteSignature writes env to dir/release-signature.json.
func WriteSignature(dir string, env *SignatureEnvelope) error {
	return writeJSON(filepath.Join(dir, SignatureFileName), env)
}

// ReadSignature loads dir/release-signature.json.
func ReadSignature(dir string) (*SignatureEnvelope, error) {
	var env SignatureEnvelope
	if err := readJSON(filepath.Join(dir, SignatureFileName), &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// SignRelease writes a fresh manifest and its signature into dir.
func SignRelease(dir string, key Key, opts ManifestOptions) (*Manifest, *SignatureEnvelope, error) {
	m, err := CreateManifest(dir, opts)
	if err != nil {
		return nil, nil, err
	}
	env, err := SignManifest(m, key)
	if err != nil {
		return nil, nil, err
	}
	if err := WriteManifest(dir, m); err != nil {
		return nil, nil, err
	}
	if err := WriteSignature(dir, env); err != nil {
		return nil, nil, err
	}
	return m, env, nil
}

// HashMismatch is a file whose content no longer matches the manifest.
// Expected is empty for files the manifest does not list; Actual is empty
// for listed files that are missing.
type HashMismatch struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// VerifyResult is the outcome of VerifySignedManifest.
type VerifyResult struct {
	// OK requires a matching signature and no hash mismatches.
	OK             bool           `json:"ok"`
	KeyID          string         `json:"keyId"`
	SignatureMatch bool           `json:"signatureMatch"`
	HashMismatches []HashMismatch `json:"hashMismatches"`
}

// VerifySignedManifest checks dir's signature against key and re-hashes
// every file on disk against the manifest. Mismatches are reported in the
// result; an error means the release files could not be read.
func VerifySignedManifest(dir string, key Key) (*VerifyResult, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	env, err := ReadSignature(dir)
	if err != nil {
		return nil, err
	}
	if env.Version != ManifestVersion {
		return nil, ir.NewTrustError(filepath.Join(dir, SignatureFileName),
			"unsupported signature envelope version %d", env.Version)
	}
	if env.Algorithm != SignatureAlgorithm {
		return nil, ir.NewTrustError(filepath.Join(dir, SignatureFileName),
			"unsupported signature algorithm %q", env.Algorithm)
	}

	want, err := computeSignature(m, key)
	if err != nil {
		return nil, err
	}
	res := &VerifyResult{
		KeyID:          env.KeyID,
		SignatureMatch: hmac.Equal([]byte(want), []byte(strings.ToLower(env.Signature))),
	}

	onDisk, err := scanDir(dir)
	if err != nil {
		return nil, err
	}
	res.HashMismatches = compareEntries(m.Artifacts, onDisk)
	res.OK = res.SignatureMatch && len(res.HashMismatches) == 0
	return res, nil
}

// compareEntries diffs the manifest against the files found on disk,
// sorted by path.
func compareEntries(listed, onDisk []ManifestEntry) []HashMismatch {
	actual := make(map[string]string, len(onDisk))
	for _, e := range onDisk {
		actual[e.Path] = e.SHA256
	}

	mismatches := []HashMismatch{}
	seen := make(map[string]bool, len(listed))
	for _, e := range listed {
		seen[e.Path] = true
		if got := actual[e.Path]; got != e.SHA256 {
			mismatches = append(mismatches, HashMismatch{Path: e.Path, Expected: e.SHA256, Actual: got})
		}
	}
	for _, e := range onDisk {
		if !seen[e.Path] {
			mismatches = append(mismatches, HashMismatch{Path: e.Path, Actual: e.SHA256})
		}
	}
	slices.SortFunc(mismatches, func(a, b HashMismatch) int {
		return strings.Compare(a.Path, b.Path)
	})
	return mismatches
}
