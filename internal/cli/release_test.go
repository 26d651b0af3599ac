package cli

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtgl/internal/publish"
	"github.com/roach88/rtgl/internal/release"
	"github.com/roach88/rtgl/internal/testutil"
)

func releaseDir(t *testing.T) string {
	t.Helper()
	t.Setenv(release.EnvSigningKey, "cli-test-secret")
	t.Setenv(release.EnvSigningKeyID, "ci")
	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string]string{
		"artifact.json":    "{}\n",
		"assets/app.js":    "console.log(1);\n",
		"assets/style.css": "body{}\n",
	})
	return dir
}

// releaseCLI runs a release subcommand against dir with an empty project.
func releaseCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"release"}, args...)
	full = append(full, dir, "--project", t.TempDir())
	return runCLI(t, full...)
}

func TestReleaseManifestCommand(t *testing.T) {
	dir := releaseDir(t)

	output, err := releaseCLI(t, dir, "manifest")
	require.NoError(t, err)
	assert.Contains(t, output, "listing 3 files")

	m, err := release.ReadManifest(dir)
	require.NoError(t, err)
	assert.Len(t, m.Artifacts, 3)
}

func TestReleaseSignAndVerifyCommands(t *testing.T) {
	dir := releaseDir(t)

	output, err := releaseCLI(t, dir, "sign")
	require.NoError(t, err)
	assert.Contains(t, output, "Signed 3 files with key ci")

	output, err = releaseCLI(t, dir, "verify")
	require.NoError(t, err)
	assert.Contains(t, output, "Release verified (key ci)")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("evil();\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.txt"), []byte("x"), 0o644))

	output, err = releaseCLI(t, dir, "verify")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "modified: assets/app.js")
	assert.Contains(t, output, "unlisted: extra.txt")
}

func TestReleaseVerifyWrongKey(t *testing.T) {
	dir := releaseDir(t)
	_, err := releaseCLI(t, dir, "sign")
	require.NoError(t, err)

	t.Setenv(release.EnvSigningKey, "another-secret")
	output, err := releaseCLI(t, dir, "verify", "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, `"code": "E021"`)
	assert.Contains(t, output, `"signatureMatch": false`)
}

func TestReleaseProvenanceCommands(t *testing.T) {
	dir := releaseDir(t)
	_, err := releaseCLI(t, dir, "sign")
	require.NoError(t, err)

	output, err := releaseCLI(t, dir, "provenance")
	require.NoError(t, err)
	assert.Contains(t, output, "attesting 3 subjects")

	output, err = releaseCLI(t, dir, "verify-provenance")
	require.NoError(t, err)
	assert.Contains(t, output, "Provenance verified")

	// Re-manifest after a content change: the old subjects no longer match.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("v2();\n"), 0o644))
	_, err = releaseCLI(t, dir, "manifest")
	require.NoError(t, err)

	output, err = releaseCLI(t, dir, "verify-provenance")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "digest-mismatch: assets/app.js")
}

func TestReleaseManifestMissingDir(t *testing.T) {
	output, err := releaseCLI(t, filepath.Join(t.TempDir(), "missing"), "manifest")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error [E010]")
}

type recordingStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *recordingStore) PutObject(_ context.Context, key string, body []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = body
	return nil
}

func stubObjectStore(t *testing.T) *recordingStore {
	t.Helper()
	store := &recordingStore{objects: map[string][]byte{}}
	orig := newObjectStore
	newObjectStore = func(publish.S3Config) (publish.ObjectStore, error) { return store, nil }
	t.Cleanup(func() { newObjectStore = orig })
	return store
}

func TestReleasePublishCommand(t *testing.T) {
	store := stubObjectStore(t)
	dir := releaseDir(t)
	_, err := releaseCLI(t, dir, "sign")
	require.NoError(t, err)

	output, err := releaseCLI(t, dir, "publish", "--prefix", "releases/v1")
	require.NoError(t, err)
	assert.Contains(t, output, "Published 5 objects")

	assert.Contains(t, store.objects, "releases/v1/assets/app.js")
	assert.Contains(t, store.objects, "releases/v1/"+release.ManifestFileName)
	assert.Contains(t, store.objects, "releases/v1/"+release.SignatureFileName)
}

func TestReleasePublishRefusesTamperedRelease(t *testing.T) {
	store := stubObjectStore(t)
	dir := releaseDir(t)
	_, err := releaseCLI(t, dir, "sign")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "artifact.json"), []byte("{\"x\":1}\n"), 0o644))

	output, err := releaseCLI(t, dir, "publish")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error [E013]")
	assert.Empty(t, store.objects)
}
