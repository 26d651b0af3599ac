package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rtgl/internal/config"
)

func TestCheckCommand(t *testing.T) {
	root := todoProject(t)

	output, err := runCLI(t, "check", root)
	require.NoError(t, err)
	assert.Contains(t, output, "Checked 2 components: 0 errors, 0 warnings")

	// check never writes an artifact.
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(config.DefaultOutDir)))
	assert.True(t, os.IsNotExist(err))
}

func TestCheckCommandFailsOnErrors(t *testing.T) {
	output, err := runCLI(t, "check", brokenProject(t))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "RTGL-CHECK-VIEW-001")
}

func TestCheckCommandPolicyDisablesRule(t *testing.T) {
	root := brokenProject(t)
	pack := filepath.Join(t.TempDir(), "pack.yaml")
	require.NoError(t, os.WriteFile(pack, []byte(`name: quiet
rules:
  - id: RTGL-CHECK-VIEW-001
    enabled: false
`), 0o644))

	output, err := runCLI(t, "check", root, "--policy", pack)
	require.NoError(t, err)
	assert.NotContains(t, output, "RTGL-CHECK-VIEW-001")
	assert.Contains(t, output, "0 errors, 0 warnings")
}
