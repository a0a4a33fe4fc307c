// Test Type: Unit Test
// Description: Tests for the paths package - source root resolution and
// environment overrides

package paths_test

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ExplicitRoot(t *testing.T) {
	root := t.TempDir()

	p, err := paths.New(root)
	require.NoError(t, err)
	assert.Equal(t, root, p.SourceRoot())
	assert.False(t, p.UsedFallback())
}

func TestNew_EnvOverrides(t *testing.T) {
	root := t.TempDir()
	state := t.TempDir()
	t.Setenv("AGENTSYNC_SOURCE_ROOT", root)
	t.Setenv("AGENTSYNC_DATA_DIR", filepath.Join(state, "data"))
	t.Setenv("AGENTSYNC_CONFIG_DIR", filepath.Join(state, "config"))
	t.Setenv("AGENTSYNC_STATE_DIR", filepath.Join(state, "state"))

	p, err := paths.New("")
	require.NoError(t, err)

	assert.Equal(t, root, p.SourceRoot())
	assert.Equal(t, filepath.Join(state, "data"), p.DataDir())
	assert.Equal(t, filepath.Join(state, "config", "agentsync.toml"), p.ConfigFilePath())
	assert.Equal(t, filepath.Join(state, "data", "ledger.json"), p.LedgerPath())
	assert.Equal(t, filepath.Join(state, "data", "manifest.json"), p.ManifestPath())
	assert.Equal(t, filepath.Join(state, "data", "backups"), p.BackupsDir())
	assert.Equal(t, filepath.Join(state, "data", "plugins", "foo"), p.PluginStateDir("foo"))
}

func TestNormalizePath(t *testing.T) {
	p, err := paths.New(t.TempDir())
	require.NoError(t, err)

	abs, err := p.NormalizePath("/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "/etc/hosts", abs)

	home, err := p.NormalizePath("~/x")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(home))
	assert.Equal(t, "x", filepath.Base(home))
}
