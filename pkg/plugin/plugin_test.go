// Test Type: Unit Test
// Description: Tests for the plugin package - discovery and the disabled list

package plugin_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// buildPlugin lays out a plugin with 2 skills, 2 commands (one nested)
// and 1 agent.
func buildPlugin(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	writeFile(t, filepath.Join(dir, "plugin.yaml"), "name: "+name+"\nversion: 1.2.0\ndescription: test plugin\n")
	writeFile(t, filepath.Join(dir, "skills/review/SKILL.md"), "# review\n")
	writeFile(t, filepath.Join(dir, "skills/refactor/SKILL.md"), "# refactor\n")
	writeFile(t, filepath.Join(dir, "commands/lint.md"), "lint\n")
	writeFile(t, filepath.Join(dir, "commands/scm/commit.md"), "commit\n")
	writeFile(t, filepath.Join(dir, "agents/helper.md"), "helper\n")
	return dir
}

func TestLoad(t *testing.T) {
	dir := buildPlugin(t, "foo")

	p, err := plugin.Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "foo", p.Meta.Name)
	assert.Equal(t, "1.2.0", p.Meta.Version)
	require.Len(t, p.Components, 5)

	byKey := map[string]plugin.Component{}
	for _, c := range p.Components {
		byKey[c.Key().String()] = c
	}

	assert.True(t, byKey["skill:review"].IsDir)
	assert.True(t, byKey["skill:refactor"].IsDir)
	assert.False(t, byKey["command:lint"].IsDir)
	assert.Contains(t, byKey, "command:scm/commit")
	assert.Contains(t, byKey, "agent:helper")
}

func TestLoad_MissingMetadata(t *testing.T) {
	_, err := plugin.Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPluginNotFound))
}

func TestLoad_InvalidMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugin.yaml"), "version: only\n")

	_, err := plugin.Load(dir)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPluginInvalid))
}

func TestLoad_NoComponents(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "plugin.yaml"), "name: empty\n")

	p, err := plugin.Load(dir)
	require.NoError(t, err)
	assert.Empty(t, p.Components)
}

func TestComponentLookup(t *testing.T) {
	p, err := plugin.Load(buildPlugin(t, "foo"))
	require.NoError(t, err)

	c, ok := p.Component(manifest.ComponentKey{Kind: manifest.KindSkill, Name: "review"})
	require.True(t, ok)
	assert.Equal(t, "review", c.Name)

	_, ok = p.Component(manifest.ComponentKey{Kind: manifest.KindSkill, Name: "absent"})
	assert.False(t, ok)
}

func TestDisabledList(t *testing.T) {
	list := plugin.NewDisabledList(t.TempDir())
	key := manifest.ComponentKey{Kind: manifest.KindSkill, Name: "review"}

	disabled, err := list.Load()
	require.NoError(t, err)
	assert.Empty(t, disabled)

	require.NoError(t, list.Add(key))
	// Idempotent.
	require.NoError(t, list.Add(key))

	disabled, err = list.Load()
	require.NoError(t, err)
	assert.True(t, disabled[key])
	assert.Len(t, disabled, 1)

	require.NoError(t, list.Remove(key))
	require.NoError(t, list.Remove(key))

	disabled, err = list.Load()
	require.NoError(t, err)
	assert.Empty(t, disabled)
}
