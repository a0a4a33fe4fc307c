// Package testutil provides isolated test environments wiring the real
// stores over temp directories, plus small fixture helpers. Everything
// is scoped to the test via t.TempDir and t.Setenv, so parallel test
// binaries never share state.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
)

// TestEnvironment bundles the stores and directories a sync test needs.
type TestEnvironment struct {
	// SourceRoot is the canonical artifact tree.
	SourceRoot string
	// InstanceDir stands in for one tool instance's config directory.
	InstanceDir string
	// StateDir holds ledger, manifest and backups.
	StateDir string

	Ledger   *ledger.Store
	Manifest *manifest.Store
	Backups  *backup.Manager

	t *testing.T
}

// NewTestEnvironment builds an isolated environment with real stores
// over a temp directory and AGENTSYNC_* env vars pointing into it.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	root := t.TempDir()
	env := &TestEnvironment{
		SourceRoot:  filepath.Join(root, "source"),
		InstanceDir: filepath.Join(root, "instance"),
		StateDir:    filepath.Join(root, "state"),
		t:           t,
	}

	for _, dir := range []string{env.SourceRoot, env.InstanceDir, env.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	t.Setenv("AGENTSYNC_SOURCE_ROOT", env.SourceRoot)
	t.Setenv("AGENTSYNC_DATA_DIR", filepath.Join(env.StateDir, "data"))
	t.Setenv("AGENTSYNC_CONFIG_DIR", filepath.Join(env.StateDir, "config"))
	t.Setenv("AGENTSYNC_STATE_DIR", filepath.Join(env.StateDir, "state"))

	env.Ledger = ledger.NewStore(filepath.Join(env.StateDir, "ledger.json"))
	env.Manifest = manifest.NewStore(filepath.Join(env.StateDir, "manifest.json"))
	env.Backups = backup.NewManager(filepath.Join(env.StateDir, "backups"), 5)

	return env
}

// Deps returns the module dependencies wired to this environment.
func (env *TestEnvironment) Deps() syncmod.Deps {
	return syncmod.Deps{Ledger: env.Ledger, Backups: env.Backups}
}

// WriteSource creates a file under the source root and returns its path.
func (env *TestEnvironment) WriteSource(rel, content string) string {
	env.t.Helper()
	return env.write(filepath.Join(env.SourceRoot, rel), content)
}

// WriteTarget creates a file under the instance directory and returns
// its path.
func (env *TestEnvironment) WriteTarget(rel, content string) string {
	env.t.Helper()
	return env.write(filepath.Join(env.InstanceDir, rel), content)
}

func (env *TestEnvironment) write(path, content string) string {
	env.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		env.t.Fatalf("failed to create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		env.t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// SourcePath resolves a path under the source root without creating it.
func (env *TestEnvironment) SourcePath(rel string) string {
	return filepath.Join(env.SourceRoot, rel)
}

// TargetPath resolves a path under the instance dir without creating it.
func (env *TestEnvironment) TargetPath(rel string) string {
	return filepath.Join(env.InstanceDir, rel)
}
