package syncmod_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
	"github.com/arthur-debert/agentsync/pkg/testutil"
	"github.com/stretchr/testify/require"
)

// env bundles the module collaborators over an isolated environment.
type env struct {
	deps      syncmod.Deps
	sourceDir string
	targetDir string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tenv := testutil.NewTestEnvironment(t)
	return &env{
		deps:      tenv.Deps(),
		sourceDir: tenv.SourceRoot,
		targetDir: tenv.InstanceDir,
	}
}

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func fileKey(name string) *ledger.Key {
	return &ledger.Key{Name: name, Tool: "claude-code", Instance: "default", TargetRel: name}
}

func (e *env) fileParams(name, sourceRel, targetRel string) syncmod.Params {
	return syncmod.Params{
		Label:      name,
		SourcePath: filepath.Join(e.sourceDir, sourceRel),
		TargetPath: filepath.Join(e.targetDir, targetRel),
		LedgerKey:  fileKey(name),
	}
}
