// Test Type: Unit Test
// Description: Tests for the glob-copy module - pattern expansion and
// flag-based pullback

package syncmod_test

import (
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func globParams(e *env) syncmod.Params {
	return syncmod.Params{
		Label:      "commands",
		SourcePath: filepath.Join(e.sourceDir, "commands", "**", "*.md"),
		TargetPath: filepath.Join(e.targetDir, "commands"),
		LedgerKey:  fileKey("commands"),
	}
}

func seedCommands(t *testing.T, e *env) syncmod.Params {
	t.Helper()
	params := globParams(e)
	write(t, filepath.Join(e.sourceDir, "commands/lint.md"), "lint\n")
	write(t, filepath.Join(e.sourceDir, "commands/scm/commit.md"), "commit\n")
	write(t, filepath.Join(e.sourceDir, "commands/notes.txt"), "not matched\n")
	return params
}

func TestGlobCopy_CheckNoMatches(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)

	result := m.Check(globParams(e))
	assert.Equal(t, syncmod.StatusMissing, result.Status)
	assert.Contains(t, result.Message, "matched no files")
}

func TestGlobCopy_ApplyExpandsPattern(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)
	params := seedCommands(t, e)

	result := m.Apply(params)
	require.NoError(t, result.Err)
	assert.True(t, result.Changed)

	// Matches land under the target preserving relative layout; the
	// non-matching file is not copied.
	assert.FileExists(t, filepath.Join(params.TargetPath, "lint.md"))
	assert.FileExists(t, filepath.Join(params.TargetPath, "scm/commit.md"))
	assert.NoFileExists(t, filepath.Join(params.TargetPath, "notes.txt"))

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusOK, check.Status)
}

func TestGlobCopy_PartialInstallIsMissing(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)
	params := seedCommands(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(e.sourceDir, "commands/new.md"), "new\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusMissing, check.Status)
}

func TestGlobCopy_DriftReportsFiles(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)
	params := seedCommands(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.TargetPath, "lint.md"), "edited\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusDrifted, check.Status)
	assert.Contains(t, check.Message, "lint.md")
	assert.Contains(t, check.Diff, "+edited")
}

func TestGlobCopy_PullbackFlag(t *testing.T) {
	// The source side is a pattern, so pullback cannot swap paths; the
	// flag makes each expanded pair treat its target as authoritative.
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)
	params := seedCommands(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.TargetPath, "scm/commit.md"), "edited commit\n")

	params.Pullback = true
	result := m.Apply(params)
	require.NoError(t, result.Err)
	assert.True(t, result.Changed)

	assert.Equal(t, "edited commit\n", read(t, filepath.Join(e.sourceDir, "commands/scm/commit.md")))
	// Untouched pairs stay as they were.
	assert.Equal(t, "lint\n", read(t, filepath.Join(e.sourceDir, "commands/lint.md")))
}

func TestGlobCopy_ApplyNoMatches(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)

	result := m.Apply(globParams(e))
	require.Error(t, result.Err)
	assert.True(t, errors.IsErrorCode(result.Err, errors.ErrSourceMissing))
}

func TestGlobCopy_PerPairLedgerKeys(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewGlobCopy(e.deps)
	params := seedCommands(t, e)

	require.NoError(t, m.Apply(params).Err)

	keys, err := e.deps.Ledger.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	rels := make(map[string]bool)
	for _, k := range keys {
		rels[k.TargetRel] = true
	}
	assert.True(t, rels["commands/lint.md"])
	assert.True(t, rels["commands/scm/commit.md"])
}
