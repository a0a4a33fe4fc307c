// Test Type: Unit Test
// Description: Tests for the directory-sync module - source-scoped comparison
// and tree apply

package syncmod_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dirParams(e *env) syncmod.Params {
	return syncmod.Params{
		Label:      "skills",
		SourcePath: filepath.Join(e.sourceDir, "skills"),
		TargetPath: filepath.Join(e.targetDir, "skills"),
		LedgerKey:  fileKey("skills"),
		Owner:      backup.Owner{Name: "skills", Kind: "dir", Item: "skills"},
	}
}

func seedSkills(t *testing.T, e *env) syncmod.Params {
	t.Helper()
	params := dirParams(e)
	write(t, filepath.Join(params.SourcePath, "review/SKILL.md"), "# review\n")
	write(t, filepath.Join(params.SourcePath, "lint/SKILL.md"), "# lint\n")
	return params
}

func TestDirSync_CheckMissingTarget(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	result := m.Check(params)
	assert.Equal(t, syncmod.StatusMissing, result.Status)
}

func TestDirSync_ApplyThenCheckOK(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	result := m.Apply(params)
	require.NoError(t, result.Err)
	assert.True(t, result.Changed)
	assert.FileExists(t, filepath.Join(params.TargetPath, "review/SKILL.md"))
	assert.FileExists(t, filepath.Join(params.TargetPath, "lint/SKILL.md"))

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusOK, check.Status)

	// Re-apply with no changes is a no-op.
	again := m.Apply(params)
	require.NoError(t, again.Err)
	assert.False(t, again.Changed)
}

func TestDirSync_UnmanagedTargetFileIgnored(t *testing.T) {
	// Files that exist only in the target are tool-managed and must
	// never count as drift.
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.TargetPath, "tool-cache.json"), "{}\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusOK, check.Status)
}

func TestDirSync_DriftOnMissingTargetFile(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	require.NoError(t, m.Apply(params).Err)
	require.NoError(t, os.Remove(filepath.Join(params.TargetPath, "lint/SKILL.md")))

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusDrifted, check.Status)
	assert.Contains(t, check.Message, "lint/SKILL.md")
	assert.Equal(t, ledger.DriftTargetChanged, check.Drift)
}

func TestDirSync_DriftOnContentMismatch(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.SourcePath, "review/SKILL.md"), "# review v2\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusDrifted, check.Status)
	assert.Equal(t, ledger.DriftSourceChanged, check.Drift)
	assert.Contains(t, check.Diff, "+# review v2")
}

func TestDirSync_SourceOnlyAddIsSourceChanged(t *testing.T) {
	// A file added to the source alone moved only the source side: the
	// target still matches the file set recorded at the last sync, so a
	// forward sync is safe and must not read as a conflict.
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.SourcePath, "format/SKILL.md"), "# format\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusDrifted, check.Status)
	assert.Equal(t, ledger.DriftSourceChanged, check.Drift)
	assert.Contains(t, check.Message, "format/SKILL.md")
}

func TestDirSync_SourceAddPlusTargetEditIsConflict(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.SourcePath, "format/SKILL.md"), "# format\n")
	write(t, filepath.Join(params.TargetPath, "review/SKILL.md"), "local edit\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusDrifted, check.Status)
	assert.Equal(t, ledger.DriftBothChanged, check.Drift)
}

func TestDirSync_ApplyBacksUpWholeTarget(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := seedSkills(t, e)

	require.NoError(t, m.Apply(params).Err)
	write(t, filepath.Join(params.TargetPath, "review/SKILL.md"), "local edit\n")

	result := m.Apply(params)
	require.NoError(t, result.Err)
	require.NotEmpty(t, result.BackupPath)
	assert.Equal(t, "local edit\n", read(t, filepath.Join(result.BackupPath, "review/SKILL.md")))
	assert.Equal(t, "# review\n", read(t, filepath.Join(params.TargetPath, "review/SKILL.md")))
}

func TestDirSync_ApplySourceMissing(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := dirParams(e)

	result := m.Apply(params)
	require.Error(t, result.Err)
	assert.True(t, errors.IsErrorCode(result.Err, errors.ErrSourceMissing))
}

func TestDirSync_SourceIsFile(t *testing.T) {
	e := newEnv(t)
	m := syncmod.NewDirSync(e.deps)
	params := dirParams(e)
	write(t, params.SourcePath, "not a directory\n")

	check := m.Check(params)
	assert.Equal(t, syncmod.StatusFailed, check.Status)
}
