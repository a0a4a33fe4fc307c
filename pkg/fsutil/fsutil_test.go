// Test Type: Unit Test
// Description: Tests for the fsutil package - atomic writes, tree copies
// and dir-aware removal

package fsutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")

	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("one"), 0644))
	require.NoError(t, fsutil.WriteFileAtomic(path, []byte("two"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCopyReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "f")

	require.NoError(t, fsutil.CopyReader(path, strings.NewReader("streamed"), 0600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(data))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), fi.Mode().Perm())
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b"), []byte("b"), 0644))
	// Symlinks are followed; dangling links are skipped.
	require.NoError(t, os.Symlink(filepath.Join(src, "a"), filepath.Join(src, "link")))
	require.NoError(t, os.Symlink(filepath.Join(src, "gone"), filepath.Join(src, "dangling")))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, fsutil.CopyTree(src, dst))

	assert.FileExists(t, filepath.Join(dst, "a"))
	assert.FileExists(t, filepath.Join(dst, "sub", "b"))
	data, err := os.ReadFile(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))
	assert.NoFileExists(t, filepath.Join(dst, "dangling"))
}

func TestRemovePath(t *testing.T) {
	root := t.TempDir()

	file := filepath.Join(root, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	require.NoError(t, fsutil.RemovePath(file))
	assert.NoFileExists(t, file)

	dir := filepath.Join(root, "d")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, fsutil.RemovePath(dir))
	assert.NoDirExists(t, dir)

	// Missing paths are not an error.
	assert.NoError(t, fsutil.RemovePath(filepath.Join(root, "absent")))
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	assert.False(t, fsutil.Exists(filepath.Join(root, "nope")))

	// A dangling symlink still exists as a path.
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), link))
	assert.True(t, fsutil.Exists(link))
}
