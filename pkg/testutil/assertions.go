package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertFileContent fails unless path exists with exactly content.
func AssertFileContent(t *testing.T, path, content string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "expected %s to exist", path)
	assert.Equal(t, content, string(data))
}

// AssertSymlinkTo fails unless path is a symlink pointing at target.
func AssertSymlinkTo(t *testing.T, path, target string) {
	t.Helper()
	fi, err := os.Lstat(path)
	require.NoError(t, err, "expected %s to exist", path)
	require.Equal(t, os.ModeSymlink, fi.Mode()&os.ModeSymlink, "%s is not a symlink", path)
	dest, err := os.Readlink(path)
	require.NoError(t, err)
	assert.Equal(t, target, dest)
}
