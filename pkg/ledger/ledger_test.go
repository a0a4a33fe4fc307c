// Test Type: Unit Test
// Description: Tests for the ledger package - drift classification and persistence

package ledger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() ledger.Key {
	return ledger.Key{
		Name:      "claude-md",
		Tool:      "claude-code",
		Instance:  "default",
		TargetRel: "CLAUDE.md",
	}
}

func newStore(t *testing.T) *ledger.Store {
	t.Helper()
	return ledger.NewStore(filepath.Join(t.TempDir(), "ledger.json"))
}

func TestRecordSync_FreshDataDir(t *testing.T) {
	// The data directory does not exist until the first write: the store
	// must create it before opening the lock file.
	path := filepath.Join(t.TempDir(), "data", "state", "ledger.json")
	store := ledger.NewStore(path)

	require.NoError(t, store.RecordSync(testKey(), "sha256:aaa", "sha256:aaa", "/src", "/dst"))

	entry, ok, err := store.Get(testKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sha256:aaa", entry.SourceHash)
}

func TestRecordSyncTree_PersistsFileSet(t *testing.T) {
	store := newStore(t)
	files := []string{"lint/SKILL.md", "review/SKILL.md"}

	require.NoError(t, store.RecordSyncTree(testKey(), "sha256:aaa", "sha256:aaa", "/src", "/dst", files))

	entry, ok, err := store.Get(testKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, files, entry.Files)
}

func TestKeyRoundTrip(t *testing.T) {
	key := testKey()
	parsed, err := ledger.ParseKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseKey_Malformed(t *testing.T) {
	_, err := ledger.ParseKey("only:three:parts")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestDetectDrift_NeverSynced(t *testing.T) {
	store := newStore(t)

	drift, err := store.DetectDrift(testKey(), "sha256:aaa", "sha256:bbb")
	require.NoError(t, err)
	assert.Equal(t, ledger.DriftNeverSynced, drift)
}

func TestDetectDrift_Classification(t *testing.T) {
	key := testKey()

	tests := []struct {
		name       string
		sourceHash string
		targetHash string
		want       ledger.DriftKind
	}{
		{name: "in_sync", sourceHash: "sha256:src", targetHash: "sha256:tgt", want: ledger.DriftInSync},
		{name: "source_changed", sourceHash: "sha256:new", targetHash: "sha256:tgt", want: ledger.DriftSourceChanged},
		{name: "target_changed", sourceHash: "sha256:src", targetHash: "sha256:edited", want: ledger.DriftTargetChanged},
		{name: "both_changed", sourceHash: "sha256:new", targetHash: "sha256:edited", want: ledger.DriftBothChanged},
		{name: "target_deleted", sourceHash: "sha256:src", targetHash: "", want: ledger.DriftTargetChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.RecordSync(key, "sha256:src", "sha256:tgt", "/src", "/tgt"))

			drift, err := store.DetectDrift(key, tt.sourceHash, tt.targetHash)
			require.NoError(t, err)
			assert.Equal(t, tt.want, drift)
		})
	}
}

func TestRecordSync_Overwrites(t *testing.T) {
	store := newStore(t)
	key := testKey()

	require.NoError(t, store.RecordSync(key, "sha256:v1", "sha256:v1", "/src", "/tgt"))
	require.NoError(t, store.RecordSync(key, "sha256:v2", "sha256:v2", "/src", "/tgt"))

	entry, ok, err := store.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sha256:v2", entry.SourceHash)
	assert.Equal(t, "sha256:v2", entry.TargetHash)
	assert.False(t, entry.SyncedAt.IsZero())
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	key := testKey()

	first := ledger.NewStore(path)
	require.NoError(t, first.RecordSync(key, "sha256:src", "sha256:tgt", "/src", "/tgt"))

	second := ledger.NewStore(path)
	entry, ok, err := second.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sha256:src", entry.SourceHash)
	assert.Equal(t, "/tgt", entry.TargetPath)
}

func TestStore_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := ledger.NewStore(path)

	_, _, err := store.Get(testKey())
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrLedgerCorrupted))

	// A corrupted ledger must never be silently reset.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data))
}

func TestRemove(t *testing.T) {
	store := newStore(t)
	key := testKey()

	require.NoError(t, store.RecordSync(key, "sha256:src", "sha256:tgt", "/src", "/tgt"))
	require.NoError(t, store.Remove(key))

	_, ok, err := store.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing again is a no-op.
	assert.NoError(t, store.Remove(key))
}

func TestCleanupOrphans(t *testing.T) {
	store := newStore(t)

	kept := testKey()
	orphanA := ledger.Key{Name: "gone", Tool: "claude-code", Instance: "default", TargetRel: "a.md"}
	orphanB := ledger.Key{Name: "gone", Tool: "cursor", Instance: "work", TargetRel: "b.md"}

	require.NoError(t, store.RecordSync(kept, "sha256:s", "sha256:t", "/s", "/t"))
	require.NoError(t, store.RecordSync(orphanA, "sha256:s", "sha256:t", "/s", "/t"))
	require.NoError(t, store.RecordSync(orphanB, "sha256:s", "sha256:t", "/s", "/t"))

	removed, err := store.CleanupOrphans(map[ledger.Key]bool{kept: true})
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := store.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, kept, keys[0])
}
