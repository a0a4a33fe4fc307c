// Package ledger implements the persisted three-way sync record. For
// every declared artifact and tool instance pair it remembers the source
// and target hashes as of the last successful sync or pullback, which is
// what lets the engine tell apart "source moved forward", "someone edited
// the installed copy" and "both sides changed" instead of a blind diff.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/arthur-debert/agentsync/pkg/logging"
	"github.com/gofrs/flock"
)

// DriftKind classifies the relationship between the current hashes and
// the recorded sync state. It is derived, never stored.
type DriftKind string

const (
	// DriftNeverSynced means no ledger record exists for the key.
	DriftNeverSynced DriftKind = "never-synced"
	// DriftInSync means both sides match their recorded hashes.
	DriftInSync DriftKind = "in-sync"
	// DriftSourceChanged means only the source moved; forward sync is safe.
	DriftSourceChanged DriftKind = "source-changed"
	// DriftTargetChanged means only the installed copy moved; a pullback
	// candidate.
	DriftTargetChanged DriftKind = "target-changed"
	// DriftBothChanged is a conflict. There is no automatic resolution:
	// the caller must surface it for a manual choice.
	DriftBothChanged DriftKind = "both-changed"
)

// Key identifies one synced artifact instance. The string form
// "name:tool:instance:targetRel" appears only at the JSON boundary.
type Key struct {
	Name      string
	Tool      string
	Instance  string
	TargetRel string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Name, k.Tool, k.Instance, k.TargetRel)
}

// ParseKey parses the JSON-boundary string form back into a Key. The
// target relative path may itself contain colons on exotic setups, so it
// absorbs the remainder.
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 {
		return Key{}, errors.Newf(errors.ErrInvalidInput, "malformed ledger key %q", s)
	}
	return Key{Name: parts[0], Tool: parts[1], Instance: parts[2], TargetRel: parts[3]}, nil
}

// Entry records the state of a pair as of the last successful sync or
// pullback. Mutated only by RecordSync and RecordSyncTree.
type Entry struct {
	SourceHash string    `json:"sourceHash"`
	TargetHash string    `json:"targetHash"`
	SourcePath string    `json:"sourcePath"`
	TargetPath string    `json:"targetPath"`
	SyncedAt   time.Time `json:"syncedAt"`
	// Files is the relative file set that was synced, recorded for
	// directory trees only. Target-side drift detection hashes over this
	// set, not the current source enumeration, so a file added to or
	// removed from the source alone never reads as a target change.
	Files []string `json:"files,omitempty"`
}

// Store persists ledger entries as a JSON file. All read-modify-write
// cycles run under an advisory file lock so concurrent agentsync
// processes cannot interleave partial updates.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore returns a Store backed by the JSON file at path. The lock
// file lives next to the ledger; its parent directory must exist before
// the first lock acquisition, so it is created here. A failure surfaces
// later as LOCK_FAILED with the underlying cause.
func NewStore(path string) *Store {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// load reads the ledger file. A missing file is an empty ledger; an
// unparseable one is LEDGER_CORRUPTED and never silently reset, since
// the recorded hashes are what future drift decisions depend on.
func (s *Store) load() (map[string]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Entry{}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read ledger %s", s.path)
	}

	entries := map[string]Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, errors.ErrLedgerCorrupted, "ledger file %s is corrupted", s.path)
	}
	return entries, nil
}

func (s *Store) save(entries map[string]Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode ledger")
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write ledger %s", s.path)
	}
	return nil
}

// Get returns the recorded entry for key, if any.
func (s *Store) Get(key Key) (Entry, bool, error) {
	if err := s.lock.RLock(); err != nil {
		return Entry{}, false, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire ledger read lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := entries[key.String()]
	return entry, ok, nil
}

// DetectDrift classifies the current hashes against the recorded state.
func (s *Store) DetectDrift(key Key, currentSourceHash, currentTargetHash string) (DriftKind, error) {
	entry, ok, err := s.Get(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return DriftNeverSynced, nil
	}

	sourceMoved := currentSourceHash != entry.SourceHash
	targetMoved := currentTargetHash != entry.TargetHash

	switch {
	case !sourceMoved && !targetMoved:
		return DriftInSync, nil
	case sourceMoved && targetMoved:
		return DriftBothChanged, nil
	case sourceMoved:
		return DriftSourceChanged, nil
	default:
		return DriftTargetChanged, nil
	}
}

// RecordSync writes or overwrites the entry for key. Called after every
// successful apply or pullback, never on check-only runs.
func (s *Store) RecordSync(key Key, sourceHash, targetHash, sourcePath, targetPath string) error {
	return s.RecordSyncTree(key, sourceHash, targetHash, sourcePath, targetPath, nil)
}

// RecordSyncTree is RecordSync for directory trees: files carries the
// relative paths that were synced, which later drift detection uses to
// hash the target side.
func (s *Store) RecordSyncTree(key Key, sourceHash, targetHash, sourcePath, targetPath string, files []string) error {
	logger := logging.GetLogger("ledger")

	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, errors.ErrLockFailed, "failed to acquire ledger lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[key.String()] = Entry{
		SourceHash: sourceHash,
		TargetHash: targetHash,
		SourcePath: sourcePath,
		TargetPath: targetPath,
		SyncedAt:   time.Now().UTC(),
		Files:      files,
	}

	if err := s.save(entries); err != nil {
		return err
	}

	logger.Debug().
		Str("key", key.String()).
		Str("sourceHash", sourceHash).
		Str("targetHash", targetHash).
		Msg("Recorded sync state")

	return nil
}

// Remove deletes the entry for key if present.
func (s *Store) Remove(key Key) error {
	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, errors.ErrLockFailed, "failed to acquire ledger lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[key.String()]; !ok {
		return nil
	}
	delete(entries, key.String())
	return s.save(entries)
}

// Keys returns all recorded keys.
func (s *Store) Keys() ([]Key, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire ledger read lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]Key, 0, len(entries))
	for raw := range entries {
		key, err := ParseKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrLedgerCorrupted, "ledger file %s holds a malformed key", s.path)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// CleanupOrphans removes entries whose keys are no longer declared,
// returning how many were dropped.
func (s *Store) CleanupOrphans(valid map[Key]bool) (int, error) {
	return s.CleanupOrphansFunc(func(key Key) bool { return valid[key] })
}

// CleanupOrphansFunc removes entries for which keep returns false,
// returning how many were dropped. Glob declarations record one entry
// per expanded pair, so callers pruning against declarations match on
// the declaration identity rather than the full key. This and Remove
// are the only paths that ever delete a ledger record.
func (s *Store) CleanupOrphansFunc(keep func(Key) bool) (int, error) {
	if err := s.lock.Lock(); err != nil {
		return 0, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire ledger lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}

	removed := 0
	for raw := range entries {
		key, err := ParseKey(raw)
		if err != nil {
			return removed, errors.Wrapf(err, errors.ErrLedgerCorrupted, "ledger file %s holds a malformed key", s.path)
		}
		if !keep(key) {
			delete(entries, raw)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(entries)
}
