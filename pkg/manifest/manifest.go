// Package manifest persists the record of every plugin component
// currently linked or copied into a tool instance. Each entry keeps
// enough history — a one-deep previous chain and the backup path — for a
// later uninstall to put back whatever occupied the destination before.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/gofrs/flock"
)

// Kind is a plugin component kind.
type Kind string

const (
	KindSkill   Kind = "skill"
	KindCommand Kind = "command"
	KindAgent   Kind = "agent"
)

// Kinds lists all component kinds in discovery order.
var Kinds = []Kind{KindSkill, KindCommand, KindAgent}

// InstanceKey identifies one configured installation of a target tool.
// The string form "tool:instance" appears only at the JSON boundary.
type InstanceKey struct {
	Tool     string
	Instance string
}

func (k InstanceKey) String() string {
	return fmt.Sprintf("%s:%s", k.Tool, k.Instance)
}

// ParseInstanceKey parses the JSON-boundary form of an InstanceKey.
func ParseInstanceKey(s string) (InstanceKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return InstanceKey{}, errors.Newf(errors.ErrInvalidInput, "malformed instance key %q", s)
	}
	return InstanceKey{Tool: parts[0], Instance: parts[1]}, nil
}

// ComponentKey identifies one component within an instance manifest.
type ComponentKey struct {
	Kind Kind
	Name string
}

func (k ComponentKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Name)
}

// ParseComponentKey parses the JSON-boundary form of a ComponentKey.
func ParseComponentKey(s string) (ComponentKey, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ComponentKey{}, errors.Newf(errors.ErrInvalidInput, "malformed component key %q", s)
	}
	return ComponentKey{Kind: Kind(parts[0]), Name: parts[1]}, nil
}

// ManagedItem is one linked plugin component. Previous forms a one-deep
// undo chain: whatever occupied Dest before this item was installed.
type ManagedItem struct {
	Kind     Kind         `json:"kind"`
	Name     string       `json:"name"`
	Source   string       `json:"source"`
	Dest     string       `json:"dest"`
	Backup   string       `json:"backup,omitempty"`
	Owner    string       `json:"owner"`
	Previous *ManagedItem `json:"previous,omitempty"`
}

// file-level JSON shapes
type instanceEntry struct {
	Items map[string]ManagedItem `json:"items"`
}

type manifestFile struct {
	Tools map[string]instanceEntry `json:"tools"`
}

// Store persists the manifest as a JSON file. Read-modify-write cycles
// run under an advisory file lock.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore returns a Store backed by the JSON file at path. The lock
// file's parent directory must exist before the first lock acquisition,
// so it is created here.
func NewStore(path string) *Store {
	_ = os.MkdirAll(filepath.Dir(path), 0755)
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// load reads the manifest. A missing file is empty; an unparseable one
// is MANIFEST_CORRUPTED and is never auto-reset — doing so would erase
// the install history future rollbacks and restores depend on.
func (s *Store) load() (*manifestFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &manifestFile{Tools: map[string]instanceEntry{}}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read manifest %s", s.path)
	}

	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, errors.Wrapf(err, errors.ErrManifestCorrupted, "manifest file %s is corrupted", s.path)
	}
	if mf.Tools == nil {
		mf.Tools = map[string]instanceEntry{}
	}
	return &mf, nil
}

func (s *Store) save(mf *manifestFile) error {
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode manifest")
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "failed to write manifest %s", s.path)
	}
	return nil
}

// Get returns the item for a component in an instance, if present.
func (s *Store) Get(instance InstanceKey, component ComponentKey) (ManagedItem, bool, error) {
	if err := s.lock.RLock(); err != nil {
		return ManagedItem{}, false, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire manifest read lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	mf, err := s.load()
	if err != nil {
		return ManagedItem{}, false, err
	}
	entry, ok := mf.Tools[instance.String()]
	if !ok {
		return ManagedItem{}, false, nil
	}
	item, ok := entry.Items[component.String()]
	return item, ok, nil
}

// Set writes or overwrites the item for a component in an instance.
func (s *Store) Set(instance InstanceKey, component ComponentKey, item ManagedItem) error {
	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, errors.ErrLockFailed, "failed to acquire manifest lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	mf, err := s.load()
	if err != nil {
		return err
	}

	entry, ok := mf.Tools[instance.String()]
	if !ok {
		entry = instanceEntry{Items: map[string]ManagedItem{}}
	}
	if entry.Items == nil {
		entry.Items = map[string]ManagedItem{}
	}
	entry.Items[component.String()] = item
	mf.Tools[instance.String()] = entry

	return s.save(mf)
}

// Delete removes the item for a component; empty instance entries are
// dropped from the file.
func (s *Store) Delete(instance InstanceKey, component ComponentKey) error {
	if err := s.lock.Lock(); err != nil {
		return errors.Wrap(err, errors.ErrLockFailed, "failed to acquire manifest lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	mf, err := s.load()
	if err != nil {
		return err
	}

	entry, ok := mf.Tools[instance.String()]
	if !ok {
		return nil
	}
	delete(entry.Items, component.String())
	if len(entry.Items) == 0 {
		delete(mf.Tools, instance.String())
	} else {
		mf.Tools[instance.String()] = entry
	}

	return s.save(mf)
}

// ItemsFor returns all items recorded for an instance.
func (s *Store) ItemsFor(instance InstanceKey) (map[ComponentKey]ManagedItem, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire manifest read lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	mf, err := s.load()
	if err != nil {
		return nil, err
	}

	entry, ok := mf.Tools[instance.String()]
	if !ok {
		return map[ComponentKey]ManagedItem{}, nil
	}

	items := make(map[ComponentKey]ManagedItem, len(entry.Items))
	for raw, item := range entry.Items {
		key, err := ParseComponentKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrManifestCorrupted, "manifest file %s holds a malformed key", s.path)
		}
		items[key] = item
	}
	return items, nil
}

// ItemsOwnedBy returns the items in an instance owned by a plugin.
func (s *Store) ItemsOwnedBy(instance InstanceKey, owner string) (map[ComponentKey]ManagedItem, error) {
	items, err := s.ItemsFor(instance)
	if err != nil {
		return nil, err
	}
	owned := map[ComponentKey]ManagedItem{}
	for key, item := range items {
		if item.Owner == owner {
			owned[key] = item
		}
	}
	return owned, nil
}

// OwnerOf resolves an installed destination path back to its owning
// plugin. This replaces path-pattern guessing with an explicit reverse
// lookup over the manifest.
func (s *Store) OwnerOf(destPath string) (string, bool, error) {
	if err := s.lock.RLock(); err != nil {
		return "", false, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire manifest read lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	mf, err := s.load()
	if err != nil {
		return "", false, err
	}

	for _, entry := range mf.Tools {
		for _, item := range entry.Items {
			if item.Dest == destPath {
				return item.Owner, true, nil
			}
		}
	}
	return "", false, nil
}

// Instances returns the keys of all instances with recorded items.
func (s *Store) Instances() ([]InstanceKey, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, errors.Wrap(err, errors.ErrLockFailed, "failed to acquire manifest read lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	mf, err := s.load()
	if err != nil {
		return nil, err
	}

	keys := make([]InstanceKey, 0, len(mf.Tools))
	for raw := range mf.Tools {
		key, err := ParseInstanceKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrManifestCorrupted, "manifest file %s holds a malformed key", s.path)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
