package plugin

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"gopkg.in/yaml.v3"
)

// DisabledFileName holds a plugin's disabled components, one manifest
// component key per entry.
const DisabledFileName = "disabled.yaml"

// DisabledList persists which of a plugin's components the user has
// toggled off, so re-enables are idempotent across runs.
type DisabledList struct {
	path string
}

// NewDisabledList returns the list stored in the given plugin state
// directory.
func NewDisabledList(pluginStateDir string) *DisabledList {
	return &DisabledList{path: filepath.Join(pluginStateDir, DisabledFileName)}
}

type disabledFile struct {
	Disabled []string `yaml:"disabled"`
}

// Load returns the disabled component keys. A missing file means none.
func (l *DisabledList) Load() (map[manifest.ComponentKey]bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[manifest.ComponentKey]bool{}, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", l.path)
	}

	var df disabledFile
	if err := yaml.Unmarshal(data, &df); err != nil {
		return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse %s", l.path)
	}

	disabled := make(map[manifest.ComponentKey]bool, len(df.Disabled))
	for _, raw := range df.Disabled {
		key, err := manifest.ParseComponentKey(raw)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "%s holds a malformed key", l.path)
		}
		disabled[key] = true
	}
	return disabled, nil
}

func (l *DisabledList) save(disabled map[manifest.ComponentKey]bool) error {
	keys := make([]string, 0, len(disabled))
	for key, on := range disabled {
		if on {
			keys = append(keys, key.String())
		}
	}
	sort.Strings(keys)

	data, err := yaml.Marshal(disabledFile{Disabled: keys})
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode disabled list")
	}
	return fsutil.WriteFileAtomic(l.path, data, 0644)
}

// Add marks a component disabled. Adding an already-disabled component
// is a no-op.
func (l *DisabledList) Add(key manifest.ComponentKey) error {
	disabled, err := l.Load()
	if err != nil {
		return err
	}
	if disabled[key] {
		return nil
	}
	disabled[key] = true
	return l.save(disabled)
}

// Remove clears a component's disabled mark. Removing an absent entry
// is a no-op.
func (l *DisabledList) Remove(key manifest.ComponentKey) error {
	disabled, err := l.Load()
	if err != nil {
		return err
	}
	if !disabled[key] {
		return nil
	}
	delete(disabled, key)
	return l.save(disabled)
}
