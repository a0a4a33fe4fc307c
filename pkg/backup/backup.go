// Package backup implements the snapshot-before-write subsystem. Every
// destructive write in the engine renames the existing target aside into
// a backup slot first, so any overwrite or delete is recoverable. Slots
// are either owner-scoped (bounded rotation per owner+item) or loose
// (<target>.bak) for paths with no owner context.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/logging"
)

// DefaultRetention is the number of backups kept per owner slot when no
// explicit retention is configured.
const DefaultRetention = 5

// Owner identifies who is responsible for an installed item. It scopes
// backup slots so that uninstalling or re-syncing one owner never
// disturbs another owner's history.
type Owner struct {
	// Name is the plugin or declared-entry name.
	Name string
	// Kind is the component kind (skill, command, agent) or "file" for
	// declared file entries.
	Kind string
	// Item is the component or target name within the owner.
	Item string
}

func (o Owner) String() string {
	return fmt.Sprintf("%s/%s/%s", o.Name, o.Kind, o.Item)
}

// Manager creates and prunes backups under a single base directory.
type Manager struct {
	baseDir   string
	retention int
}

// NewManager returns a Manager rooted at baseDir keeping retention
// backups per owner slot. A non-positive retention selects
// DefaultRetention.
func NewManager(baseDir string, retention int) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Manager{baseDir: baseDir, retention: retention}
}

// Retention returns the configured rotation bound.
func (m *Manager) Retention() int { return m.retention }

// slotDir returns the directory holding all backups for one owner+item.
func (m *Manager) slotDir(owner Owner) string {
	return filepath.Join(m.baseDir, owner.Name, owner.Kind, owner.Item)
}

// Create backs up targetPath into the owner's slot if it exists,
// returning the backup path. It returns ("", nil) when there was nothing
// to back up. The target is renamed aside, not copied, so the operation
// is atomic and the target no longer exists afterwards.
func (m *Manager) Create(targetPath string, owner Owner) (string, error) {
	logger := logging.GetLogger("backup")

	if _, err := os.Lstat(targetPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, errors.ErrBackupFailed, "failed to stat backup target %s", targetPath)
	}

	dir := m.slotDir(owner)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrBackupFailed, "failed to create backup slot for %s", owner)
	}

	slot := filepath.Join(dir, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(targetPath, slot); err != nil {
		return "", errors.Wrapf(err, errors.ErrBackupFailed, "failed to move %s aside", targetPath)
	}

	logger.Debug().
		Str("target", targetPath).
		Str("backup", slot).
		Str("owner", owner.String()).
		Msg("Created backup")

	if err := m.Prune(owner); err != nil {
		// The backup itself succeeded; rotation is best-effort.
		logger.Warn().Err(err).Str("owner", owner.String()).Msg("Failed to prune backups")
	}

	return slot, nil
}

// CreateLoose backs up targetPath next to itself as <target>.bak,
// <target>.bak.1, ... using the first free suffix. Used for paths that
// have no owner context.
func (m *Manager) CreateLoose(targetPath string) (string, error) {
	if _, err := os.Lstat(targetPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, errors.ErrBackupFailed, "failed to stat backup target %s", targetPath)
	}

	slot := targetPath + ".bak"
	for i := 1; ; i++ {
		if _, err := os.Lstat(slot); os.IsNotExist(err) {
			break
		}
		slot = fmt.Sprintf("%s.bak.%d", targetPath, i)
	}

	if err := os.Rename(targetPath, slot); err != nil {
		return "", errors.Wrapf(err, errors.ErrBackupFailed, "failed to move %s aside", targetPath)
	}

	return slot, nil
}

// Restore moves a backup back to its original location. The current
// occupant of targetPath, if any, is removed first.
func (m *Manager) Restore(backupPath, targetPath string) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrBackupFailed, "failed to create parent for restore of %s", targetPath)
	}

	if info, err := os.Lstat(targetPath); err == nil {
		var rmErr error
		if info.IsDir() {
			rmErr = os.RemoveAll(targetPath)
		} else {
			rmErr = os.Remove(targetPath)
		}
		if rmErr != nil {
			return errors.Wrapf(rmErr, errors.ErrBackupFailed, "failed to clear %s before restore", targetPath)
		}
	}

	if err := os.Rename(backupPath, targetPath); err != nil {
		return errors.Wrapf(err, errors.ErrBackupFailed, "failed to restore backup %s", backupPath)
	}

	return nil
}

// List returns the backup paths for an owner, newest first by
// modification time.
func (m *Manager) List(owner Owner) ([]string, error) {
	dir := m.slotDir(owner)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to list backups for %s", owner)
	}

	type timed struct {
		path string
		mod  time.Time
	}
	backups := make([]timed, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, timed{path: filepath.Join(dir, entry.Name()), mod: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].mod.Equal(backups[j].mod) {
			// Slot names are timestamped, so the name breaks ties.
			return backups[i].path > backups[j].path
		}
		return backups[i].mod.After(backups[j].mod)
	})

	paths := make([]string, len(backups))
	for i, b := range backups {
		paths[i] = b.path
	}
	return paths, nil
}

// Owners enumerates every owner that has at least one backup slot,
// walking the <name>/<kind>/<item> layout under the base directory.
func (m *Manager) Owners() ([]Owner, error) {
	var owners []Owner

	names, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrFileAccess, "failed to list backup owners")
	}
	for _, name := range names {
		if !name.IsDir() {
			continue
		}
		kinds, err := os.ReadDir(filepath.Join(m.baseDir, name.Name()))
		if err != nil {
			continue
		}
		for _, kind := range kinds {
			if !kind.IsDir() {
				continue
			}
			items, err := os.ReadDir(filepath.Join(m.baseDir, name.Name(), kind.Name()))
			if err != nil {
				continue
			}
			for _, item := range items {
				if !item.IsDir() {
					continue
				}
				owners = append(owners, Owner{Name: name.Name(), Kind: kind.Name(), Item: item.Name()})
			}
		}
	}
	return owners, nil
}

// PruneAll applies the retention bound to every owner, returning how
// many slots were removed.
func (m *Manager) PruneAll() (int, error) {
	owners, err := m.Owners()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, owner := range owners {
		before, err := m.List(owner)
		if err != nil {
			return removed, err
		}
		if err := m.Prune(owner); err != nil {
			return removed, err
		}
		if extra := len(before) - m.retention; extra > 0 {
			removed += extra
		}
	}
	return removed, nil
}

// Prune deletes an owner's backups beyond the retention bound, oldest
// first.
func (m *Manager) Prune(owner Owner) error {
	backups, err := m.List(owner)
	if err != nil {
		return err
	}
	if len(backups) <= m.retention {
		return nil
	}

	logger := logging.GetLogger("backup")
	for _, path := range backups[m.retention:] {
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "failed to prune backup %s", path)
		}
		logger.Debug().Str("backup", path).Msg("Pruned backup")
	}

	return nil
}
