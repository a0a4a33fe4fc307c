// Package installer links or copies plugin components into tool
// instances, tracked through the manifest. A multi-item install is
// transactional: if any item fails, everything applied so far is rolled
// back in reverse order, leaving the filesystem and the manifest exactly
// as they were. Uninstall runs the other way: best-effort, collecting
// errors, because the goal there is maximal cleanup rather than
// atomicity.
package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/arthur-debert/agentsync/pkg/logging"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/plugin"
)

// LinkStrategy is a per-instance capability: whether the tool tolerates
// symlinked components or needs real files in its config directory.
type LinkStrategy string

const (
	// LinkSymlink points the destination at the plugin source.
	LinkSymlink LinkStrategy = "symlink"
	// LinkCopy materializes a backed-up copy at the destination.
	LinkCopy LinkStrategy = "copy"
)

// ToolInstance is one configured installation of a target tool.
type ToolInstance struct {
	Key          manifest.InstanceKey
	ConfigDir    string
	Enabled      bool
	LinkStrategy LinkStrategy
}

// InstanceResult reports an install or uninstall against one instance.
type InstanceResult struct {
	Success   bool
	Installed int
	Removed   int
	Skipped   int
	Errors    []string
}

// Report maps instances to their results.
type Report struct {
	PerInstance map[manifest.InstanceKey]InstanceResult
}

// Success is true when every touched instance succeeded.
func (r Report) Success() bool {
	for _, res := range r.PerInstance {
		if !res.Success {
			return false
		}
	}
	return true
}

// Installer wires the manifest, the backup manager and per-plugin state
// together. All state is threaded explicitly; there are no
// package-level caches, so independent installers never share hidden
// state.
type Installer struct {
	manifest       *manifest.Store
	backups        *backup.Manager
	pluginStateDir func(pluginName string) string
}

// New creates an Installer. pluginStateDir maps a plugin name to the
// directory holding its disabled-components list.
func New(m *manifest.Store, b *backup.Manager, pluginStateDir func(string) string) *Installer {
	return &Installer{manifest: m, backups: b, pluginStateDir: pluginStateDir}
}

// DestPath computes where a component lands inside an instance's config
// directory: skills/<name>/ for skills, commands/<name>.md and
// agents/<name>.md for the file kinds.
func DestPath(inst ToolInstance, c plugin.Component) string {
	if c.IsDir {
		return filepath.Join(inst.ConfigDir, string(c.Kind)+"s", filepath.FromSlash(c.Name))
	}
	return filepath.Join(inst.ConfigDir, string(c.Kind)+"s", filepath.FromSlash(c.Name)+".md")
}

// InstallPlugin installs every enabled component of a plugin into every
// enabled instance. Each instance is its own transaction: a failure
// rolls back that instance fully and is reported, other instances are
// still attempted.
func (ins *Installer) InstallPlugin(p *plugin.Plugin, instances []ToolInstance) Report {
	logger := logging.GetLogger("installer")
	report := Report{PerInstance: map[manifest.InstanceKey]InstanceResult{}}

	disabled, err := plugin.NewDisabledList(ins.pluginStateDir(p.Meta.Name)).Load()
	if err != nil {
		// Without the disabled list nothing can be installed safely.
		for _, inst := range instances {
			report.PerInstance[inst.Key] = InstanceResult{Errors: []string{err.Error()}}
		}
		return report
	}

	for _, inst := range instances {
		if !inst.Enabled {
			report.PerInstance[inst.Key] = InstanceResult{Success: true, Skipped: len(p.Components)}
			continue
		}

		result := ins.installToInstance(p, inst, disabled)
		report.PerInstance[inst.Key] = result

		logger.Info().
			Str("plugin", p.Meta.Name).
			Str("instance", inst.Key.String()).
			Int("installed", result.Installed).
			Int("skipped", result.Skipped).
			Bool("success", result.Success).
			Msg("Installed plugin to instance")
	}

	return report
}

// appliedItem is the rollback record for one installed component.
type appliedItem struct {
	component manifest.ComponentKey
	dest      string
	backup    string
	previous  *manifest.ManagedItem
	hadEntry  bool
}

func (ins *Installer) installToInstance(p *plugin.Plugin, inst ToolInstance, disabled map[manifest.ComponentKey]bool) InstanceResult {
	result := InstanceResult{}
	var applied []appliedItem

	fail := func(err error) InstanceResult {
		ins.rollback(inst, applied)
		result.Success = false
		result.Installed = 0
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	for _, c := range p.Components {
		key := c.Key()
		if disabled[key] {
			// A disabled-by-config skip is not a failure.
			result.Skipped++
			continue
		}

		item, err := ins.installItem(p.Meta.Name, inst, c)
		if err != nil {
			return fail(errors.Wrapf(err, errors.ErrInstallPartial,
				"installing %s to %s failed; rolled back %d applied items", key, inst.Key, len(applied)))
		}

		applied = append(applied, item)
		result.Installed++
	}

	result.Success = true
	return result
}

// installItem links or copies one component, returning the rollback
// record. Order matters: backup first, then materialize, then manifest.
func (ins *Installer) installItem(owner string, inst ToolInstance, c plugin.Component) (appliedItem, error) {
	key := c.Key()
	dest := DestPath(inst, c)

	prev, hadEntry, err := ins.manifest.Get(inst.Key, key)
	if err != nil {
		return appliedItem{}, err
	}

	backupPath, err := ins.backups.Create(dest, backup.Owner{Name: owner, Kind: string(c.Kind), Item: c.Name})
	if err != nil {
		return appliedItem{}, err
	}

	record := appliedItem{component: key, dest: dest, backup: backupPath}
	if hadEntry {
		record.hadEntry = true
		record.previous = &prev
	}

	undo := func() {
		_ = fsutil.RemovePath(dest)
		if backupPath != "" {
			_ = ins.backups.Restore(backupPath, dest)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		undo()
		return appliedItem{}, errors.Wrapf(err, errors.ErrLinkOrCopyFailed, "failed to create parent for %s", dest)
	}

	if err := materialize(inst.LinkStrategy, c, dest); err != nil {
		undo()
		return appliedItem{}, err
	}

	item := manifest.ManagedItem{
		Kind:     c.Kind,
		Name:     c.Name,
		Source:   c.Path,
		Dest:     dest,
		Backup:   backupPath,
		Owner:    owner,
		Previous: record.previous,
	}
	if err := ins.manifest.Set(inst.Key, key, item); err != nil {
		undo()
		return appliedItem{}, err
	}

	return record, nil
}

// materialize creates the destination per the instance capability.
func materialize(strategy LinkStrategy, c plugin.Component, dest string) error {
	switch strategy {
	case LinkSymlink:
		if err := os.Symlink(c.Path, dest); err != nil {
			return errors.Wrapf(err, errors.ErrLinkOrCopyFailed, "failed to symlink %s", dest)
		}
	default:
		var err error
		if c.IsDir {
			err = fsutil.CopyTree(c.Path, dest)
		} else {
			err = fsutil.CopyFile(c.Path, dest)
		}
		if err != nil {
			return errors.Wrapf(err, errors.ErrLinkOrCopyFailed, "failed to copy %s", dest)
		}
	}
	return nil
}

// rollback walks the applied list in reverse, deleting each created
// destination, restoring its backup, and putting the manifest entry
// back to its previous value. After it runs, filesystem and manifest
// match the pre-install state.
func (ins *Installer) rollback(inst ToolInstance, applied []appliedItem) {
	logger := logging.GetLogger("installer")

	for i := len(applied) - 1; i >= 0; i-- {
		item := applied[i]

		if err := fsutil.RemovePath(item.dest); err != nil {
			logger.Error().Err(err).Str("dest", item.dest).Msg("Rollback failed to remove destination")
		}
		if item.backup != "" {
			if err := ins.backups.Restore(item.backup, item.dest); err != nil {
				logger.Error().Err(err).Str("backup", item.backup).Msg("Rollback failed to restore backup")
			}
		}

		var err error
		if item.hadEntry {
			err = ins.manifest.Set(inst.Key, item.component, *item.previous)
		} else {
			err = ins.manifest.Delete(inst.Key, item.component)
		}
		if err != nil {
			logger.Error().Err(err).Str("component", item.component.String()).Msg("Rollback failed to restore manifest entry")
		}
	}
}

// UninstallPlugin removes every manifest entry owned by the plugin from
// each instance, restoring backups and previous entries. Cleanup is
// best-effort: individual failures are collected per instance and the
// scan continues, since a half-removed plugin is better than an
// untouched one when the user asked for removal.
func (ins *Installer) UninstallPlugin(name string, instances []ToolInstance) Report {
	logger := logging.GetLogger("installer")
	report := Report{PerInstance: map[manifest.InstanceKey]InstanceResult{}}

	for _, inst := range instances {
		result := InstanceResult{Success: true}

		owned, err := ins.manifest.ItemsOwnedBy(inst.Key, name)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors, err.Error())
			report.PerInstance[inst.Key] = result
			continue
		}

		// Deterministic order, and each distinct destination is removed
		// exactly once even when duplicate manifest keys reference it.
		keys := make([]manifest.ComponentKey, 0, len(owned))
		for key := range owned {
			keys = append(keys, key)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

		removedDests := map[string]bool{}
		for _, key := range keys {
			item := owned[key]

			if !removedDests[item.Dest] {
				removedDests[item.Dest] = true
				if err := fsutil.RemovePath(item.Dest); err != nil {
					result.Success = false
					result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", item.Dest, err))
					continue
				}
				if item.Backup != "" {
					if err := ins.backups.Restore(item.Backup, item.Dest); err != nil {
						result.Success = false
						result.Errors = append(result.Errors, fmt.Sprintf("restore %s: %v", item.Backup, err))
					}
				}
			}

			var err error
			if item.Previous != nil {
				err = ins.manifest.Set(inst.Key, key, *item.Previous)
			} else {
				err = ins.manifest.Delete(inst.Key, key)
			}
			if err != nil {
				result.Success = false
				result.Errors = append(result.Errors, fmt.Sprintf("manifest %s: %v", key, err))
				continue
			}
			result.Removed++
		}

		report.PerInstance[inst.Key] = result
		logger.Info().
			Str("plugin", name).
			Str("instance", inst.Key.String()).
			Int("removed", result.Removed).
			Bool("success", result.Success).
			Msg("Uninstalled plugin from instance")
	}

	return report
}
