package installer

import (
	"fmt"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/arthur-debert/agentsync/pkg/logging"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/plugin"
)

// ToggleComponent disables or re-enables a single component across the
// given instances. Disabling removes the installed destination and
// restores whatever the install displaced; enabling reinstalls it.
// Either direction is idempotent: toggling to the current state only
// touches the persisted disabled list.
func (ins *Installer) ToggleComponent(p *plugin.Plugin, key manifest.ComponentKey, enable bool, instances []ToolInstance) (Report, error) {
	logger := logging.GetLogger("installer")

	component, ok := p.Component(key)
	if !ok {
		return Report{}, errors.Newf(errors.ErrComponentNotFound,
			"plugin %s has no component %s", p.Meta.Name, key)
	}

	list := plugin.NewDisabledList(ins.pluginStateDir(p.Meta.Name))
	report := Report{PerInstance: map[manifest.InstanceKey]InstanceResult{}}

	if enable {
		// Clear the flag first so a crash mid-install leaves the
		// component enabled and a re-run completes it.
		if err := list.Remove(key); err != nil {
			return Report{}, err
		}
	}

	for _, inst := range instances {
		if !inst.Enabled {
			report.PerInstance[inst.Key] = InstanceResult{Success: true, Skipped: 1}
			continue
		}

		if enable {
			report.PerInstance[inst.Key] = ins.enableOn(inst, p.Meta.Name, component)
		} else {
			report.PerInstance[inst.Key] = ins.disableOn(inst, key)
		}
	}

	if !enable {
		if err := list.Add(key); err != nil {
			return report, err
		}
	}

	logger.Info().
		Str("plugin", p.Meta.Name).
		Str("component", key.String()).
		Bool("enable", enable).
		Msg("Toggled component")
	return report, nil
}

func (ins *Installer) enableOn(inst ToolInstance, owner string, c plugin.Component) InstanceResult {
	if _, installed, err := ins.manifest.Get(inst.Key, c.Key()); err != nil {
		return InstanceResult{Errors: []string{err.Error()}}
	} else if installed {
		return InstanceResult{Success: true, Skipped: 1}
	}

	if _, err := ins.installItem(owner, inst, c); err != nil {
		return InstanceResult{Errors: []string{err.Error()}}
	}
	return InstanceResult{Success: true, Installed: 1}
}

func (ins *Installer) disableOn(inst ToolInstance, key manifest.ComponentKey) InstanceResult {
	item, installed, err := ins.manifest.Get(inst.Key, key)
	if err != nil {
		return InstanceResult{Errors: []string{err.Error()}}
	}
	if !installed {
		return InstanceResult{Success: true, Skipped: 1}
	}

	result := InstanceResult{Success: true}
	if err := fsutil.RemovePath(item.Dest); err != nil {
		result.Success = false
		result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", item.Dest, err))
		return result
	}
	if item.Backup != "" {
		if err := ins.backups.Restore(item.Backup, item.Dest); err != nil {
			result.Success = false
			result.Errors = append(result.Errors, fmt.Sprintf("restore %s: %v", item.Backup, err))
		}
	}

	if item.Previous != nil {
		err = ins.manifest.Set(inst.Key, key, *item.Previous)
	} else {
		err = ins.manifest.Delete(inst.Key, key)
	}
	if err != nil {
		result.Success = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Removed = 1
	return result
}
