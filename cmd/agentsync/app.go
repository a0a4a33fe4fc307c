package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/config"
	"github.com/arthur-debert/agentsync/pkg/display"
	"github.com/arthur-debert/agentsync/pkg/installer"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/paths"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
)

// app wires the stores and renderer from resolved paths and loaded
// config. Every command builds one and works through it.
type app struct {
	paths     paths.Paths
	cfg       *config.Config
	ledger    *ledger.Store
	manifest  *manifest.Store
	backups   *backup.Manager
	installer *installer.Installer
	render    *display.Renderer
}

func newApp() (*app, error) {
	p, err := paths.New("")
	if err != nil {
		return nil, err
	}
	if p.UsedFallback() {
		fmt.Fprintf(os.Stderr, "warning: no source root configured, using %s\n", p.SourceRoot())
	}

	cfg, err := config.Load(p.ConfigFilePath())
	if err != nil {
		return nil, err
	}
	// Config dirs may be home-relative; resolve them once so step
	// building and the installer see absolute paths.
	for i := range cfg.Instances {
		dir, err := p.NormalizePath(cfg.Instances[i].ConfigDir)
		if err != nil {
			return nil, err
		}
		cfg.Instances[i].ConfigDir = dir
	}

	a := &app{
		paths:    p,
		cfg:      cfg,
		ledger:   ledger.NewStore(p.LedgerPath()),
		manifest: manifest.NewStore(p.ManifestPath()),
		backups:  backup.NewManager(p.BackupsDir(), cfg.BackupRetention),
		render:   display.NewRenderer(os.Stdout),
	}
	a.installer = installer.New(a.manifest, a.backups, p.PluginStateDir)
	return a, nil
}

// acquireLock takes the global advisory lock guarding mutating
// commands. The returned release must run even on error paths.
func (a *app) acquireLock() (func(), error) {
	path := a.paths.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("another agentsync process holds the lock at %s", path)
	}
	return func() { _ = lock.Unlock() }, nil
}

func (a *app) deps() syncmod.Deps {
	return syncmod.Deps{Ledger: a.ledger, Backups: a.backups}
}

// instances converts the configured instance definitions for the
// installer.
func (a *app) instances() []installer.ToolInstance {
	var out []installer.ToolInstance
	for _, def := range a.cfg.Instances {
		strategy := installer.LinkStrategy(def.LinkStrategy)
		if strategy == "" {
			strategy = installer.LinkSymlink
		}
		out = append(out, installer.ToolInstance{
			Key:          manifest.InstanceKey{Tool: def.Tool, Instance: def.Instance},
			ConfigDir:    def.ConfigDir,
			Enabled:      def.IsEnabled(),
			LinkStrategy: strategy,
		})
	}
	return out
}
