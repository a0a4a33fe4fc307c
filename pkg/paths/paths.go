// Package paths provides centralized path handling for agentsync.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/arthur-debert/agentsync/pkg/errors"
)

// Environment variable names
const (
	// EnvSourceRoot is the primary environment variable for the source
	// repository location (declared artifacts and downloaded plugins).
	EnvSourceRoot = "AGENTSYNC_SOURCE_ROOT"

	// EnvDataDir overrides the XDG data directory for agentsync
	EnvDataDir = "AGENTSYNC_DATA_DIR"

	// EnvConfigDir overrides the XDG config directory for agentsync
	EnvConfigDir = "AGENTSYNC_CONFIG_DIR"

	// EnvStateDir overrides the XDG state directory for agentsync
	EnvStateDir = "AGENTSYNC_STATE_DIR"
)

// Internal datastore structure. These names are NOT user-configurable:
// they must stay consistent across installations so that ledgers,
// manifests and backups written by one version are found by the next.
const (
	// AppDirName is the directory name for agentsync-specific files
	AppDirName = "agentsync"

	// ConfigFileName is the name of the main configuration file
	ConfigFileName = "agentsync.toml"

	// LedgerFileName is the persisted drift-state ledger
	LedgerFileName = "ledger.json"

	// ManifestFileName is the persisted install manifest
	ManifestFileName = "manifest.json"

	// LockFileName is the advisory lock guarding read-modify-write of
	// persisted state
	LockFileName = "agentsync.lock"

	// BackupsDirName is the subdirectory for pre-write backups
	BackupsDirName = "backups"

	// PluginStateDirName is the subdirectory for per-plugin state
	// (disabled-components lists)
	PluginStateDirName = "plugins"

	// LogFileName is the name of the log file
	LogFileName = "agentsync.log"
)

// Paths provides centralized path management for agentsync
type Paths interface {
	SourceRoot() string
	UsedFallback() bool
	DataDir() string
	ConfigDir() string
	StateDir() string
	ConfigFilePath() string
	LedgerPath() string
	ManifestPath() string
	LockPath() string
	BackupsDir() string
	PluginStateDir(pluginName string) string
	LogFilePath() string
	NormalizePath(path string) (string, error)
}

type paths struct {
	// sourceRoot is the root directory for declared artifacts
	sourceRoot string

	xdgData   string
	xdgConfig string
	xdgState  string

	// usedFallback indicates if we fell back to cwd (for warning display)
	usedFallback bool
}

// New creates a new Paths instance with the given source root.
// If sourceRoot is empty, it will be determined from environment
// variables, the enclosing git repository, or the working directory.
func New(sourceRoot string) (Paths, error) {
	p := &paths{}

	if sourceRoot == "" {
		root, usedFallback, err := findSourceRoot()
		if err != nil {
			return nil, err
		}
		p.sourceRoot = root
		p.usedFallback = usedFallback
	} else {
		p.sourceRoot = expandHome(sourceRoot)
	}

	absRoot, err := filepath.Abs(p.sourceRoot)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to get absolute path for source root")
	}
	p.sourceRoot = absRoot

	p.setupXDGDirs()

	return p, nil
}

// setupXDGDirs initializes XDG directories, respecting environment overrides
func (p *paths) setupXDGDirs() {
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		p.xdgData = expandHome(dataDir)
	} else {
		p.xdgData = filepath.Join(xdg.DataHome, AppDirName)
	}

	if configDir := os.Getenv(EnvConfigDir); configDir != "" {
		p.xdgConfig = expandHome(configDir)
	} else {
		p.xdgConfig = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	// XDG state home needs a manual check, the library predates it
	if stateDir := os.Getenv(EnvStateDir); stateDir != "" {
		p.xdgState = expandHome(stateDir)
	} else if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
		p.xdgState = filepath.Join(stateHome, AppDirName)
	} else {
		homeDir, _ := os.UserHomeDir()
		p.xdgState = filepath.Join(homeDir, ".local", "state", AppDirName)
	}
}

// findSourceRoot determines the source root using the following priority:
// 1. AGENTSYNC_SOURCE_ROOT environment variable
// 2. Git repository root (found via 'git rev-parse --show-toplevel')
// 3. Current working directory (fallback, flagged for warning display)
func findSourceRoot() (string, bool, error) {
	if root := os.Getenv(EnvSourceRoot); root != "" {
		return expandHome(root), false, nil
	}

	gitRoot, err := findGitRoot()
	if err == nil && gitRoot != "" {
		return gitRoot, false, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", false, errors.Wrapf(err, errors.ErrFileAccess, "failed to get current directory")
	}

	return cwd, true, nil
}

// findGitRoot attempts to find the root of the current git repository
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	gitRoot := strings.TrimSpace(string(output))
	if gitRoot == "" {
		return "", errors.New(errors.ErrNotFound, "git root is empty")
	}

	return gitRoot, nil
}

// expandHome expands a leading ~/ to the user's home directory
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func (p *paths) SourceRoot() string { return p.sourceRoot }
func (p *paths) UsedFallback() bool { return p.usedFallback }
func (p *paths) DataDir() string    { return p.xdgData }
func (p *paths) ConfigDir() string  { return p.xdgConfig }
func (p *paths) StateDir() string   { return p.xdgState }

func (p *paths) ConfigFilePath() string {
	return filepath.Join(p.xdgConfig, ConfigFileName)
}

func (p *paths) LedgerPath() string {
	return filepath.Join(p.xdgData, LedgerFileName)
}

func (p *paths) ManifestPath() string {
	return filepath.Join(p.xdgData, ManifestFileName)
}

func (p *paths) LockPath() string {
	return filepath.Join(p.xdgData, LockFileName)
}

func (p *paths) BackupsDir() string {
	return filepath.Join(p.xdgData, BackupsDirName)
}

func (p *paths) PluginStateDir(pluginName string) string {
	return filepath.Join(p.xdgData, PluginStateDirName, pluginName)
}

func (p *paths) LogFilePath() string {
	return filepath.Join(p.xdgState, LogFileName)
}

// NormalizePath expands ~ and makes the path absolute. Relative paths
// are resolved against the source root, not the working directory.
func (p *paths) NormalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrInvalidInput, "path is empty")
	}

	expanded := expandHome(path)
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}

	return filepath.Join(p.sourceRoot, expanded), nil
}
