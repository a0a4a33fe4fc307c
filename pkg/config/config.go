// Package config loads and validates the agentsync.toml declaration
// file. Configuration layers in order: embedded defaults, then the user
// config file, then AGENTSYNC_* environment overrides. The loaded
// Config is plain data; translating declarations into runnable sync
// steps lives in steps.go.
package config

import (
	_ "embed"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/logging"
)

//go:embed embedded/defaults.toml
var defaultConfig []byte

// Declaration is one artifact to keep in sync: a file, a directory, or
// a glob pattern, relative to the source root.
type Declaration struct {
	Name   string `koanf:"name" toml:"name"`
	Source string `koanf:"source" toml:"source"`
	Target string `koanf:"target" toml:"target"`
	// Tools restricts the declaration to the named tools; empty means
	// every configured instance.
	Tools []string `koanf:"tools" toml:"tools"`
	// Overrides replaces Target for specific instances. Keys are either
	// "tool:instance" or "tool"; the instance-qualified form wins.
	Overrides map[string]string `koanf:"overrides" toml:"overrides,omitempty"`
	// Pullback enables reverse sync for this declaration.
	Pullback bool `koanf:"pullback" toml:"pullback"`
}

// TargetFor resolves the target path for an instance, honoring overrides.
func (d Declaration) TargetFor(inst InstanceDef) string {
	if t, ok := d.Overrides[inst.Tool+":"+inst.Instance]; ok {
		return t
	}
	if t, ok := d.Overrides[inst.Tool]; ok {
		return t
	}
	return d.Target
}

// InstanceDef is one configured tool installation.
type InstanceDef struct {
	Tool         string `koanf:"tool" toml:"tool"`
	Instance     string `koanf:"instance" toml:"instance"`
	ConfigDir    string `koanf:"config_dir" toml:"config_dir"`
	LinkStrategy string `koanf:"link_strategy" toml:"link_strategy"`
	// Enabled defaults to true when omitted; use IsEnabled.
	Enabled *bool `koanf:"enabled" toml:"enabled"`
}

// IsEnabled reports whether the instance participates in sync and
// install operations. Instances are enabled unless explicitly disabled.
func (d InstanceDef) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Config is the fully layered configuration.
type Config struct {
	BackupRetention int           `koanf:"backup_retention" toml:"backup_retention"`
	Pullback        bool          `koanf:"pullback" toml:"pullback"`
	Declarations    []Declaration `koanf:"declaration" toml:"declaration"`
	Instances       []InstanceDef `koanf:"instance" toml:"instance"`
}

// Load reads configuration from configPath layered over the embedded
// defaults. A missing file is not an error; the defaults stand alone.
func Load(configPath string) (*Config, error) {
	logger := logging.GetLogger("config")

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultConfig), toml.Parser()); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load default config")
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to parse %s", configPath)
		}
		logger.Debug().Str("path", configPath).Msg("Loaded config file")
	} else {
		logger.Debug().Str("path", configPath).Msg("No config file, using defaults")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal config")
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTSYNC_BACKUP_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BackupRetention = n
		}
	}
}

// Validate checks structural constraints: unique non-empty declaration
// names, source and target set, known link strategies, unique instance
// keys.
func (c *Config) Validate() error {
	if c.BackupRetention < 1 {
		return errors.Newf(errors.ErrConfigValid, "backup_retention must be at least 1, got %d", c.BackupRetention)
	}

	names := map[string]bool{}
	for _, d := range c.Declarations {
		if d.Name == "" {
			return errors.New(errors.ErrConfigValid, "declaration missing name")
		}
		if names[d.Name] {
			return errors.Newf(errors.ErrConfigValid, "duplicate declaration name %q", d.Name)
		}
		names[d.Name] = true
		if d.Source == "" {
			return errors.Newf(errors.ErrConfigValid, "declaration %q missing source", d.Name)
		}
		if d.Target == "" {
			return errors.Newf(errors.ErrConfigValid, "declaration %q missing target", d.Name)
		}
		for key, target := range d.Overrides {
			if key == "" || target == "" {
				return errors.Newf(errors.ErrConfigValid, "declaration %q has an empty override key or target", d.Name)
			}
		}
	}

	keys := map[string]bool{}
	for _, inst := range c.Instances {
		if inst.Tool == "" || inst.Instance == "" {
			return errors.New(errors.ErrConfigValid, "instance definition missing tool or instance name")
		}
		key := inst.Tool + ":" + inst.Instance
		if keys[key] {
			return errors.Newf(errors.ErrConfigValid, "duplicate instance %s", key)
		}
		keys[key] = true
		if inst.ConfigDir == "" {
			return errors.Newf(errors.ErrConfigValid, "instance %s missing config_dir", key)
		}
		switch inst.LinkStrategy {
		case "", "symlink", "copy":
		default:
			return errors.Newf(errors.ErrConfigValid, "instance %s has unknown link_strategy %q", key, inst.LinkStrategy)
		}
	}

	return nil
}

// EnabledInstances returns the instances eligible for sync and install
// operations.
func (c *Config) EnabledInstances() []InstanceDef {
	var out []InstanceDef
	for _, inst := range c.Instances {
		if inst.IsEnabled() {
			out = append(out, inst)
		}
	}
	return out
}
