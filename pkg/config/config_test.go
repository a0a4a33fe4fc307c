// Test Type: Unit Test
// Description: Tests for the config package - layered loading,
// validation, shape detection and step building

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/config"
	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.BackupRetention)
	assert.False(t, cfg.Pullback)
	assert.Empty(t, cfg.Declarations)
	assert.Empty(t, cfg.Instances)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
backup_retention = 3

[[declaration]]
name = "settings"
source = "claude/settings.json"
target = "settings.json"
pullback = true

[[instance]]
tool = "claude"
instance = "default"
config_dir = "/tmp/claude"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.BackupRetention)
	require.Len(t, cfg.Declarations, 1)
	assert.True(t, cfg.Declarations[0].Pullback)
	require.Len(t, cfg.Instances, 1)
	assert.True(t, cfg.Instances[0].IsEnabled(), "instances default to enabled")
}

func TestLoad_DeclarationOverrides(t *testing.T) {
	path := writeConfig(t, `
[[declaration]]
name = "rules"
source = "rules.md"
target = "CLAUDE.md"

[declaration.overrides]
"cursor" = ".cursorrules"
"claude:work" = "docs/CLAUDE.md"

[[instance]]
tool = "claude"
instance = "default"
config_dir = "/tmp/claude"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Declarations, 1)

	decl := cfg.Declarations[0]
	assert.Equal(t, ".cursorrules", decl.Overrides["cursor"])
	assert.Equal(t, "docs/CLAUDE.md", decl.Overrides["claude:work"])

	work := config.InstanceDef{Tool: "claude", Instance: "work"}
	assert.Equal(t, "docs/CLAUDE.md", decl.TargetFor(work))
	cursor := config.InstanceDef{Tool: "cursor", Instance: "default"}
	assert.Equal(t, ".cursorrules", decl.TargetFor(cursor))
	plain := config.InstanceDef{Tool: "claude", Instance: "default"}
	assert.Equal(t, "CLAUDE.md", decl.TargetFor(plain))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("AGENTSYNC_BACKUP_RETENTION", "9")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.BackupRetention)
}

func TestLoad_ParseError(t *testing.T) {
	path := writeConfig(t, "backup_retention = [not toml")

	_, err := config.Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConfigParse))
}

func TestValidate(t *testing.T) {
	enabled := true
	base := func() *config.Config {
		return &config.Config{
			BackupRetention: 5,
			Declarations: []config.Declaration{
				{Name: "a", Source: "src/a", Target: "a"},
			},
			Instances: []config.InstanceDef{
				{Tool: "claude", Instance: "default", ConfigDir: "/tmp/c", Enabled: &enabled},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *config.Config) {}},
		{
			name:    "duplicate declaration",
			mutate:  func(c *config.Config) { c.Declarations = append(c.Declarations, c.Declarations[0]) },
			wantErr: "duplicate declaration",
		},
		{
			name:    "missing source",
			mutate:  func(c *config.Config) { c.Declarations[0].Source = "" },
			wantErr: "missing source",
		},
		{
			name:    "missing target",
			mutate:  func(c *config.Config) { c.Declarations[0].Target = "" },
			wantErr: "missing target",
		},
		{
			name:    "duplicate instance",
			mutate:  func(c *config.Config) { c.Instances = append(c.Instances, c.Instances[0]) },
			wantErr: "duplicate instance",
		},
		{
			name:    "bad link strategy",
			mutate:  func(c *config.Config) { c.Instances[0].LinkStrategy = "hardlink" },
			wantErr: "link_strategy",
		},
		{
			name:    "zero retention",
			mutate:  func(c *config.Config) { c.BackupRetention = 0 },
			wantErr: "backup_retention",
		},
		{
			name:    "empty override target",
			mutate:  func(c *config.Config) { c.Declarations[0].Overrides = map[string]string{"cursor": ""} },
			wantErr: "override",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsErrorCode(err, errors.ErrConfigValid))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDetectShape(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.md"), []byte("x"), 0644))

	tests := []struct {
		path string
		want config.Shape
	}{
		{filepath.Join(root, "file.md"), config.ShapeFile},
		{filepath.Join(root, "dir"), config.ShapeDir},
		{filepath.Join(root, "missing.md"), config.ShapeFile},
		{filepath.Join(root, "commands", "*.md"), config.ShapeGlob},
		{filepath.Join(root, "**", "*.md"), config.ShapeGlob},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, config.DetectShape(tt.path), tt.path)
	}
}

func TestBuildSteps(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "skills", "review"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "settings.json"), []byte("{}"), 0644))

	enabled := true
	disabled := false
	cfg := &config.Config{
		BackupRetention: 5,
		Declarations: []config.Declaration{
			{Name: "settings", Source: "settings.json", Target: "settings.json", Pullback: true},
			{Name: "skills", Source: "skills", Target: "skills"},
			{Name: "commands", Source: "commands/*.md", Target: "commands", Tools: []string{"claude"}},
		},
		Instances: []config.InstanceDef{
			{Tool: "claude", Instance: "default", ConfigDir: "/tmp/claude", Enabled: &enabled},
			{Tool: "cursor", Instance: "default", ConfigDir: "/tmp/cursor", Enabled: &enabled},
			{Tool: "claude", Instance: "off", ConfigDir: "/tmp/off", Enabled: &disabled},
		},
	}

	deps := syncmod.Deps{
		Ledger:  ledger.NewStore(filepath.Join(t.TempDir(), "ledger.json")),
		Backups: backup.NewManager(filepath.Join(t.TempDir(), "backups"), 5),
	}
	steps := config.BuildSteps(cfg, root, deps)

	// settings and skills fan out to both enabled instances; commands is
	// scoped to claude only. The disabled instance gets nothing.
	require.Len(t, steps, 5)

	byModule := map[string]int{}
	for _, s := range steps {
		byModule[s.Module.Name()]++
		assert.NotNil(t, s.Params.LedgerKey)
		assert.NotEqual(t, "off", s.Params.LedgerKey.Instance)
	}
	assert.Equal(t, 2, byModule[syncmod.FileCopyName])
	assert.Equal(t, 2, byModule[syncmod.DirSyncName])
	assert.Equal(t, 1, byModule[syncmod.GlobCopyName])

	for _, s := range steps {
		if s.Label == "settings" {
			assert.True(t, s.Params.Pullback)
			assert.Equal(t, filepath.Join(root, "settings.json"), s.Params.SourcePath)
		}
	}
}

func TestBuildSteps_TargetOverrides(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "rules.md"), []byte("# rules\n"), 0644))

	cfg := &config.Config{
		BackupRetention: 5,
		Declarations: []config.Declaration{{
			Name:   "rules",
			Source: "rules.md",
			Target: "CLAUDE.md",
			Overrides: map[string]string{
				"cursor":      ".cursorrules",
				"claude:work": "docs/CLAUDE.md",
			},
		}},
		Instances: []config.InstanceDef{
			{Tool: "claude", Instance: "default", ConfigDir: "/tmp/claude"},
			{Tool: "claude", Instance: "work", ConfigDir: "/tmp/work"},
			{Tool: "cursor", Instance: "default", ConfigDir: "/tmp/cursor"},
		},
	}

	deps := syncmod.Deps{
		Ledger:  ledger.NewStore(filepath.Join(t.TempDir(), "ledger.json")),
		Backups: backup.NewManager(filepath.Join(t.TempDir(), "backups"), 5),
	}
	steps := config.BuildSteps(cfg, root, deps)
	require.Len(t, steps, 3)

	targets := map[string]string{}
	rels := map[string]string{}
	for _, s := range steps {
		key := s.Params.LedgerKey.Tool + ":" + s.Params.LedgerKey.Instance
		targets[key] = s.Params.TargetPath
		rels[key] = s.Params.LedgerKey.TargetRel
	}
	assert.Equal(t, filepath.Join("/tmp/claude", "CLAUDE.md"), targets["claude:default"])
	assert.Equal(t, filepath.Join("/tmp/work", "docs", "CLAUDE.md"), targets["claude:work"])
	assert.Equal(t, filepath.Join("/tmp/cursor", ".cursorrules"), targets["cursor:default"])

	// The ledger key tracks the resolved relative target, so an override
	// is a distinct pair rather than false drift on the default target.
	assert.Equal(t, "docs/CLAUDE.md", rels["claude:work"])
	assert.Equal(t, ".cursorrules", rels["cursor:default"])
}

func TestGenerateStarter(t *testing.T) {
	out, err := config.GenerateStarter()
	require.NoError(t, err)

	assert.Contains(t, out, "backup_retention = 5")
	assert.Contains(t, out, "[[declaration]]")
	assert.Contains(t, out, "[[instance]]")

	// The starter must itself load and validate.
	path := filepath.Join(t.TempDir(), "agentsync.toml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Declarations, 1)
	assert.Len(t, cfg.Instances, 1)
}
