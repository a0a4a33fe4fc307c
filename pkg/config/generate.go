package config

import (
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/agentsync/pkg/errors"
)

// GenerateStarter renders a commented starter agentsync.toml with one
// example declaration and one example instance.
func GenerateStarter() (string, error) {
	enabled := true
	starter := Config{
		BackupRetention: 5,
		Declarations: []Declaration{
			{
				Name:     "settings",
				Source:   "claude/settings.json",
				Target:   "settings.json",
				Tools:    []string{"claude"},
				Pullback: true,
			},
		},
		Instances: []InstanceDef{
			{
				Tool:         "claude",
				Instance:     "default",
				ConfigDir:    "~/.claude",
				LinkStrategy: "symlink",
				Enabled:      &enabled,
			},
		},
	}

	out, err := gotoml.Marshal(starter)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to marshal starter config")
	}

	header := "# agentsync configuration.\n" +
		"# Declarations keep source artifacts synced into tool instances;\n" +
		"# instances describe where each tool keeps its config.\n\n"
	return header + string(out), nil
}
