// Package plugin discovers plugin directories and their components. A
// plugin is a directory carrying a plugin.yaml plus any of the component
// subtrees: skills/ (one directory per skill), commands/ and agents/
// (markdown files, possibly nested).
package plugin

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/manifest"
	"gopkg.in/yaml.v3"
)

// MetadataFileName is the required plugin descriptor.
const MetadataFileName = "plugin.yaml"

// Metadata is the parsed plugin.yaml.
type Metadata struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// Component is one installable unit of a plugin.
type Component struct {
	Kind manifest.Kind
	Name string
	// Path is the absolute source path: a directory for skills, a file
	// for commands and agents.
	Path string
	// IsDir mirrors the component shape so installers can pick the
	// right copy strategy without re-statting.
	IsDir bool
}

// Key returns the manifest key for this component.
func (c Component) Key() manifest.ComponentKey {
	return manifest.ComponentKey{Kind: c.Kind, Name: c.Name}
}

// Plugin is a loaded plugin directory.
type Plugin struct {
	Dir        string
	Meta       Metadata
	Components []Component
}

// Load reads a plugin directory: metadata plus component discovery.
func Load(dir string) (*Plugin, error) {
	metaPath := filepath.Join(dir, MetadataFileName)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrPluginNotFound, "%s has no %s", dir, MetadataFileName)
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", metaPath)
	}

	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrapf(err, errors.ErrPluginInvalid, "failed to parse %s", metaPath)
	}
	if meta.Name == "" {
		return nil, errors.Newf(errors.ErrPluginInvalid, "%s declares no plugin name", metaPath)
	}

	p := &Plugin{Dir: dir, Meta: meta}

	skills, err := discoverSkills(filepath.Join(dir, "skills"))
	if err != nil {
		return nil, err
	}
	p.Components = append(p.Components, skills...)

	for _, kind := range []manifest.Kind{manifest.KindCommand, manifest.KindAgent} {
		files, err := discoverMarkdown(filepath.Join(dir, string(kind)+"s"), kind)
		if err != nil {
			return nil, err
		}
		p.Components = append(p.Components, files...)
	}

	sort.Slice(p.Components, func(i, j int) bool {
		if p.Components[i].Kind != p.Components[j].Kind {
			return p.Components[i].Kind < p.Components[j].Kind
		}
		return p.Components[i].Name < p.Components[j].Name
	})

	return p, nil
}

// Component returns the named component, if the plugin has it.
func (p *Plugin) Component(key manifest.ComponentKey) (Component, bool) {
	for _, c := range p.Components {
		if c.Kind == key.Kind && c.Name == key.Name {
			return c, true
		}
	}
	return Component{}, false
}

// discoverSkills treats each subdirectory of skillsDir as one skill.
func discoverSkills(skillsDir string) ([]Component, error) {
	entries, err := os.ReadDir(skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to list %s", skillsDir)
	}

	var components []Component
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		components = append(components, Component{
			Kind:  manifest.KindSkill,
			Name:  entry.Name(),
			Path:  filepath.Join(skillsDir, entry.Name()),
			IsDir: true,
		})
	}
	return components, nil
}

// discoverMarkdown walks a component tree for .md files; nested paths
// keep their relative name (e.g. scm/commit).
func discoverMarkdown(root string, kind manifest.Kind) ([]Component, error) {
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to read %s", root)
	}

	var components []Component
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		components = append(components, Component{
			Kind: kind,
			Name: filepath.ToSlash(strings.TrimSuffix(rel, ".md")),
			Path: path,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrFileAccess, "failed to walk %s", root)
	}
	return components, nil
}
