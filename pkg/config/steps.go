package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/logging"
	"github.com/arthur-debert/agentsync/pkg/orchestrator"
	"github.com/arthur-debert/agentsync/pkg/syncmod"
)

// Shape is the detected form of a declaration source.
type Shape string

const (
	ShapeFile Shape = "file"
	ShapeDir  Shape = "dir"
	ShapeGlob Shape = "glob"
)

// DetectShape classifies a source path. Glob metacharacters win over
// stat so a pattern that happens to match nothing still routes to the
// glob module; otherwise an existing directory means dir sync and
// everything else (including a missing source, which check will report)
// is treated as a single file.
func DetectShape(sourcePath string) Shape {
	if strings.ContainsAny(sourcePath, "*?[{") {
		return ShapeGlob
	}
	if fi, err := os.Stat(sourcePath); err == nil && fi.IsDir() {
		return ShapeDir
	}
	return ShapeFile
}

// BuildSteps expands the configured declarations into orchestrator
// steps, one per declaration and matching enabled instance. Per-instance
// overrides replace the declared target; targets resolve relative to the
// instance config directory unless absolute.
func BuildSteps(cfg *Config, sourceRoot string, deps syncmod.Deps) []orchestrator.Step {
	logger := logging.GetLogger("config")

	fileMod := syncmod.NewFileCopy(deps)
	dirMod := syncmod.NewDirSync(deps)
	globMod := syncmod.NewGlobCopy(deps)

	var steps []orchestrator.Step
	for _, decl := range cfg.Declarations {
		sourcePath := decl.Source
		if !filepath.IsAbs(sourcePath) {
			sourcePath = filepath.Join(sourceRoot, decl.Source)
		}
		shape := DetectShape(sourcePath)

		for _, inst := range cfg.EnabledInstances() {
			if !declApplies(decl, inst) {
				continue
			}

			targetRel := decl.TargetFor(inst)
			targetPath := targetRel
			if !filepath.IsAbs(targetPath) {
				targetPath = filepath.Join(inst.ConfigDir, targetRel)
			}

			var mod syncmod.Module
			switch shape {
			case ShapeDir:
				mod = dirMod
			case ShapeGlob:
				mod = globMod
			default:
				mod = fileMod
			}

			steps = append(steps, orchestrator.Step{
				Label:  decl.Name,
				Module: mod,
				Params: syncmod.Params{
					Label:      decl.Name,
					SourcePath: sourcePath,
					TargetPath: targetPath,
					LedgerKey: &ledger.Key{
						Name:      decl.Name,
						Tool:      inst.Tool,
						Instance:  inst.Instance,
						TargetRel: targetRel,
					},
					Pullback: decl.Pullback || cfg.Pullback,
					Owner: backup.Owner{
						Name: decl.Name,
						Kind: inst.Tool,
						Item: inst.Instance,
					},
				},
			})
		}
	}

	logger.Debug().Int("steps", len(steps)).Msg("Built sync steps from declarations")
	return steps
}

// declApplies honors the declaration's tools scoping.
func declApplies(decl Declaration, inst InstanceDef) bool {
	if len(decl.Tools) == 0 {
		return true
	}
	for _, tool := range decl.Tools {
		if tool == inst.Tool {
			return true
		}
	}
	return false
}
