package syncmod

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/logging"
	"github.com/bmatcuk/doublestar/v4"
)

const GlobCopyName = "glob-copy"

// GlobCopy expands a source glob pattern into individual file pairs and
// delegates each to the single-file strategy. Because the source side is
// a pattern rather than a path, pullback cannot swap source and target:
// it is expressed through Params.Pullback, interpreted per expanded pair
// as "target is authoritative, write back into the matching source file".
type GlobCopy struct {
	deps Deps
	file *FileCopy
}

// NewGlobCopy creates the glob set sync module.
func NewGlobCopy(deps Deps) *GlobCopy {
	return &GlobCopy{deps: deps, file: NewFileCopy(deps)}
}

func (m *GlobCopy) Name() string { return GlobCopyName }

// pair is one expanded source file and its mapped destination.
type pair struct {
	rel    string
	params Params
}

// expand resolves the pattern into pairs. The fixed prefix of the
// pattern anchors relative paths; each match maps to the same relative
// path under the target directory.
func (m *GlobCopy) expand(params Params) ([]pair, error) {
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(params.SourcePath))

	matches, err := doublestar.Glob(os.DirFS(base), pattern)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "bad glob pattern %q", params.SourcePath)
	}

	var pairs []pair
	for _, rel := range matches {
		sourceFile := filepath.Join(base, filepath.FromSlash(rel))
		info, err := os.Stat(sourceFile)
		if err != nil || info.IsDir() {
			continue
		}

		p := Params{
			Label:      params.Label,
			SourcePath: sourceFile,
			TargetPath: filepath.Join(params.TargetPath, filepath.FromSlash(rel)),
			Pullback:   params.Pullback,
			Owner:      params.Owner,
		}
		if p.Owner.Item != "" {
			p.Owner.Item = path.Join(p.Owner.Item, rel)
		}
		if params.LedgerKey != nil {
			key := *params.LedgerKey
			key.TargetRel = path.Join(key.TargetRel, rel)
			p.LedgerKey = &key
		}
		pairs = append(pairs, pair{rel: rel, params: p})
	}
	return pairs, nil
}

func (m *GlobCopy) Check(params Params) CheckResult {
	pairs, err := m.expand(params)
	if err != nil {
		return CheckResult{Status: StatusFailed, Err: err}
	}
	if len(pairs) == 0 {
		return CheckResult{Status: StatusMissing, Message: fmt.Sprintf("pattern %s matched no files", params.SourcePath)}
	}

	var (
		okCount, missingCount int
		drifted               []string
		diffs                 strings.Builder
		kinds                 = map[ledger.DriftKind]bool{}
	)

	for _, p := range pairs {
		result := m.file.Check(p.params)
		switch result.Status {
		case StatusFailed:
			return CheckResult{Status: StatusFailed, Err: result.Err, Message: fmt.Sprintf("check failed for %s", p.rel)}
		case StatusOK:
			okCount++
		case StatusMissing:
			missingCount++
		case StatusDrifted:
			drifted = append(drifted, p.rel)
			if result.Drift != "" {
				kinds[result.Drift] = true
			}
			if len(drifted) <= maxDirDiffFiles {
				diffs.WriteString(result.Diff)
			}
		}
	}

	switch {
	case len(drifted) > 0:
		var drift ledger.DriftKind
		if len(kinds) == 1 {
			for k := range kinds {
				drift = k
			}
		}
		return CheckResult{
			Status:  StatusDrifted,
			Drift:   drift,
			Diff:    diffs.String(),
			Message: fmt.Sprintf("%d of %d files drifted: %s", len(drifted), len(pairs), strings.Join(drifted, ", ")),
		}
	case missingCount > 0:
		return CheckResult{Status: StatusMissing, Message: fmt.Sprintf("%d of %d files not installed", missingCount, len(pairs))}
	default:
		return CheckResult{Status: StatusOK, Message: fmt.Sprintf("%d files in sync", okCount)}
	}
}

// Apply synchronizes every expanded pair. With Params.Pullback set the
// direction reverses: each target writes back into its matching source
// file.
func (m *GlobCopy) Apply(params Params) ApplyResult {
	logger := logging.GetLogger("syncmod.globcopy")

	pairs, err := m.expand(params)
	if err != nil {
		return ApplyResult{Err: err}
	}
	if len(pairs) == 0 {
		return ApplyResult{Err: errors.Newf(errors.ErrSourceMissing, "pattern %s matched no files", params.SourcePath)}
	}

	changed := 0
	var backups []string
	for _, p := range pairs {
		var result ApplyResult
		if params.Pullback {
			// Pullback only makes sense for targets that exist; pairs
			// whose destination was never installed are skipped.
			if _, err := os.Stat(p.params.TargetPath); err != nil {
				continue
			}
			result = m.file.ApplyPullback(p.params)
		} else {
			result = m.file.Apply(p.params)
		}

		if result.Err != nil {
			return ApplyResult{
				Err:     errors.Wrapf(result.Err, errors.ErrFileWrite, "glob apply failed at %s", p.rel),
				Message: fmt.Sprintf("stopped after %d of %d files", changed, len(pairs)),
			}
		}
		if result.Changed {
			changed++
		}
		if result.BackupPath != "" {
			backups = append(backups, result.BackupPath)
		}
	}

	logger.Info().
		Str("pattern", params.SourcePath).
		Int("files", len(pairs)).
		Int("changed", changed).
		Bool("pullback", params.Pullback).
		Msg("Synced glob set")

	message := fmt.Sprintf("synced %d of %d files", changed, len(pairs))
	if len(backups) > 0 {
		message = fmt.Sprintf("%s (%d backed up)", message, len(backups))
	}

	result := ApplyResult{Changed: changed > 0, Message: message}
	if len(backups) > 0 {
		result.BackupPath = backups[0]
	}
	return result
}

// ApplyPullback satisfies Pullbacker by rerunning Apply with the
// direction flag forced.
func (m *GlobCopy) ApplyPullback(params Params) ApplyResult {
	params.Pullback = true
	return m.Apply(params)
}

// interface guards
var (
	_ Module     = (*FileCopy)(nil)
	_ Module     = (*DirSync)(nil)
	_ Module     = (*GlobCopy)(nil)
	_ Pullbacker = (*FileCopy)(nil)
	_ Pullbacker = (*GlobCopy)(nil)
)
