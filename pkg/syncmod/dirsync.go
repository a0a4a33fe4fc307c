package syncmod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/diffview"
	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/arthur-debert/agentsync/pkg/hashing"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/logging"
)

const DirSyncName = "directory-sync"

// maxDirDiffFiles caps how many per-file diffs a directory check attaches.
const maxDirDiffFiles = 10

// DirSync synchronizes a whole directory tree. Comparison is scoped to
// the files enumerable under the source tree: files that exist only in
// the target never count as drift, so tool-managed files living next to
// managed ones don't produce false positives.
type DirSync struct {
	deps Deps
}

// NewDirSync creates the directory tree sync module.
func NewDirSync(deps Deps) *DirSync {
	return &DirSync{deps: deps}
}

func (m *DirSync) Name() string { return DirSyncName }

func (m *DirSync) Check(params Params) CheckResult {
	sourceInfo, err := os.Stat(params.SourcePath)
	sourceExists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return CheckResult{Status: StatusFailed, Err: errors.Wrapf(err, errors.ErrSourceMissing, "cannot read source %s", params.SourcePath)}
	}
	if sourceExists && !sourceInfo.IsDir() {
		return CheckResult{Status: StatusFailed, Err: errors.Newf(errors.ErrInvalidInput, "source %s is not a directory", params.SourcePath)}
	}

	_, err = os.Stat(params.TargetPath)
	targetExists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return CheckResult{Status: StatusFailed, Err: errors.Wrapf(err, errors.ErrTargetAccess, "cannot read target %s", params.TargetPath)}
	}

	switch {
	case !sourceExists && !targetExists:
		return CheckResult{Status: StatusMissing, Message: "source and target are both absent"}
	case !sourceExists:
		return CheckResult{
			Status:  StatusDrifted,
			Drift:   ledger.DriftTargetChanged,
			Message: fmt.Sprintf("source %s was removed; target still installed", params.SourcePath),
		}
	case !targetExists:
		return CheckResult{Status: StatusMissing, Message: fmt.Sprintf("target %s not installed", params.TargetPath)}
	}

	rels, err := hashing.ListFiles(params.SourcePath)
	if err != nil {
		return CheckResult{Status: StatusFailed, Err: errors.Wrapf(err, errors.ErrSourceMissing, "cannot list source %s", params.SourcePath)}
	}

	drifted, err := m.driftedFiles(params, rels)
	if err != nil {
		return CheckResult{Status: StatusFailed, Err: err}
	}

	if len(drifted) == 0 {
		return CheckResult{Status: StatusOK, Message: fmt.Sprintf("%d files in sync", len(rels))}
	}

	drift, err := m.classifyTree(params, rels)
	if err != nil {
		return CheckResult{Status: StatusFailed, Err: err}
	}

	diff := m.collectDiffs(params, drifted)
	return CheckResult{
		Status:  StatusDrifted,
		Drift:   drift,
		Diff:    diff,
		Message: fmt.Sprintf("%d of %d files drifted: %s", len(drifted), len(rels), strings.Join(drifted, ", ")),
	}
}

// driftedFiles returns the source-relative paths whose target copies are
// missing or differ. Target-only files are deliberately not enumerated.
func (m *DirSync) driftedFiles(params Params, rels []string) ([]string, error) {
	var drifted []string
	for _, rel := range rels {
		sourceFile := filepath.Join(params.SourcePath, rel)
		targetFile := filepath.Join(params.TargetPath, rel)

		targetHash, err := hashIfExists(targetFile)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrTargetAccess, "cannot read target file %s", targetFile)
		}
		if targetHash == "" {
			drifted = append(drifted, rel)
			continue
		}

		sourceHash, err := hashing.HashFile(sourceFile)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrSourceMissing, "cannot hash source file %s", sourceFile)
		}
		if sourceHash != targetHash {
			drifted = append(drifted, rel)
		}
	}
	return drifted, nil
}

// classifyTree runs three-way detection. The source side hashes its own
// current enumeration; the target side hashes over the file set recorded
// at the last sync, so a file added to or removed from the source alone
// classifies as source-changed, and unmanaged target files never
// influence the result.
func (m *DirSync) classifyTree(params Params, rels []string) (ledger.DriftKind, error) {
	if params.LedgerKey == nil {
		return "", nil
	}
	entry, ok, err := m.deps.Ledger.Get(*params.LedgerKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return ledger.DriftNeverSynced, nil
	}

	sourceHash, err := hashing.HashDirectory(params.SourcePath)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrSourceMissing, "cannot hash source %s", params.SourcePath)
	}

	// Entries written before file sets were recorded fall back to the
	// current source enumeration.
	targetSet := entry.Files
	if len(targetSet) == 0 {
		targetSet = rels
	}
	targetHash, err := hashing.HashFileSet(params.TargetPath, targetSet)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrTargetAccess, "cannot hash target %s", params.TargetPath)
	}
	return m.deps.Ledger.DetectDrift(*params.LedgerKey, sourceHash, targetHash)
}

func (m *DirSync) collectDiffs(params Params, drifted []string) string {
	var b strings.Builder
	for i, rel := range drifted {
		if i >= maxDirDiffFiles {
			fmt.Fprintf(&b, "... and %d more files\n", len(drifted)-maxDirDiffFiles)
			break
		}
		diff, err := diffview.UnifiedFiles(
			filepath.Join(params.SourcePath, rel),
			filepath.Join(params.TargetPath, rel),
		)
		if err == nil && diff != "" {
			b.WriteString(diff)
		}
	}
	return b.String()
}

// Apply backs up the whole target directory, then recreates it from the
// source tree.
func (m *DirSync) Apply(params Params) ApplyResult {
	logger := logging.GetLogger("syncmod.dirsync")

	info, err := os.Stat(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "source %s is not readable", params.SourcePath)}
	}
	if !info.IsDir() {
		return ApplyResult{Err: errors.Newf(errors.ErrInvalidInput, "source %s is not a directory", params.SourcePath)}
	}

	rels, err := hashing.ListFiles(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "cannot list source %s", params.SourcePath)}
	}

	sourceHash, err := hashing.HashDirectory(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "cannot hash source %s", params.SourcePath)}
	}

	if fsutil.Exists(params.TargetPath) {
		targetHash, err := hashing.HashFileSet(params.TargetPath, rels)
		if err == nil && targetHash == sourceHash {
			if err := m.record(params, sourceHash, rels); err != nil {
				return ApplyResult{Err: err}
			}
			return ApplyResult{Changed: false, Message: "already in sync"}
		}
	}

	backupPath, err := m.backupTarget(params)
	if err != nil {
		return ApplyResult{Err: err}
	}

	if err := fsutil.CopyTree(params.SourcePath, params.TargetPath); err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrFileWrite, "failed to copy tree to %s", params.TargetPath), BackupPath: backupPath}
	}

	if err := m.record(params, sourceHash, rels); err != nil {
		return ApplyResult{Err: err, BackupPath: backupPath}
	}

	logger.Info().
		Str("source", params.SourcePath).
		Str("target", params.TargetPath).
		Int("files", len(rels)).
		Str("backup", backupPath).
		Msg("Synced directory")

	return ApplyResult{
		Changed:    true,
		Message:    fmt.Sprintf("copied %d files %s -> %s", len(rels), params.SourcePath, params.TargetPath),
		BackupPath: backupPath,
	}
}

func (m *DirSync) backupTarget(params Params) (string, error) {
	if params.Owner != (backup.Owner{}) {
		return m.deps.Backups.Create(params.TargetPath, params.Owner)
	}
	return m.deps.Backups.CreateLoose(params.TargetPath)
}

func (m *DirSync) record(params Params, hash string, rels []string) error {
	if params.LedgerKey == nil {
		return nil
	}
	return m.deps.Ledger.RecordSyncTree(*params.LedgerKey, hash, hash, params.SourcePath, params.TargetPath, rels)
}
