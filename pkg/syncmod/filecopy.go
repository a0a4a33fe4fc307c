package syncmod

import (
	"fmt"
	"os"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/diffview"
	"github.com/arthur-debert/agentsync/pkg/errors"
	"github.com/arthur-debert/agentsync/pkg/fsutil"
	"github.com/arthur-debert/agentsync/pkg/hashing"
	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/arthur-debert/agentsync/pkg/logging"
)

const FileCopyName = "file-copy"

// FileCopy synchronizes a single declared file to a single target path.
type FileCopy struct {
	deps Deps
}

// NewFileCopy creates the single-file sync module.
func NewFileCopy(deps Deps) *FileCopy {
	return &FileCopy{deps: deps}
}

func (m *FileCopy) Name() string { return FileCopyName }

// Check classifies the pair. A deleted source with a surviving target is
// reported as target-changed drift rather than a hard failure: a removed
// declaration must not mask a working install, it makes the target a
// pullback or removal candidate.
func (m *FileCopy) Check(params Params) CheckResult {
	sourceHash, err := hashIfExists(params.SourcePath)
	if err != nil {
		return CheckResult{
			Status: StatusFailed,
			Err:    errors.Wrapf(err, errors.ErrSourceMissing, "cannot read source %s", params.SourcePath),
		}
	}
	targetHash, err := hashIfExists(params.TargetPath)
	if err != nil {
		return CheckResult{
			Status: StatusFailed,
			Err:    errors.Wrapf(err, errors.ErrTargetAccess, "cannot read target %s", params.TargetPath),
		}
	}

	sourceExists := sourceHash != ""
	targetExists := targetHash != ""

	switch {
	case !sourceExists && !targetExists:
		return CheckResult{Status: StatusMissing, Message: "source and target are both absent"}

	case !sourceExists:
		diff, _ := diffview.UnifiedFiles(params.SourcePath, params.TargetPath)
		return CheckResult{
			Status:  StatusDrifted,
			Drift:   ledger.DriftTargetChanged,
			Diff:    diff,
			Message: fmt.Sprintf("source %s was removed; target still installed", params.SourcePath),
		}

	case !targetExists:
		return CheckResult{Status: StatusMissing, Message: fmt.Sprintf("target %s not installed", params.TargetPath)}
	}

	if sourceHash == targetHash {
		return CheckResult{Status: StatusOK, Message: "in sync"}
	}

	drift, err := m.deps.classify(params.LedgerKey, sourceHash, targetHash)
	if err != nil {
		return CheckResult{Status: StatusFailed, Err: err}
	}

	diff, diffErr := m.driftDiff(params, drift)
	if diffErr != nil {
		return CheckResult{Status: StatusFailed, Err: diffErr}
	}

	return CheckResult{
		Status:  StatusDrifted,
		Drift:   drift,
		Diff:    diff,
		Message: driftMessage(drift),
	}
}

// driftDiff picks the diff baseline matching the drift kind: for a
// source change the diff reads as what a forward sync would do to the
// target, for a target change as what a pullback would write into the
// source.
func (m *FileCopy) driftDiff(params Params, drift ledger.DriftKind) (string, error) {
	switch drift {
	case ledger.DriftSourceChanged:
		return diffview.UnifiedFiles(params.TargetPath, params.SourcePath)
	default:
		return diffview.UnifiedFiles(params.SourcePath, params.TargetPath)
	}
}

func driftMessage(drift ledger.DriftKind) string {
	switch drift {
	case ledger.DriftSourceChanged:
		return "source changed since last sync"
	case ledger.DriftTargetChanged:
		return "target edited since last sync"
	case ledger.DriftBothChanged:
		return "both source and target changed since last sync; manual resolution required"
	default:
		return "content differs"
	}
}

// Apply copies source over target: backup, create parents, atomic
// write, then record the new sync state.
func (m *FileCopy) Apply(params Params) ApplyResult {
	logger := logging.GetLogger("syncmod.filecopy")

	info, err := os.Stat(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "source %s is not readable", params.SourcePath)}
	}

	data, err := os.ReadFile(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "failed to read source %s", params.SourcePath)}
	}

	sourceHash, err := hashing.HashFile(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "failed to hash source %s", params.SourcePath)}
	}
	targetHash, err := hashIfExists(params.TargetPath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrTargetAccess, "failed to hash target %s", params.TargetPath)}
	}

	if sourceHash == targetHash {
		if err := m.record(params, sourceHash); err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Changed: false, Message: "already in sync"}
	}

	backupPath, err := m.backupTarget(params)
	if err != nil {
		return ApplyResult{Err: err}
	}

	if err := fsutil.WriteFileAtomic(params.TargetPath, data, info.Mode().Perm()); err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrFileWrite, "failed to write target %s", params.TargetPath), BackupPath: backupPath}
	}

	if err := m.record(params, sourceHash); err != nil {
		return ApplyResult{Err: err, BackupPath: backupPath}
	}

	logger.Info().
		Str("source", params.SourcePath).
		Str("target", params.TargetPath).
		Str("backup", backupPath).
		Msg("Synced file")

	return ApplyResult{
		Changed:    true,
		Message:    fmt.Sprintf("copied %s -> %s", params.SourcePath, params.TargetPath),
		BackupPath: backupPath,
	}
}

// ApplyPullback performs the mirror operation, copying the installed
// target's content back into the declared source. Afterwards the ledger
// records equal hashes for both sides.
func (m *FileCopy) ApplyPullback(params Params) ApplyResult {
	logger := logging.GetLogger("syncmod.filecopy")

	info, err := os.Stat(params.TargetPath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrTargetAccess, "target %s is not readable", params.TargetPath)}
	}

	data, err := os.ReadFile(params.TargetPath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrTargetAccess, "failed to read target %s", params.TargetPath)}
	}

	targetHash, err := hashing.HashFile(params.TargetPath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrTargetAccess, "failed to hash target %s", params.TargetPath)}
	}
	sourceHash, err := hashIfExists(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrSourceMissing, "failed to hash source %s", params.SourcePath)}
	}

	if sourceHash == targetHash {
		if err := m.record(params, targetHash); err != nil {
			return ApplyResult{Err: err}
		}
		return ApplyResult{Changed: false, Message: "already in sync"}
	}

	// Sources live in the user's repo, outside any owner slot, so the
	// backup goes next to the file.
	backupPath, err := m.deps.Backups.CreateLoose(params.SourcePath)
	if err != nil {
		return ApplyResult{Err: err}
	}

	if err := fsutil.WriteFileAtomic(params.SourcePath, data, info.Mode().Perm()); err != nil {
		return ApplyResult{Err: errors.Wrapf(err, errors.ErrFileWrite, "failed to write source %s", params.SourcePath), BackupPath: backupPath}
	}

	if err := m.record(params, targetHash); err != nil {
		return ApplyResult{Err: err, BackupPath: backupPath}
	}

	logger.Info().
		Str("source", params.SourcePath).
		Str("target", params.TargetPath).
		Msg("Pulled back target into source")

	return ApplyResult{
		Changed:    true,
		Message:    fmt.Sprintf("pulled back %s -> %s", params.TargetPath, params.SourcePath),
		BackupPath: backupPath,
	}
}

// backupTarget moves the current target aside, owner-scoped when an
// owner is set, loose otherwise.
func (m *FileCopy) backupTarget(params Params) (string, error) {
	if params.Owner != (backup.Owner{}) {
		return m.deps.Backups.Create(params.TargetPath, params.Owner)
	}
	return m.deps.Backups.CreateLoose(params.TargetPath)
}

// record writes the post-sync ledger state: both sides carry the same
// hash after a successful apply or pullback.
func (m *FileCopy) record(params Params, hash string) error {
	if params.LedgerKey == nil {
		return nil
	}
	return m.deps.Ledger.RecordSync(*params.LedgerKey, hash, hash, params.SourcePath, params.TargetPath)
}
