// Package syncmod implements the per-source-kind sync strategies. Each
// module exposes the same check/apply contract; check never mutates
// anything, apply always backs up before overwriting and records the new
// sync state in the ledger. The three strategies are selected by source
// shape: a single file, a directory tree, or a glob pattern.
package syncmod

import (
	"os"

	"github.com/arthur-debert/agentsync/pkg/backup"
	"github.com/arthur-debert/agentsync/pkg/hashing"
	"github.com/arthur-debert/agentsync/pkg/ledger"
)

// Status is the outcome class of a check.
type Status string

const (
	// StatusOK means source and target agree.
	StatusOK Status = "ok"
	// StatusMissing means the pair was never materialized (no target, or
	// neither side exists).
	StatusMissing Status = "missing"
	// StatusDrifted means the sides disagree; Drift carries the
	// three-way classification when a ledger key was available.
	StatusDrifted Status = "drifted"
	// StatusFailed means the check itself could not run (unreadable
	// source, hash failure). Apply must never proceed on a failed check.
	StatusFailed Status = "failed"
)

// Params binds one declared artifact to a module invocation.
type Params struct {
	// Label identifies the step in reports and filters.
	Label string
	// SourcePath is the canonical copy: a file, a directory, or a glob
	// pattern depending on the module.
	SourcePath string
	// TargetPath is the installed location under a tool instance's
	// config directory.
	TargetPath string
	// LedgerKey enables three-way drift classification. Without it,
	// checks fall back to plain two-way comparison.
	LedgerKey *ledger.Key
	// Pullback marks the declaration as pullback-enabled. The glob
	// module interprets it directly in Apply; the file module exposes a
	// separate ApplyPullback.
	Pullback bool
	// Owner scopes backup slots for this declaration.
	Owner backup.Owner
}

// CheckResult reports the current state of a pair without touching it.
type CheckResult struct {
	Status  Status
	Message string
	// Diff is a unified diff against the baseline appropriate for the
	// drift kind, empty when not applicable.
	Diff string
	// Drift is set when a ledger key allowed three-way classification.
	Drift ledger.DriftKind
	Err   error
}

// ApplyResult reports the outcome of a mutation.
type ApplyResult struct {
	Changed bool
	Message string
	// BackupPath is where the previous target content went, empty if
	// there was nothing to back up.
	BackupPath string
	Err        error
}

// Module is the strategy contract shared by all sync modules.
type Module interface {
	// Name identifies the strategy (file-copy, directory-sync, glob-copy).
	Name() string
	// Check classifies the pair. It performs no writes.
	Check(params Params) CheckResult
	// Apply synchronizes target from source, backing up first.
	Apply(params Params) ApplyResult
}

// Pullbacker is implemented by modules that support reverse sync,
// copying the installed target's content back into the declared source.
type Pullbacker interface {
	ApplyPullback(params Params) ApplyResult
}

// Deps carries the shared collaborators every module needs. Threading
// them explicitly keeps modules free of hidden global state.
type Deps struct {
	Ledger  *ledger.Store
	Backups *backup.Manager
}

// hashIfExists returns the file hash, or "" when the path does not
// exist. Directories hash with hashing.HashDirectory instead.
func hashIfExists(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return hashing.HashFile(path)
}

// classify runs three-way detection when a key is present. The zero
// DriftKind signals "no ledger context".
func (d Deps) classify(key *ledger.Key, sourceHash, targetHash string) (ledger.DriftKind, error) {
	if key == nil {
		return "", nil
	}
	return d.Ledger.DetectDrift(*key, sourceHash, targetHash)
}
