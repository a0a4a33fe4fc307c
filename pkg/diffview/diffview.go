// Package diffview produces the data the caller renders when presenting
// drift: unified diffs, binary detection, and the inferred sync
// direction for a given drift classification. It consumes engine results
// but never drives engine control flow.
package diffview

import (
	"bytes"
	"fmt"
	"os"

	"github.com/arthur-debert/agentsync/pkg/ledger"
	"github.com/pmezard/go-difflib/difflib"
)

// binarySniffLen bounds how much of a file is inspected for NUL bytes.
const binarySniffLen = 8192

// Direction is the sync action a drift classification points at.
type Direction string

const (
	// DirectionNone means nothing to do.
	DirectionNone Direction = "none"
	// DirectionForward means source -> target is safe.
	DirectionForward Direction = "forward"
	// DirectionPullback means the installed copy is the newer one.
	DirectionPullback Direction = "pullback"
	// DirectionConflict means both sides moved; manual resolution only.
	DirectionConflict Direction = "conflict"
)

// InferDirection maps a drift kind to the sync direction it suggests.
func InferDirection(drift ledger.DriftKind) Direction {
	switch drift {
	case ledger.DriftSourceChanged, ledger.DriftNeverSynced:
		return DirectionForward
	case ledger.DriftTargetChanged:
		return DirectionPullback
	case ledger.DriftBothChanged:
		return DirectionConflict
	default:
		return DirectionNone
	}
}

// IsBinary reports whether data looks like binary content, using the
// usual NUL-byte heuristic over the leading bytes.
func IsBinary(data []byte) bool {
	if len(data) > binarySniffLen {
		data = data[:binarySniffLen]
	}
	return bytes.IndexByte(data, 0) != -1
}

// Unified renders a unified diff between two byte slices. Binary content
// on either side yields a one-line placeholder instead of a diff.
func Unified(fromLabel, toLabel string, a, b []byte) (string, error) {
	if IsBinary(a) || IsBinary(b) {
		return fmt.Sprintf("Binary files %s and %s differ\n", fromLabel, toLabel), nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: fromLabel,
		ToFile:   toLabel,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

// UnifiedFiles renders a unified diff between two files on disk. A
// missing file diffs as empty content, so creations and deletions
// still produce a readable hunk.
func UnifiedFiles(fromPath, toPath string) (string, error) {
	a, err := os.ReadFile(fromPath)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read %s: %w", fromPath, err)
	}
	b, err := os.ReadFile(toPath)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read %s: %w", toPath, err)
	}
	return Unified(fromPath, toPath, a, b)
}
