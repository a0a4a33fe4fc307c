// Package hashing provides the content-addressing primitive used across
// the sync engine: every drift decision ultimately compares the digests
// produced here.
package hashing

import (
	"crypto/sha256"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// HashFile calculates the SHA256 checksum of a file's raw bytes.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// HashDirectory calculates a deterministic digest over a directory tree.
// All files are listed recursively (symlinks are followed to their
// resolved file, dangling links are skipped), relative paths are sorted
// lexicographically, and each path is folded into the digest together
// with its file hash. The result is independent of the order in which
// the OS enumerates directory entries, and changes iff any contained
// path or content changes.
func HashDirectory(path string) (string, error) {
	files, err := ListFiles(path)
	if err != nil {
		return "", err
	}
	sort.Strings(files)

	hash := sha256.New()
	for _, rel := range files {
		fileHash, err := HashFile(filepath.Join(path, rel))
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", rel, err)
		}
		hash.Write([]byte(rel))
		hash.Write([]byte{0})
		hash.Write([]byte(fileHash))
		hash.Write([]byte{0})
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// HashFileSet folds a fixed set of relative paths with their file hashes
// into one digest, exactly like HashDirectory but restricted to the given
// set. Paths missing under root are folded with an empty hash so that a
// deleted file still changes the digest. Used when a target tree holds
// unmanaged files that must not influence the comparison.
func HashFileSet(root string, rels []string) (string, error) {
	sorted := append([]string(nil), rels...)
	sort.Strings(sorted)

	hash := sha256.New()
	for _, rel := range sorted {
		fileHash := ""
		full := filepath.Join(root, rel)
		if _, err := os.Stat(full); err == nil {
			fileHash, err = HashFile(full)
			if err != nil {
				return "", fmt.Errorf("failed to hash %s: %w", rel, err)
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
		hash.Write([]byte(rel))
		hash.Write([]byte{0})
		hash.Write([]byte(fileHash))
		hash.Write([]byte{0})
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// ListFiles returns the relative paths of all regular files under root.
// Symlinked files are included under their link name; dangling links
// are silently skipped.
func ListFiles(root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				// Dangling link
				return nil
			}
			info, err := os.Stat(resolved)
			if err != nil || info.IsDir() {
				return nil
			}
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
