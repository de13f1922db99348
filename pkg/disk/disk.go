// Package disk wraps the filesystem primitives the zone browser needs:
// sorted directory listings, atomic file placement, recursive copy and
// delete, and temporary public download links.
//
// Everything operates on absolute paths produced by zonepath; no path
// validation happens here. Symbolic links are never followed as
// directories anywhere in this package.
package disk

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// LinkSuffix marks a small file whose content is a URL. Entries with this
// suffix are presented as links rather than regular files.
const LinkSuffix = ".url"

// IsLinkName reports whether a file name denotes a stored link.
func IsLinkName(name string) bool {
	return strings.HasSuffix(name, LinkSuffix)
}

// IsNotEmpty reports whether err is the "directory not empty" failure from
// RemoveEmptyDir. Callers use this to fall back to the explicit
// remove-subtree request.
func IsNotEmpty(err error) bool {
	return errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST)
}

// ReadDirSorted returns the entries of dir in lexical order, "." and ".."
// excluded (os.ReadDir never reports them).
func ReadDirSorted(dir string) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	// os.ReadDir sorts by filename already; keep the explicit sort as the
	// contract rather than an implementation detail of the standard library.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

// Mkdir creates a single directory.
func Mkdir(path string) error {
	if err := os.Mkdir(path, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// RemoveFile unlinks a file or stored link.
func RemoveFile(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove file %s: %w", path, err)
	}
	return nil
}

// RemoveEmptyDir removes a directory that must be empty. A non-empty
// directory fails with an error matched by IsNotEmpty.
func RemoveEmptyDir(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove directory %s: %w", path, err)
	}
	return nil
}

// RemoveTree removes path and everything under it.
func RemoveTree(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove tree %s: %w", path, err)
	}
	return nil
}

// Rename renames src to dst with platform rename semantics: an existing
// empty directory or file at dst is atomically replaced where the OS
// allows it.
func Rename(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", src, dst, err)
	}
	return nil
}

// CopyFile copies a regular file's content and mode. The destination is
// written via a temporary file in the destination directory and renamed
// into place, so a half-written copy is never observable under dst's name.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	if _, err := WriteFileAtomic(dst, in, info.Mode().Perm()); err != nil {
		return err
	}
	return nil
}

// WriteFileAtomic streams r into a temporary file next to path and renames
// it into place. On any failure the temporary file is removed and path is
// untouched. Returns the number of bytes written.
func WriteFileAtomic(path string, r io.Reader, perm fs.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Chmod(perm)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return n, nil
}

// WriteTemp streams r into a fresh temporary file inside dir and returns
// its path and size. The caller validates the content and either renames
// the file into place or removes it; nothing is cleaned up automatically.
func WriteTemp(dir string, r io.Reader) (string, int64, error) {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to write temporary file in %s: %w", dir, err)
	}
	return tmpName, n, nil
}
