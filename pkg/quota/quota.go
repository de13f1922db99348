package quota

import (
	"fmt"
	"os"
	"path/filepath"
)

// BrowserSize is the current resource usage of one zone instance, computed
// by a full recursive scan. The zone root folder itself is not counted;
// entries directly under it are at level 1.
type BrowserSize struct {
	NumFiles      int64 `json:"num_files"`
	NumFolders    int64 `json:"num_folders"`
	TotalBytes    int64 `json:"total_bytes"`
	MaxLevelsSeen uint  `json:"max_levels_seen"`
}

// Dimension names one quota axis.
type Dimension string

const (
	DimFiles   Dimension = "files"
	DimFolders Dimension = "folders"
	DimBytes   Dimension = "bytes"
	DimLevels  Dimension = "levels"
)

// ExceededError reports the first quota dimension a check found violated.
type ExceededError struct {
	Dimension Dimension
	Used      int64
	Limit     int64
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded on %s: %d used, limit %d", e.Dimension, e.Used, e.Limit)
}

// ScanZone walks the tree under rootPath and returns its usage.
//
// Folders and files each count once. Symbolic links count as files and are
// never followed as directories, so a link cycle cannot hang the scan.
// Quota is re-scanned fresh before every mutating operation instead of
// being maintained as a persistent counter: several processes may mutate
// the same zone, and a stale persistent counter is worse than the cost of
// a tree walk at interaction rates.
func ScanZone(rootPath string) (BrowserSize, error) {
	var size BrowserSize
	if err := scanDir(rootPath, 1, &size); err != nil {
		return BrowserSize{}, err
	}
	return size, nil
}

func scanDir(dir string, level uint, size *BrowserSize) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	for _, e := range entries {
		if level > size.MaxLevelsSeen {
			size.MaxLevelsSeen = level
		}
		full := filepath.Join(dir, e.Name())

		// DirEntry.IsDir uses Lstat semantics: a symlink to a directory is
		// not a dir here, which is exactly what we want.
		if e.IsDir() {
			size.NumFolders++
			if err := scanDir(full, level+1, size); err != nil {
				return err
			}
			continue
		}

		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", full, err)
		}
		size.NumFiles++
		if info.Mode().IsRegular() {
			size.TotalBytes += info.Size()
		}
	}
	return nil
}

// AddFile accounts one file of n bytes at the given level. Used for
// incremental tracking inside a single multi-step operation (a subtree
// paste re-checks after each entry instead of re-scanning the zone).
func (s *BrowserSize) AddFile(level uint, n int64) {
	s.NumFiles++
	s.TotalBytes += n
	if level > s.MaxLevelsSeen {
		s.MaxLevelsSeen = level
	}
}

// AddFolder accounts one folder at the given level.
func (s *BrowserSize) AddFolder(level uint) {
	s.NumFolders++
	if level > s.MaxLevelsSeen {
		s.MaxLevelsSeen = level
	}
}

// Check compares usage against policy and returns an ExceededError for the
// first violated dimension (files, folders, bytes, then levels), or nil.
func Check(size BrowserSize, policy Policy) error {
	policy = policy.Clamped()
	if policy.MaxFiles > 0 && size.NumFiles > policy.MaxFiles {
		return &ExceededError{Dimension: DimFiles, Used: size.NumFiles, Limit: policy.MaxFiles}
	}
	if policy.MaxFolders > 0 && size.NumFolders > policy.MaxFolders {
		return &ExceededError{Dimension: DimFolders, Used: size.NumFolders, Limit: policy.MaxFolders}
	}
	if policy.MaxBytes > 0 && size.TotalBytes > policy.MaxBytes {
		return &ExceededError{Dimension: DimBytes, Used: size.TotalBytes, Limit: policy.MaxBytes}
	}
	if size.MaxLevelsSeen > policy.MaxLevels {
		return &ExceededError{Dimension: DimLevels, Used: int64(size.MaxLevelsSeen), Limit: int64(policy.MaxLevels)}
	}
	return nil
}
