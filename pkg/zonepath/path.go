// Package zonepath implements path handling for zone file trees.
//
// Paths inside a zone are POSIX-style relative paths under the zone root,
// always using "/" separators and never containing "." or ".." components.
// The zone root itself is spelled "." and has level 0.
//
// The package also resolves zone instances to their on-disk root directory,
// sharding owning-entity ids into bucket directories so no single directory
// accumulates an unbounded number of children.
package zonepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/campusfiles/zonefs/pkg/zone"
)

// Root is the relative path of a zone's root folder.
const Root = Path(".")

// Path is a validated relative path under a zone root.
//
// The zero value is not valid; use Root for the zone root and Join to build
// deeper paths. A Path never contains "..", never starts or ends with "/",
// and never contains empty components.
type Path string

// InvalidNameError reports a rejected file or folder name.
//
// Names are rejected before any disk access happens, so a caller receiving
// this error can be sure nothing was mutated.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid name %q: %s", e.Name, e.Reason)
}

// ValidateName checks that name is usable as a single path component.
func ValidateName(name string) error {
	switch {
	case name == "":
		return &InvalidNameError{Name: name, Reason: "empty"}
	case name == "." || name == "..":
		return &InvalidNameError{Name: name, Reason: "reserved component"}
	case strings.ContainsAny(name, "/\\"):
		return &InvalidNameError{Name: name, Reason: "contains path separator"}
	case strings.ContainsRune(name, 0):
		return &InvalidNameError{Name: name, Reason: "contains NUL"}
	}
	return nil
}

// Join appends a single validated component to p.
//
// A name of "." denotes the zone root itself: joining "." onto the root
// returns the root unchanged. Anything containing separators or ".." is
// rejected with InvalidNameError.
func Join(p Path, name string) (Path, error) {
	if name == "." {
		if p == Root {
			return Root, nil
		}
		return p, nil
	}
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if p == Root || p == "" {
		return Path(name), nil
	}
	return p + "/" + Path(name), nil
}

// Parse validates an externally supplied relative path.
//
// Accepts "." for the zone root. Every component must pass ValidateName.
func Parse(s string) (Path, error) {
	if s == "." || s == "" {
		return Root, nil
	}
	p := Root
	for _, comp := range strings.Split(s, "/") {
		var err error
		p, err = Join(p, comp)
		if err != nil {
			return "", err
		}
	}
	return p, nil
}

// Level returns the number of components of p. The zone root is level 0.
func (p Path) Level() uint {
	if p == Root || p == "" {
		return 0
	}
	return uint(strings.Count(string(p), "/")) + 1
}

// IsRoot reports whether p is the zone root.
func (p Path) IsRoot() bool {
	return p == Root || p == ""
}

// Base returns the final component of p, or "." for the root.
func (p Path) Base() string {
	if p.IsRoot() {
		return "."
	}
	if i := strings.LastIndexByte(string(p), '/'); i >= 0 {
		return string(p[i+1:])
	}
	return string(p)
}

// TopFolder returns the first component of p, or "." for the root. In
// assignment zones this names the assignment a path belongs to.
func (p Path) TopFolder() string {
	if p.IsRoot() {
		return "."
	}
	if i := strings.IndexByte(string(p), '/'); i >= 0 {
		return string(p[:i])
	}
	return string(p)
}

// Parent returns the path with the final component removed.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return Root
	}
	if i := strings.LastIndexByte(string(p), '/'); i >= 0 {
		return p[:i]
	}
	return Root
}

// IsAncestorOrEqual reports whether p equals other or is an ancestor of it.
// The root is an ancestor of every non-root path.
func (p Path) IsAncestorOrEqual(other Path) bool {
	if p == other {
		return true
	}
	if p.IsRoot() {
		return true
	}
	return strings.HasPrefix(string(other), string(p)+"/")
}

// Rebase substitutes the prefix from for to in p. It returns p unchanged if
// from is not an ancestor-or-equal of p.
func (p Path) Rebase(from, to Path) Path {
	if !from.IsAncestorOrEqual(p) {
		return p
	}
	if p == from {
		return to
	}
	rest := strings.TrimPrefix(string(p), string(from)+"/")
	if to.IsRoot() {
		return Path(rest)
	}
	return to + "/" + Path(rest)
}

// ============================================================================
// Zone root resolution
// ============================================================================

// Layout resolves zone instances to directories under a single base
// directory.
//
// The directory scheme buckets entity ids modulo 100 so that large
// installations do not end up with tens of thousands of entries in one
// directory:
//
//	<base>/<scope-kind>/<id%100>/<id>/<root-folder>
//
// Zones keyed by a secondary user scope (works, assignments) add a second
// bucketed level:
//
//	<base>/course/<id%100>/<id>/usr/<usr%100>/<usr>/<root-folder>
type Layout struct {
	// BaseDir is the absolute directory that holds every zone tree.
	BaseDir string
}

// ZoneRoot returns the absolute on-disk directory of one zone instance,
// creating missing ancestor directories.
//
// secondaryScopeID is only meaningful for zones where
// zone.UsesSecondaryScope reports true, and must be 0 otherwise.
func (l Layout) ZoneRoot(kind zone.Kind, scopeID, secondaryScopeID int64) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("cannot resolve root for invalid zone kind %d", int(kind))
	}
	if scopeID <= 0 {
		return "", fmt.Errorf("zone %s: scope id must be positive, got %d", kind, scopeID)
	}

	dir := filepath.Join(l.BaseDir,
		zone.ScopeKindOf(kind).String(),
		fmt.Sprintf("%02d", scopeID%100),
		fmt.Sprintf("%d", scopeID))

	if zone.UsesSecondaryScope(kind) {
		if secondaryScopeID <= 0 {
			return "", fmt.Errorf("zone %s: secondary scope id must be positive, got %d", kind, secondaryScopeID)
		}
		dir = filepath.Join(dir, "usr",
			fmt.Sprintf("%02d", secondaryScopeID%100),
			fmt.Sprintf("%d", secondaryScopeID))
	} else if secondaryScopeID != 0 {
		return "", fmt.Errorf("zone %s does not take a secondary scope id", kind)
	}

	dir = filepath.Join(dir, zone.RootFolderName(kind))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create zone root %s: %w", dir, err)
	}
	return dir, nil
}

// EachSecondaryRoot calls fn once per existing per-user tree of the zone
// (kind, scopeID), with the secondary scope id and the tree's root
// directory. Only zones with a secondary scope have such trees. Iteration
// stops at the first fn error.
func (l Layout) EachSecondaryRoot(kind zone.Kind, scopeID int64, fn func(secondaryScopeID int64, rootDir string) error) error {
	if !zone.UsesSecondaryScope(kind) {
		return fmt.Errorf("zone %s has no per-user trees", kind)
	}

	usrDir := filepath.Join(l.BaseDir,
		zone.ScopeKindOf(kind).String(),
		fmt.Sprintf("%02d", scopeID%100),
		fmt.Sprintf("%d", scopeID),
		"usr")

	buckets, err := os.ReadDir(usrDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", usrDir, err)
	}

	for _, bucket := range buckets {
		if !bucket.IsDir() {
			continue
		}
		users, err := os.ReadDir(filepath.Join(usrDir, bucket.Name()))
		if err != nil {
			return fmt.Errorf("failed to read user bucket %s: %w", bucket.Name(), err)
		}
		for _, u := range users {
			if !u.IsDir() {
				continue
			}
			id, err := strconv.ParseInt(u.Name(), 10, 64)
			if err != nil {
				continue
			}
			root := filepath.Join(usrDir, bucket.Name(), u.Name(), zone.RootFolderName(kind))
			if _, err := os.Stat(root); os.IsNotExist(err) {
				continue
			}
			if err := fn(id, root); err != nil {
				return err
			}
		}
	}
	return nil
}

// Resolve returns the absolute on-disk location of p inside rootDir.
func Resolve(rootDir string, p Path) string {
	if p.IsRoot() {
		return rootDir
	}
	return filepath.Join(rootDir, filepath.FromSlash(string(p)))
}
