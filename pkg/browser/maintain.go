package browser

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/disk"
	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// ReconcileStats summarizes one reconciliation pass over a zone instance.
type ReconcileStats struct {
	// Entries is the number of disk entries visited, the root included.
	Entries int `json:"entries"`

	// Healed counts entries that had no metadata row and got one.
	Healed int `json:"healed"`

	// Pruned counts stale rows removed because their disk entry is gone.
	Pruned int `json:"pruned"`
}

// Reconcile realigns one zone instance's metadata with its disk tree:
// entries without a row get one (unknown publisher, default visibility),
// rows without a disk entry are removed. Intended for the maintenance CLI
// and recovery after partial failures; normal operations self-heal lazily
// and do not need it.
func (b *Browser) Reconcile(ctx context.Context, kind zone.Kind, scopeID,
	secondaryScopeID int64) (stats ReconcileStats, err error) {
	defer func(start time.Time) { b.observe("reconcile", kind, start, err) }(time.Now())

	rootDir, err := b.layout.ZoneRoot(kind, scopeID, secondaryScopeID)
	if err != nil {
		return ReconcileStats{}, err
	}
	inst := metadata.Instance{Kind: kind, ScopeID: scopeID, SecondaryScopeID: secondaryScopeID}

	known, err := b.store.ListPaths(ctx, inst)
	if err != nil {
		return ReconcileStats{}, err
	}
	stale := make(map[zonepath.Path]bool, len(known))
	for _, p := range known {
		stale[p] = true
	}

	zc := ZoneContext{Kind: kind, ScopeID: scopeID, SecondaryScopeID: secondaryScopeID}
	visit := func(p zonepath.Path) error {
		stats.Entries++
		if !stale[p] {
			stats.Healed++
		}
		delete(stale, p)
		_, err := b.recordFromDisk(ctx, zc, rootDir, p)
		return err
	}

	if err := visit(zonepath.Root); err != nil {
		return stats, err
	}
	if err := walkTree(rootDir, zonepath.Root, visit); err != nil {
		return stats, err
	}

	for p := range stale {
		if err := b.store.DeletePath(ctx, inst, p); err != nil {
			return stats, err
		}
		stats.Pruned++
	}
	return stats, nil
}

func walkTree(rootDir string, folder zonepath.Path, visit func(zonepath.Path) error) error {
	entries, err := disk.ReadDirSorted(zonepath.Resolve(rootDir, folder))
	if err != nil {
		return err
	}
	for _, de := range entries {
		name := de.Name()
		if strings.HasPrefix(name, ".upload-") {
			continue
		}
		p, err := zonepath.Join(folder, name)
		if err != nil {
			logger.Warn("skipping unreconcilable entry %q under %q: %v", name, folder, err)
			continue
		}
		if err := visit(p); err != nil {
			return err
		}
		if de.IsDir() {
			if err := walkTree(rootDir, p, visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// CleanupStats summarizes one expiry pass.
type CleanupStats struct {
	Clipboards int `json:"clipboards"`
	Expanded   int `json:"expanded"`
	TempLinks  int `json:"temp_links"`
}

// Cleanup drops expired clipboards, expired expanded-folder rows and aged
// temporary public links. Meant to run periodically; every part is
// idempotent.
func (b *Browser) Cleanup(ctx context.Context) (stats CleanupStats, err error) {
	defer func(start time.Time) { b.observe("cleanup", zone.Unknown, start, err) }(time.Now())

	stats.Clipboards, err = b.store.ClearExpiredClipboards(ctx, metadata.ClipboardTTL)
	if err != nil {
		return stats, err
	}
	b.metrics.RecordCleanup("clipboard", stats.Clipboards)

	stats.Expanded, err = b.store.ClearExpiredExpanded(ctx, metadata.ExpandedTTL)
	if err != nil {
		return stats, err
	}
	b.metrics.RecordCleanup("expanded", stats.Expanded)

	if b.tempLinkDir != "" {
		stats.TempLinks, err = disk.CleanTemporaryLinks(b.tempLinkDir, b.tempLinkTTL)
		if err != nil {
			return stats, err
		}
		b.metrics.RecordCleanup("temp_link", stats.TempLinks)
	}
	return stats, nil
}

// ============================================================================
// Assignment folder cascades
// ============================================================================

// RenameAssignmentFolders renames the level-1 folder of one assignment in
// every student tree of the course, with the same metadata cascade a
// regular rename performs. Called by the assignment service when an
// assignment's title changes; students cannot rename these folders
// themselves.
//
// Students whose tree lacks the folder are skipped. Returns how many trees
// were renamed.
func (b *Browser) RenameAssignmentFolders(ctx context.Context, courseID int64,
	oldName, newName string) (renamed int, err error) {
	defer func(start time.Time) { b.observe("rename_assignment", zone.AdmiAsgUsr, start, err) }(time.Now())

	oldPath, err := zonepath.Parse(oldName)
	if err != nil {
		return 0, err
	}
	newPath, err := zonepath.Parse(newName)
	if err != nil {
		return 0, err
	}
	if oldPath.Level() != 1 || newPath.Level() != 1 {
		return 0, fmt.Errorf("assignment folder names must be single components")
	}

	err = b.layout.EachSecondaryRoot(zone.AdmiAsgUsr, courseID, func(userID int64, rootDir string) error {
		oldAbs := zonepath.Resolve(rootDir, oldPath)
		if _, err := os.Lstat(oldAbs); err != nil {
			return nil
		}
		newAbs := zonepath.Resolve(rootDir, newPath)
		if _, err := os.Lstat(newAbs); err == nil {
			logger.Warn("assignment rename for user %d skipped, %q already exists", userID, newName)
			return nil
		}
		if err := disk.Rename(oldAbs, newAbs); err != nil {
			return err
		}

		inst := metadata.Instance{Kind: zone.AdmiAsgUsr, ScopeID: courseID, SecondaryScopeID: userID}
		if err := b.store.RenamePath(ctx, inst, oldPath, newPath); err != nil {
			return err
		}
		if err := b.store.RenameExpandedPrefix(ctx, inst, oldPath, newPath); err != nil {
			return err
		}
		if err := b.store.ClearClipboardsUnder(ctx, inst, oldPath); err != nil {
			return err
		}
		renamed++
		return nil
	})
	return renamed, err
}

// RemoveAssignmentFolders removes the level-1 folder of one assignment,
// submissions included, from every student tree of the course. Called by
// the assignment service when an assignment is deleted. Returns how many
// trees were touched.
func (b *Browser) RemoveAssignmentFolders(ctx context.Context, courseID int64,
	folderName string) (removed int, err error) {
	defer func(start time.Time) { b.observe("remove_assignment", zone.AdmiAsgUsr, start, err) }(time.Now())

	path, err := zonepath.Parse(folderName)
	if err != nil {
		return 0, err
	}
	if path.Level() != 1 {
		return 0, fmt.Errorf("assignment folder names must be single components")
	}

	err = b.layout.EachSecondaryRoot(zone.AdmiAsgUsr, courseID, func(userID int64, rootDir string) error {
		abs := zonepath.Resolve(rootDir, path)
		if _, err := os.Lstat(abs); err != nil {
			return nil
		}
		if err := disk.RemoveTree(abs); err != nil {
			return err
		}

		inst := metadata.Instance{Kind: zone.AdmiAsgUsr, ScopeID: courseID, SecondaryScopeID: userID}
		if err := b.store.DeleteDescendants(ctx, inst, path); err != nil {
			return err
		}
		if err := b.store.DeletePath(ctx, inst, path); err != nil {
			return err
		}
		if err := b.store.RemoveExpandedSubtree(ctx, inst, path); err != nil {
			return err
		}
		if err := b.store.ClearClipboardsUnder(ctx, inst, path); err != nil {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

// CreateAssignmentFolders creates the level-1 folder of a new assignment in
// every existing student tree of the course. Trees are created lazily on
// first browse, so students joining later still get the folder through the
// assignment service when they first open the zone.
func (b *Browser) CreateAssignmentFolders(ctx context.Context, courseID int64,
	folderName string) (created int, err error) {
	defer func(start time.Time) { b.observe("create_assignment", zone.AdmiAsgUsr, start, err) }(time.Now())

	path, err := zonepath.Parse(folderName)
	if err != nil {
		return 0, err
	}
	if path.Level() != 1 {
		return 0, fmt.Errorf("assignment folder names must be single components")
	}

	err = b.layout.EachSecondaryRoot(zone.AdmiAsgUsr, courseID, func(userID int64, rootDir string) error {
		abs := zonepath.Resolve(rootDir, path)
		if _, err := os.Lstat(abs); err == nil {
			return nil
		}
		if err := disk.Mkdir(abs); err != nil {
			return err
		}
		inst := metadata.Instance{Kind: zone.AdmiAsgUsr, ScopeID: courseID, SecondaryScopeID: userID}
		if _, err := b.store.UpsertFileRecord(ctx, inst, path, metadata.KindFolder, 0, 0, time.Now()); err != nil {
			return err
		}
		created++
		return nil
	})
	return created, err
}
