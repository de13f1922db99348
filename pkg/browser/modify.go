package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/disk"
	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// Rename gives the entry at path a new final name and returns its new
// path. For folders, every descendant's metadata row, every user's
// expanded-folder rows and any clipboard pointing into the subtree are
// rewritten or dropped along with it.
func (b *Browser) Rename(ctx context.Context, zc ZoneContext, path zonepath.Path,
	newName string) (newPath zonepath.Path, err error) {
	defer func(start time.Time) { b.observe("rename", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRename(ctx, zc.Actor, zc.Kind, zc.Instance(), path); err != nil {
		return "", err
	}
	newPath, err = zonepath.Join(path.Parent(), newName)
	if err != nil {
		return "", err
	}
	if newPath == path {
		return path, nil
	}

	rootDir, err := b.rootDir(zc)
	if err != nil {
		return "", err
	}
	newAbs := zonepath.Resolve(rootDir, newPath)
	if _, err := os.Lstat(newAbs); err == nil {
		return "", ErrAlreadyExists
	}
	if err := disk.Rename(zonepath.Resolve(rootDir, path), newAbs); err != nil {
		return "", err
	}

	inst := zc.Instance()
	if err := b.store.RenamePath(ctx, inst, path, newPath); err != nil {
		return "", err
	}
	if err := b.store.RenameExpandedPrefix(ctx, inst, path, newPath); err != nil {
		return "", err
	}
	// Clipboards pointing into the renamed subtree now hold dead paths.
	if err := b.store.ClearClipboardsUnder(ctx, inst, path); err != nil {
		return "", err
	}
	return newPath, nil
}

// RemoveFile removes a single file or link.
func (b *Browser) RemoveFile(ctx context.Context, zc ZoneContext, path zonepath.Path) (err error) {
	defer func(start time.Time) { b.observe("remove_file", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRemove(ctx, zc.Actor, zc.Kind, zc.Instance(), path); err != nil {
		return err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	abs := zonepath.Resolve(rootDir, path)
	info, err := os.Lstat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}
	if info.IsDir() {
		return ErrIsAFolder
	}

	inst := zc.Instance()
	rec, err := b.store.GetFileRecord(ctx, inst, path)
	if err != nil && !metadata.IsNotFound(err) {
		return err
	}

	if err := disk.RemoveFile(abs); err != nil {
		return err
	}
	if err := b.store.DeletePath(ctx, inst, path); err != nil {
		return err
	}
	if err := b.store.ClearClipboardsUnder(ctx, inst, path); err != nil {
		return err
	}
	if rec != nil {
		b.notifyRemoved(ctx, zc, rec.ID)
	}
	return nil
}

// RemoveEmptyFolder removes the folder at path if it is empty.
//
// A non-empty folder fails with ErrFolderNotEmpty and nothing removed;
// callers are expected to confirm with the user and call RemoveSubtree.
// Removing a whole subtree is never implicit.
func (b *Browser) RemoveEmptyFolder(ctx context.Context, zc ZoneContext, path zonepath.Path) (err error) {
	defer func(start time.Time) { b.observe("remove_folder", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRemove(ctx, zc.Actor, zc.Kind, zc.Instance(), path); err != nil {
		return err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	if err := disk.RemoveEmptyDir(zonepath.Resolve(rootDir, path)); err != nil {
		if disk.IsNotEmpty(err) {
			return fmt.Errorf("%w: %q", ErrFolderNotEmpty, path)
		}
		return err
	}
	return b.dropSubtreeBookkeeping(ctx, zc, path)
}

// RemoveSubtree removes the folder at path together with everything under
// it. This is the explicit second step after RemoveEmptyFolder reported
// ErrFolderNotEmpty.
func (b *Browser) RemoveSubtree(ctx context.Context, zc ZoneContext, path zonepath.Path) (err error) {
	defer func(start time.Time) { b.observe("remove_subtree", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRemove(ctx, zc.Actor, zc.Kind, zc.Instance(), path); err != nil {
		return err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	if err := disk.RemoveTree(zonepath.Resolve(rootDir, path)); err != nil {
		return err
	}
	if err := b.store.DeleteDescendants(ctx, zc.Instance(), path); err != nil {
		return err
	}
	return b.dropSubtreeBookkeeping(ctx, zc, path)
}

// dropSubtreeBookkeeping clears the rows a removed folder leaves behind:
// its own record, expanded marks of every user, and clipboards pointing at
// or under it.
func (b *Browser) dropSubtreeBookkeeping(ctx context.Context, zc ZoneContext, path zonepath.Path) error {
	inst := zc.Instance()
	if err := b.store.DeletePath(ctx, inst, path); err != nil {
		return err
	}
	if err := b.store.RemoveExpandedSubtree(ctx, inst, path); err != nil {
		return err
	}
	return b.store.ClearClipboardsUnder(ctx, inst, path)
}

// SetHidden flips the hidden flag on the entry at path. Hidden entries and
// their descendants disappear from non-privileged listings; the disk entry
// itself is untouched.
func (b *Browser) SetHidden(ctx context.Context, zc ZoneContext, path zonepath.Path, hidden bool) (err error) {
	defer func(start time.Time) { b.observe("set_hidden", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckToggleHidden(ctx, zc.Actor, zc.Kind, path); err != nil {
		return err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	// Ensure the row exists before flagging it; entries without metadata
	// are healed here like everywhere else.
	if _, err := b.recordFromDisk(ctx, zc, rootDir, path); err != nil {
		return err
	}
	return b.store.SetHidden(ctx, zc.Instance(), path, hidden)
}

func (b *Browser) notifyRemoved(ctx context.Context, zc ZoneContext, id metadata.FileID) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.FileRemoved(ctx, zc.Instance(), id); err != nil {
		logger.Warn("failed to notify removed file %s: %v", id, err)
	}
}
