package browser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/disk"
	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/quota"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// CopyToClipboard records (zone, path) as the actor's clipboard source.
// Each user has a single clipboard slot across all zones; copying replaces
// whatever was there. Nothing is moved or duplicated until paste.
func (b *Browser) CopyToClipboard(ctx context.Context, zc ZoneContext, path zonepath.Path) (err error) {
	defer func(start time.Time) { b.observe("copy", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRead(ctx, zc.Actor, zc.Kind, zc.Instance()); err != nil {
		return err
	}
	if path.IsRoot() {
		return fmt.Errorf("cannot copy the zone root")
	}

	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	info, err := os.Lstat(zonepath.Resolve(rootDir, path))
	if err != nil {
		return fmt.Errorf("failed to stat clipboard source %q: %w", path, err)
	}

	return b.store.SetClipboard(ctx, metadata.Clipboard{
		OwnerUserID: zc.Actor.UserID,
		Source:      zc.Instance().Normalized(),
		Path:        path,
		Kind:        fileKindOf(info.Mode(), info.Name()),
		CreatedAt:   time.Now(),
	})
}

// ClipboardOf returns the user's current clipboard entry, or nil when the
// slot is empty or expired.
func (b *Browser) ClipboardOf(ctx context.Context, userID int64) (*metadata.Clipboard, error) {
	return b.store.GetClipboard(ctx, userID)
}

// CheckPaste reports whether the actor may paste their clipboard into the
// folder at dst. Returns nil when paste would be attempted, or the first
// rule that forbids it:
//
//   - no (valid) clipboard entry
//   - the clipboard holds a link and the destination is a marks zone
//   - no create permission in the destination zone and folder
//   - destination is not a folder
//   - destination lies inside the copied subtree
//   - the copied name already exists in the destination folder
func (b *Browser) CheckPaste(ctx context.Context, zc ZoneContext, dst zonepath.Path) error {
	cb, err := b.store.GetClipboard(ctx, zc.Actor.UserID)
	if err != nil {
		return err
	}
	if cb == nil {
		return ErrNoClipboard
	}
	if cb.Kind == metadata.KindLink && zone.IsMarks(zc.Kind) {
		return ErrLinkInMarksZone
	}

	if err := b.perms.CheckCreate(ctx, zc.Actor, zc.Kind, zc.Instance(), dst); err != nil {
		return err
	}

	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	info, err := os.Lstat(zonepath.Resolve(rootDir, dst))
	if err != nil {
		return fmt.Errorf("failed to stat paste destination %q: %w", dst, err)
	}
	if !info.IsDir() {
		return ErrNotAFolder
	}

	target, err := zonepath.Join(dst, cb.Path.Base())
	if err != nil {
		return err
	}
	if cb.Source == zc.Instance().Normalized() {
		if cb.Kind == metadata.KindFolder && cb.Path.IsAncestorOrEqual(dst) {
			return ErrPasteIntoItself
		}
		if target == cb.Path {
			return ErrAlreadyExists
		}
	}
	if _, err := os.Lstat(zonepath.Resolve(rootDir, target)); err == nil {
		return ErrAlreadyExists
	}
	return nil
}

// SkippedEntry is one clipboard entry Paste could not place.
type SkippedEntry struct {
	Path   zonepath.Path `json:"path"`
	Reason string        `json:"reason"`
}

// PasteResult summarizes one paste.
type PasteResult struct {
	Files   int `json:"files"`
	Links   int `json:"links"`
	Folders int `json:"folders"`

	// FirstFileID is the record id of the first pasted file or link,
	// uuid.Nil when only folders were pasted. Notifications reference it.
	FirstFileID metadata.FileID `json:"first_file_id"`

	// Skipped lists source entries left out (marks validation failures,
	// name collisions, unreadable files). The rest of the paste proceeded.
	Skipped []SkippedEntry `json:"skipped,omitempty"`
}

// Paste copies the actor's clipboard subtree into the folder at dst.
//
// The copy is recursive and best effort: entries that fail validation or
// collide are skipped and reported while the rest of the subtree is still
// placed. Quota is checked incrementally against a fresh scan; hitting a
// limit stops the paste with the partial result kept, both on disk and in
// the returned counts. The clipboard survives the paste and can be pasted
// again elsewhere.
func (b *Browser) Paste(ctx context.Context, zc ZoneContext, dst zonepath.Path) (res PasteResult, err error) {
	defer func(start time.Time) { b.observe("paste", zc.Kind, start, err) }(time.Now())

	if err := b.CheckPaste(ctx, zc, dst); err != nil {
		return PasteResult{}, err
	}
	cb, err := b.store.GetClipboard(ctx, zc.Actor.UserID)
	if err != nil {
		return PasteResult{}, err
	}
	if cb == nil {
		return PasteResult{}, ErrNoClipboard
	}

	srcRoot, err := b.layout.ZoneRoot(cb.Source.Kind, cb.Source.ScopeID, cb.Source.SecondaryScopeID)
	if err != nil {
		return PasteResult{}, err
	}
	srcAbs := zonepath.Resolve(srcRoot, cb.Path)
	if _, err := os.Lstat(srcAbs); err != nil {
		// The copied subtree was removed after the copy. Drop the stale
		// clipboard so the next attempt reports an empty slot up front.
		if rmErr := b.store.ClearClipboard(ctx, zc.Actor.UserID); rmErr != nil {
			logger.Warn("failed to drop stale clipboard of user %d: %v", zc.Actor.UserID, rmErr)
		}
		return PasteResult{}, fmt.Errorf("clipboard source %q vanished: %w", cb.Path, ErrNoClipboard)
	}

	dstRoot, err := b.rootDir(zc)
	if err != nil {
		return PasteResult{}, err
	}
	size, err := b.scanUsage(dstRoot)
	if err != nil {
		return PasteResult{}, err
	}

	target, err := zonepath.Join(dst, cb.Path.Base())
	if err != nil {
		return PasteResult{}, err
	}

	p := &paster{
		b:       b,
		zc:      zc,
		dstRoot: dstRoot,
		marks:   zone.IsMarks(zc.Kind),
		policy:  b.policyFor(zc.Kind),
		size:    size,
	}
	err = p.paste(ctx, srcAbs, target)

	if len(p.res.Skipped) > 0 {
		b.metrics.RecordPasteSkipped(zc.Kind.String(), len(p.res.Skipped))
	}
	if p.firstRec != nil && b.notifier != nil {
		if nErr := b.notifier.FileAdded(ctx, zc.Instance(), p.firstRec); nErr != nil {
			logger.Warn("failed to notify pasted file %s: %v", p.firstRec.ID, nErr)
		}
	}
	return p.res, err
}

type paster struct {
	b        *Browser
	zc       ZoneContext
	dstRoot  string
	marks    bool
	policy   quota.Policy
	size     quota.BrowserSize
	res      PasteResult
	firstRec *metadata.FileRecord
}

func (p *paster) skip(path zonepath.Path, reason string) {
	p.res.Skipped = append(p.res.Skipped, SkippedEntry{Path: path, Reason: reason})
}

// paste places the entry at srcAbs as dstPath and recurses into folders.
// Per-entry failures are recorded and skipped; only quota exhaustion and
// store failures abort.
func (p *paster) paste(ctx context.Context, srcAbs string, dstPath zonepath.Path) error {
	info, err := os.Lstat(srcAbs)
	if err != nil {
		p.skip(dstPath, "source unreadable")
		return nil
	}
	if info.IsDir() {
		return p.pasteFolder(ctx, srcAbs, dstPath)
	}
	return p.pasteFile(ctx, srcAbs, dstPath, info)
}

func (p *paster) pasteFolder(ctx context.Context, srcAbs string, dstPath zonepath.Path) error {
	p.size.AddFolder(dstPath.Level())
	if err := quota.Check(p.size, p.policy); err != nil {
		return err
	}

	dstAbs := zonepath.Resolve(p.dstRoot, dstPath)
	switch err := os.Mkdir(dstAbs, 0o755); {
	case err == nil:
	case errors.Is(err, fs.ErrExist):
		// Merge into the existing folder.
	default:
		p.skip(dstPath, "could not create folder")
		return nil
	}

	if _, err := p.b.recordFromDisk(ctx, p.zc, p.dstRoot, dstPath); err != nil {
		return err
	}
	p.res.Folders++

	children, err := disk.ReadDirSorted(srcAbs)
	if err != nil {
		p.skip(dstPath, "source folder unreadable")
		return nil
	}
	for _, de := range children {
		name := de.Name()
		if strings.HasPrefix(name, ".upload-") {
			continue
		}
		childPath, err := zonepath.Join(dstPath, name)
		if err != nil {
			p.skip(dstPath, fmt.Sprintf("invalid entry name %q", name))
			continue
		}
		if err := p.paste(ctx, zonepath.Resolve(srcAbs, zonepath.Path(name)), childPath); err != nil {
			return err
		}
	}
	return nil
}

func (p *paster) pasteFile(ctx context.Context, srcAbs string, dstPath zonepath.Path, info fs.FileInfo) error {
	if p.marks {
		if err := validateMarksFile(srcAbs); err != nil {
			p.skip(dstPath, "not a valid marks file")
			return nil
		}
	}

	p.size.AddFile(dstPath.Level(), info.Size())
	if err := quota.Check(p.size, p.policy); err != nil {
		return err
	}

	dstAbs := zonepath.Resolve(p.dstRoot, dstPath)
	if _, err := os.Lstat(dstAbs); err == nil {
		p.skip(dstPath, "name already exists")
		return nil
	}
	if err := disk.CopyFile(srcAbs, dstAbs); err != nil {
		p.skip(dstPath, "copy failed")
		return nil
	}

	rec, err := p.b.store.UpsertFileRecord(ctx, p.zc.Instance(), dstPath,
		fileKindOf(info.Mode(), info.Name()), p.zc.Actor.UserID, info.Size(), time.Now())
	if err != nil {
		return err
	}

	if disk.IsLinkName(info.Name()) {
		p.res.Links++
	} else {
		p.res.Files++
	}
	if p.firstRec == nil {
		p.firstRec = rec
		p.res.FirstFileID = rec.ID
	}
	return nil
}
