package browser

import (
	"context"
	"strings"
	"time"

	"github.com/campusfiles/zonefs/internal/logger"
	"github.com/campusfiles/zonefs/pkg/disk"
	"github.com/campusfiles/zonefs/pkg/metadata"
	"github.com/campusfiles/zonefs/pkg/permission"
	"github.com/campusfiles/zonefs/pkg/zone"
	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// Visibility is the composite visibility state of one listed entry.
type Visibility int

const (
	// Visible entries are shown normally.
	Visible Visibility = iota

	// Hidden entries carry the hidden flag themselves. Only privileged
	// viewers receive them.
	Hidden

	// AncestorHidden entries are visible themselves but sit under a hidden
	// folder. Privileged viewers see them dimmed; others not at all.
	AncestorHidden
)

func (v Visibility) String() string {
	switch v {
	case Hidden:
		return "hidden"
	case AncestorHidden:
		return "ancestor_hidden"
	default:
		return "visible"
	}
}

// Entry is one row of a zone listing, in depth-first alphabetical order.
type Entry struct {
	Path       zonepath.Path
	Name       string
	Kind       metadata.FileKind
	Level      uint
	SizeBytes  int64
	ModifiedAt time.Time
	Visibility Visibility

	// Expanded is set on folders whose children follow in the listing.
	Expanded bool

	// Record is the entry's metadata shadow (id, publisher, publication).
	Record *metadata.FileRecord
}

// ListOptions tunes a listing.
type ListOptions struct {
	// FullTree lists every entry regardless of the user's expanded-folder
	// state. Used by selection dialogs and the maintenance CLI.
	FullTree bool

	// PublicOnly lists only entries published as open educational
	// resources. Implies FullTree traversal.
	PublicOnly bool
}

// List returns the zone tree as seen by the context's actor: depth-first,
// children in lexical order, folders recursed into when expanded by the
// actor (or unconditionally with FullTree). The zone root is the first
// entry at level 0.
//
// Hidden entries and their descendants are omitted for viewers who cannot
// toggle hiding; privileged viewers get every entry with its composite
// visibility state.
func (b *Browser) List(ctx context.Context, zc ZoneContext, opts ListOptions) (entries []Entry, err error) {
	defer func(start time.Time) { b.observe("list", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRead(ctx, zc.Actor, zc.Kind, zc.Instance()); err != nil {
		return nil, err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return nil, err
	}

	l := &lister{
		b:         b,
		zc:        zc,
		rootDir:   rootDir,
		opts:      opts,
		seeHidden: zc.Actor.Role.AtLeast(permission.RoleTeacher),
	}
	if !opts.FullTree && !opts.PublicOnly {
		expanded, err := b.store.ListExpanded(ctx, zc.Actor.UserID, zc.Instance())
		if err != nil {
			return nil, err
		}
		l.expanded = make(map[zonepath.Path]bool, len(expanded))
		for _, ef := range expanded {
			l.expanded[ef.Path] = true
		}
	}

	rootRec, err := b.recordFromDisk(ctx, zc, rootDir, zonepath.Root)
	if err != nil {
		return nil, err
	}
	if !opts.PublicOnly {
		l.entries = append(l.entries, Entry{
			Path:       zonepath.Root,
			Name:       zone.RootFolderName(zc.Kind),
			Kind:       metadata.KindFolder,
			Level:      0,
			ModifiedAt: rootRec.ModifiedAt,
			Visibility: Visible,
			Expanded:   true,
			Record:     rootRec,
		})
	}

	if err := l.walk(ctx, zonepath.Root, 1, false); err != nil {
		return nil, err
	}
	return l.entries, nil
}

type lister struct {
	b         *Browser
	zc        ZoneContext
	rootDir   string
	opts      ListOptions
	seeHidden bool
	expanded  map[zonepath.Path]bool
	entries   []Entry
}

func (l *lister) walk(ctx context.Context, folder zonepath.Path, level uint, ancestorHidden bool) error {
	dirEntries, err := disk.ReadDirSorted(zonepath.Resolve(l.rootDir, folder))
	if err != nil {
		return err
	}

	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".upload-") {
			continue
		}
		p, err := zonepath.Join(folder, name)
		if err != nil {
			logger.Warn("skipping unlistable entry %q under %q: %v", name, folder, err)
			continue
		}

		rec, err := l.b.recordFromDisk(ctx, l.zc, l.rootDir, p)
		if err != nil {
			// The entry may have vanished mid-walk; the listing stays
			// best-effort and simply omits it.
			logger.Warn("skipping entry %q: %v", p, err)
			continue
		}

		vis := Visible
		switch {
		case rec.Hidden:
			vis = Hidden
		case ancestorHidden:
			vis = AncestorHidden
		}
		if !l.seeHidden && vis != Visible {
			continue
		}

		isFolder := rec.Kind == metadata.KindFolder
		expand := isFolder && (l.opts.FullTree || l.opts.PublicOnly || l.expanded[p])

		if !l.opts.PublicOnly || rec.Public {
			l.entries = append(l.entries, Entry{
				Path:       p,
				Name:       name,
				Kind:       rec.Kind,
				Level:      level,
				SizeBytes:  rec.SizeBytes,
				ModifiedAt: rec.ModifiedAt,
				Visibility: vis,
				Expanded:   expand,
				Record:     rec,
			})
		}
		if expand {
			if err := l.walk(ctx, p, level+1, ancestorHidden || rec.Hidden); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExpandFolder marks a folder as expanded for the actor, together with its
// ancestors so the folder is actually reachable in the rendered tree.
func (b *Browser) ExpandFolder(ctx context.Context, zc ZoneContext, path zonepath.Path) (err error) {
	defer func(start time.Time) { b.observe("expand", zc.Kind, start, err) }(time.Now())

	if err := b.perms.CheckRead(ctx, zc.Actor, zc.Kind, zc.Instance()); err != nil {
		return err
	}
	rootDir, err := b.rootDir(zc)
	if err != nil {
		return err
	}
	rec, err := b.recordFromDisk(ctx, zc, rootDir, path)
	if err != nil {
		return err
	}
	if rec.Kind != metadata.KindFolder {
		return ErrNotAFolder
	}

	now := time.Now()
	for p := path; !p.IsRoot(); p = p.Parent() {
		ef := metadata.ExpandedFolder{
			UserID:        zc.Actor.UserID,
			Instance:      zc.Instance(),
			Path:          p,
			LastClickedAt: now,
		}
		if err := b.store.InsertExpanded(ctx, ef); err != nil {
			return err
		}
	}
	return nil
}

// CollapseFolder removes the actor's expanded mark from one folder. Child
// folders keep their marks and reappear expanded when the folder is
// reopened.
func (b *Browser) CollapseFolder(ctx context.Context, zc ZoneContext, path zonepath.Path) (err error) {
	defer func(start time.Time) { b.observe("collapse", zc.Kind, start, err) }(time.Now())
	return b.store.RemoveExpanded(ctx, zc.Actor.UserID, zc.Instance(), path)
}
