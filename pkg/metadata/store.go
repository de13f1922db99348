package metadata

import (
	"context"
	"time"

	"github.com/campusfiles/zonefs/pkg/zonepath"
)

// Store provides the shadow metadata kept alongside every zone's disk tree.
//
// Each method is a single logical transaction against the backing store.
// Cross-call transactions spanning disk operations are deliberately not
// offered: disk and metadata are two independently-failing resources, and
// callers must tolerate divergence between them (lazy record creation heals
// missing metadata; stale rows surface as ErrNotFound and must be tolerated).
//
// Instance keys are normalized internally: the show and admin variants of a
// paired zone address the same rows, so callers may pass either.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// ========================================================================
	// File records
	// ========================================================================

	// UpsertFileRecord returns the record for (inst, path), creating it with
	// default visibility and license if absent. Idempotent: repeated calls
	// for the same key return the same FileID and never duplicate rows.
	//
	// publisherUserID, sizeBytes and modifiedAt only apply on insert; an
	// existing record keeps its publisher but has size and mtime refreshed.
	// Pass publisherUserID 0 when the creator is unknown (lazy creation for
	// an entry that already existed on disk).
	UpsertFileRecord(ctx context.Context, inst Instance, path zonepath.Path, kind FileKind,
		publisherUserID int64, sizeBytes int64, modifiedAt time.Time) (*FileRecord, error)

	// GetFileRecord returns the record for (inst, path), or ErrNotFound.
	// Unlike UpsertFileRecord it never creates rows.
	GetFileRecord(ctx context.Context, inst Instance, path zonepath.Path) (*FileRecord, error)

	// GetFileRecordByID returns the record with the given id, or ErrNotFound.
	GetFileRecordByID(ctx context.Context, id FileID) (*FileRecord, error)

	// SetHidden flips the hidden flag of the record at (inst, path).
	// Returns ErrNotFound if no record exists.
	SetHidden(ctx context.Context, inst Instance, path zonepath.Path, hidden bool) error

	// SetPublicAndLicense updates the OER publication flag and license of
	// one record by id.
	SetPublicAndLicense(ctx context.Context, id FileID, public bool, license License) error

	// RenamePath rewrites the stored path of the record at oldPath and of
	// every descendant record (paths starting with oldPath + "/"),
	// substituting the oldPath prefix with newPath.
	RenamePath(ctx context.Context, inst Instance, oldPath, newPath zonepath.Path) error

	// DeletePath removes the record at (inst, path), if any.
	DeletePath(ctx context.Context, inst Instance, path zonepath.Path) error

	// DeleteDescendants removes every record strictly under (inst, path).
	// The record at path itself is kept; combine with DeletePath for a full
	// subtree removal.
	DeleteDescendants(ctx context.Context, inst Instance, path zonepath.Path) error

	// ListPaths returns the path of every record in the instance, in no
	// particular order. Used by reconciliation to find stale rows.
	ListPaths(ctx context.Context, inst Instance) ([]zonepath.Path, error)

	// SubtreePublisher reports whether a single user published every record
	// in the subtree rooted at path (the path's own record included). When
	// sole is true, userID is that publisher. A subtree containing any
	// record with an unknown publisher is never sole-published.
	SubtreePublisher(ctx context.Context, inst Instance, path zonepath.Path) (userID int64, sole bool, err error)

	// ========================================================================
	// Clipboard
	// ========================================================================

	// GetClipboard returns the user's clipboard entry, or nil if the user
	// has none or the entry is older than ClipboardTTL (expired entries are
	// purged lazily here).
	GetClipboard(ctx context.Context, userID int64) (*Clipboard, error)

	// SetClipboard stores cb as the user's clipboard, replacing any
	// previous entry. At most one entry per user exists at any time.
	SetClipboard(ctx context.Context, cb Clipboard) error

	// ClearClipboard removes the user's clipboard entry, if any.
	ClearClipboard(ctx context.Context, userID int64) error

	// ClearClipboardsUnder removes every user's clipboard whose source lies
	// at or under (inst, path). Called when that subtree is removed or
	// renamed, since the recorded source path is no longer valid.
	ClearClipboardsUnder(ctx context.Context, inst Instance, path zonepath.Path) error

	// ClearExpiredClipboards removes clipboard entries older than ttl and
	// returns how many were removed.
	ClearExpiredClipboards(ctx context.Context, ttl time.Duration) (int, error)

	// ========================================================================
	// Expanded folders
	// ========================================================================

	// InsertExpanded records folder paths as expanded for ef's user and
	// instance, refreshing LastClickedAt if already present. Implementations
	// insert only the given path; ancestor insertion is the caller's job.
	InsertExpanded(ctx context.Context, ef ExpandedFolder) error

	// RemoveExpanded removes a single expanded-folder row.
	RemoveExpanded(ctx context.Context, userID int64, inst Instance, path zonepath.Path) error

	// RemoveExpandedSubtree removes, for every user, all expanded rows at or
	// under (inst, path).
	RemoveExpandedSubtree(ctx context.Context, inst Instance, path zonepath.Path) error

	// RenameExpandedPrefix rewrites expanded rows of every user under
	// (inst, oldPath), substituting the prefix with newPath.
	RenameExpandedPrefix(ctx context.Context, inst Instance, oldPath, newPath zonepath.Path) error

	// IsExpanded reports whether the user has (inst, path) expanded.
	IsExpanded(ctx context.Context, userID int64, inst Instance, path zonepath.Path) (bool, error)

	// ListExpanded returns all expanded rows of one user in one instance.
	ListExpanded(ctx context.Context, userID int64, inst Instance) ([]ExpandedFolder, error)

	// ClearExpiredExpanded removes expanded rows not clicked within ttl and
	// returns how many were removed.
	ClearExpiredExpanded(ctx context.Context, ttl time.Duration) (int, error)

	// ========================================================================
	// View tracking
	// ========================================================================

	// AddView records one view of the file by the user and returns the
	// updated aggregate stats.
	AddView(ctx context.Context, id FileID, userID int64) (ViewStats, error)

	// GetViews returns aggregate view stats for the file. A file that was
	// never viewed yields zero stats, not ErrNotFound.
	GetViews(ctx context.Context, id FileID) (ViewStats, error)

	// ========================================================================
	// Lifecycle
	// ========================================================================

	// Healthcheck verifies the store can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases all resources. The store must not be used afterwards.
	Close() error
}
